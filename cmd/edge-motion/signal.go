package main

import (
	"os"
	"os/signal"
	"syscall"

	"touchpad/internal/controller"
	"touchpad/internal/logger"
)

// installSignalHandler requests a cooperative Controller shutdown on
// SIGINT/SIGTERM, per §5 and the Shutdown entry of §7's error taxonomy.
func installSignalHandler(ctl *controller.Controller) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("received signal, shutting down", "signal", sig.String())
		ctl.Stop()
	}()
}
