// Package dialog implements the fire-and-forget GUI error popup of §4.8,
// launched when the watchdog trips and DISPLAY is set.
package dialog

import (
	"os"
	"os/exec"

	"touchpad/internal/logger"
)

// ShowError spawns a detached "zenity --error" with text, if DISPLAY is
// set. It never blocks the caller and never returns an error: any spawn
// failure is logged and ignored, per §4.8.
func ShowError(text string) {
	if os.Getenv("DISPLAY") == "" {
		return
	}

	cmd := exec.Command("zenity", "--error", "--text="+text)
	if err := cmd.Start(); err != nil {
		logger.Debug("dialog spawn failed", "err", err)
		return
	}
	go func() {
		_ = cmd.Wait()
	}()
}
