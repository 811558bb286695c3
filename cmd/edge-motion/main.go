// Command edge-motion drives a virtual relative-pointer device from the
// edge regions of an absolute multi-touch touchpad. See §4.9 for the
// subcommand/flag surface and §7 for the exit-code taxonomy.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"touchpad/internal/clock"
	"touchpad/internal/config"
	"touchpad/internal/controller"
	"touchpad/internal/logger"
	"touchpad/internal/pulse"
	"touchpad/internal/sink"
	"touchpad/internal/touch"
	"touchpad/internal/watchdog"
)

const version = "edge-motion 1.0.0"

const uinputDevicePath = "/dev/uinput"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var listDevices bool
	var flags *config.Flags
	var ranE bool

	root := &cobra.Command{
		Use:           "edge-motion",
		Short:         "Touchpad edge-motion daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranE = true
			if listDevices {
				return runListDevices()
			}
			return runDaemon(flags)
		},
	}
	root.SetVersionTemplate(version + "\n")
	flags = config.RegisterFlags(root.Flags())
	root.Flags().BoolVar(&listDevices, "list-devices", false, "print candidate touchpads and exit")
	root.SetArgs(args)

	err := root.Execute()
	switch e := err.(type) {
	case nil:
		return exitStatus
	case *config.InvalidError:
		fmt.Fprintln(os.Stderr, e.Error())
		return 2
	default:
		fmt.Fprintln(os.Stderr, "edge-motion:", err)
		if !ranE {
			// Execute failed before RunE ever ran: cobra/pflag rejected the
			// flags themselves (unknown flag, bad value, ...), which is a
			// ConfigInvalid per §7, not a runtime failure.
			return 2
		}
		return 1
	}
}

// exitStatus is set by runDaemon/runListDevices when they need a non-zero
// code without an error cobra would print a second time.
var exitStatus int

func runListDevices() error {
	candidates, err := touch.EnumerateCandidates(nil)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		exitStatus = 1
		return nil
	}
	touch.SortByDevnode(candidates)
	for _, c := range candidates {
		fmt.Println(touch.FormatListLine(c))
	}
	return nil
}

func runDaemon(flags *config.Flags) error {
	cfg, err := config.Resolve(flags)
	if err != nil {
		return err
	}
	logger.SetVerbose(cfg.Verbose)

	clk := clock.Real{}

	opener := makeOpener(cfg)
	source, devnode, err := opener()
	if err != nil {
		exitStatus = 1
		return fmt.Errorf("no touch device available: %w", err)
	}
	logger.Info("bound touch source", "devnode", devnode)

	snk, err := sink.New(uinputDevicePath, clk)
	if err != nil {
		exitStatus = 1
		_ = source.Close()
		return fmt.Errorf("sink creation failed: %w", err)
	}

	wd, err := watchdog.New(clk, cfg.MaxRSSMB, cfg.MaxCPUPercent, cfg.ResourceGraceChecks)
	if err != nil {
		logger.Warn("watchdog unavailable, continuing without resource limits", "err", err)
		wd = nil
	}

	shared := pulse.NewShared()
	pulser := pulse.New(shared, snk, clk, cfg)
	go pulser.Run()

	ctl := controller.New(cfg, clk, shared, pulser, wd, opener, source)

	installSignalHandler(ctl)

	ctl.Run()
	_ = snk.Close()
	return nil
}

func makeOpener(cfg config.Config) controller.Opener {
	ignored := make(map[string]bool, len(cfg.IgnoredDevnodes))
	for _, d := range cfg.IgnoredDevnodes {
		ignored[d] = true
	}

	return func() (touch.Source, string, error) {
		if cfg.ForcedDevnode != "" {
			src, err := touch.Open(cfg.ForcedDevnode, cfg.Grab)
			if err != nil {
				return nil, "", err
			}
			return src, cfg.ForcedDevnode, nil
		}

		candidates, err := touch.EnumerateCandidates(ignored)
		if err != nil {
			return nil, "", err
		}
		best, ok := touch.ScoreAndPick(candidates)
		if !ok {
			return nil, "", fmt.Errorf("no candidate touchpad found")
		}
		src, err := touch.Open(best.Devnode, cfg.Grab)
		if err != nil {
			return nil, "", err
		}
		return src, best.Devnode, nil
	}
}
