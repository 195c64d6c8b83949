package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/five82/devsyslog/internal/app"
)

type flags struct {
	udid        string
	debug       bool
	noColors    bool
	configPath  string
	tui         bool
	metricsAddr string
}

func (f *flags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.udid, "udid", "u", "", "target specific device by its 40-digit device UDID")
	fs.BoolVarP(&f.debug, "debug", "d", false, "enable communication debugging")
	fs.BoolVarP(&f.noColors, "no-colors", "n", false, "disable colored output")
	fs.StringVar(&f.configPath, "config", "", "override config path (default ~/.config/devsyslog/config.toml)")
	fs.BoolVar(&f.tui, "tui", false, "show the interactive live view instead of plain output")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics and status on this address")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var f flags
	cmd := &cobra.Command{
		Use:           "devsyslog [OPTIONS]",
		Short:         "Relay syslog of a connected device.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer cancel()

			err := app.Run(ctx, app.Options{
				ConfigPath:  f.configPath,
				UDID:        f.udid,
				Debug:       f.debug,
				NoColors:    f.noColors,
				TUI:         f.tui,
				MetricsAddr: f.metricsAddr,
			})
			if err == nil && ctx.Err() != nil && !f.tui {
				fmt.Fprintln(os.Stderr, "\nExiting...")
			}
			return err
		},
	}
	f.register(cmd.Flags())
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoDevice):
		// The operator message was already printed.
		return 1
	case errors.Is(err, app.ErrInvalidUDID):
		fmt.Fprintf(os.Stderr, "devsyslog: %v\n\n", err)
		_ = cmd.Usage()
		return 1
	default:
		fmt.Fprintf(os.Stderr, "devsyslog: %v\n", err)
		return 1
	}
}
