package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/five82/devsyslog/internal/config"
	"github.com/five82/devsyslog/internal/logging"
	"github.com/five82/devsyslog/internal/logtail"
	"github.com/five82/devsyslog/internal/metrics"
	"github.com/five82/devsyslog/internal/relay"
	"github.com/five82/devsyslog/internal/state"
	"github.com/five82/devsyslog/internal/ui"
	"github.com/five82/devsyslog/internal/usbmux"
)

var (
	// ErrInvalidUDID reports a target that is not 40 hex characters.
	ErrInvalidUDID = errors.New("udid must be 40 hexadecimal characters")
	// ErrNoDevice reports that nothing is attached and no target was given.
	ErrNoDevice = errors.New("no device found")
)

var udidPattern = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)

// Options configure a relay run. Zero values defer to the config file.
type Options struct {
	ConfigPath  string
	PrefsPath   string
	UDID        string
	Debug       bool
	NoColors    bool
	TUI         bool
	MetricsAddr string

	Stdout io.Writer
	Stderr io.Writer

	// Devices and Transport default to usbmuxd through go-ios.
	Devices   DeviceSource
	Transport relay.Transport
}

type settings struct {
	udid        string
	debug       bool
	colors      config.ColorMode
	theme       string
	metricsAddr string
	tui         bool
}

// resolve layers command-line options over the config file.
func resolve(cfg config.Config, opts Options) settings {
	s := settings{
		udid:        cfg.UDID,
		debug:       cfg.Debug || opts.Debug,
		colors:      cfg.Colors,
		theme:       cfg.Theme,
		metricsAddr: cfg.MetricsAddr,
		tui:         cfg.TUI || opts.TUI,
	}
	if opts.UDID != "" {
		s.udid = opts.UDID
	}
	if opts.NoColors {
		s.colors = config.ColorNever
	}
	if opts.MetricsAddr != "" {
		s.metricsAddr = opts.MetricsAddr
	}
	return s
}

// ValidateUDID checks an explicit target identifier.
func ValidateUDID(udid string) error {
	if !udidPattern.MatchString(udid) {
		return fmt.Errorf("%w: %q", ErrInvalidUDID, udid)
	}
	return nil
}

// Run relays the target device's syslog until ctx is cancelled or the
// operator quits the live view.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	set := resolve(cfg, opts)

	if set.udid != "" {
		if err := ValidateUDID(set.udid); err != nil {
			return err
		}
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	src := opts.Devices
	if src == nil {
		usbmux.SetDebug(set.debug)
		src = usbmuxSource{}
	}
	// A failed count is treated like an empty one.
	if n, _ := src.CountDevices(); n == 0 {
		if set.udid == "" {
			fmt.Fprintln(stderr, "No device found. Plug in a device or pass UDID with -u to wait for device to be available.")
			return ErrNoDevice
		}
		fmt.Fprintf(stderr, "Waiting for device with UDID %s to become available...\n", set.udid)
	}

	feed, err := src.Listen()
	if err != nil {
		return fmt.Errorf("subscribe to device events: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	store := &state.Store{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics := metrics.New(reg)

	output, errs, logOut := stdout, stderr, stderr
	var program *ui.Program
	if set.tui {
		program = ui.NewProgram(gctx, ui.Options{
			Store:     store,
			ThemeName: set.theme,
			PrefsPath: opts.PrefsPath,
		})
		output, errs, logOut = program.Sink(), program.Sink(), program.Sink()
	}

	logger := logging.New(logging.Level(set.debug), logOut)

	transport := opts.Transport
	if transport == nil {
		transport = usbmux.NewTransport(logger.With("component", "usbmux"))
	}

	ctrl, err := relay.New(relay.Options{
		Transport: transport,
		Output:    output,
		Errors:    errs,
		Target:    set.udid,
		Plain:     plainOutput(set, stdout),
		Logger:    logger,
		Store:     store,
		Metrics:   relayMetrics,
	})
	if err != nil {
		_ = feed.Close()
		return fmt.Errorf("init relay: %w", err)
	}

	if set.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, set.metricsAddr, metrics.NewRouter(reg, store), logger)
		})
	}

	events := StartFeed(gctx, src, feed, logger)
	g.Go(func() error {
		err := ctrl.Run(gctx, events)
		if errors.Is(err, relay.ErrFeedClosed) && gctx.Err() != nil {
			err = nil
		}
		if program != nil {
			program.Quit()
		}
		return err
	})

	if program != nil {
		g.Go(func() error {
			defer cancel()
			return program.Run()
		})
	}

	return g.Wait()
}

// plainOutput decides whether lines are relayed without color.
func plainOutput(set settings, stdout io.Writer) bool {
	switch set.colors {
	case config.ColorNever:
		return true
	case config.ColorAlways:
		return false
	}
	if set.tui {
		return false
	}
	return !logtail.ShouldColor(stdout)
}

type usbmuxSource struct{}

func (usbmuxSource) CountDevices() (int, error) {
	return usbmux.CountDevices()
}

func (usbmuxSource) Listen() (EventFeed, error) {
	feed, err := usbmux.Listen()
	if err != nil {
		return nil, err
	}
	return feed, nil
}
