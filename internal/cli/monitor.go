package cli

import (
	"context"
	"io"
	"net"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/dashboard"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/internal/webview"
)

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	CommonFlags
	NoTUI bool
}

var monitorOpts MonitorOptions

// monitorCommand shows the live dashboard. Without a terminal on stdout it
// falls back to collect's line output.
func monitorCommand(ctx context.Context, opts MonitorOptions, out io.Writer) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ApplyOverrides(cfg, opts.CommonFlags); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	tui := !opts.NoTUI && dashboard.Available()
	closer, err := setupLogging(cfg, tui)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.log.Debug("loaded config from %s", path)

	if !tui {
		return runCollect(ctx, sess, out, CollectOptions{})
	}

	title := "radarmon · " + filepath.Base(path)
	return dashboard.Run(ctx, title, func(ctx context.Context, d monitor.Display) error {
		mon, err := sess.build(d, nil)
		if err != nil {
			return err
		}
		return sess.serve(ctx, mon)
	})
}

// session holds what one monitor run needs besides the config: the metrics
// registry and, with --listen, the web view and its listener.
type session struct {
	cfg     *config.Config
	reg     *prometheus.Registry
	metrics *monitor.Metrics
	web     *webview.Server
	ln      net.Listener
	log     logger.Logger

	// dialer overrides the SSH dialer in tests.
	dialer monitor.Dialer
}

// newSession opens the web listener up front so a taken port fails before
// the dashboard takes over the terminal.
func newSession(cfg *config.Config) (*session, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfoGauge(),
	)

	s := &session{
		cfg:     cfg,
		reg:     reg,
		metrics: monitor.NewMetrics(reg),
		log:     logger.NewEnvLogger("[radarmon]"),
	}

	if cfg.Listen != "" {
		ln, err := webview.Listen(cfg.Listen)
		if err != nil {
			return nil, err
		}
		s.ln = ln
		s.web = webview.New(webview.Options{Gatherer: reg})
	}
	return s, nil
}

// build creates the monitor. display may be nil; the web view is added when enabled.
func (s *session) build(display monitor.Display, onChange func(monitor.StateChange)) (*monitor.Monitor, error) {
	if s.web != nil {
		display = monitor.Displays(display, s.web)
	} else {
		display = monitor.Displays(display)
	}

	return monitor.New(s.cfg, monitor.Options{
		Dialer:        s.dialer,
		Display:       display,
		Metrics:       s.metrics,
		OnStateChange: onChange,
	})
}

// serve runs mon, and the web view next to it, until ctx is cancelled or
// every source has stopped.
func (s *session) serve(ctx context.Context, mon *monitor.Monitor) error {
	if s.web == nil {
		return mon.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)
	go func() {
		err := s.web.Serve(ctx, s.ln)
		if err != nil {
			s.log.Error("web view: %v", err)
		}
		webErr <- err
	}()

	err := mon.Run(ctx)
	cancel()
	if werr := <-webErr; err == nil {
		err = werr
	}
	return err
}

// Close releases the listener if serve never ran.
func (s *session) Close() {
	if s.ln != nil {
		_ = s.ln.Close()
	}
}
