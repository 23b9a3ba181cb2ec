package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
)

// Options wires a Monitor to its collaborators.
type Options struct {
	// Dialer connects to sources. Defaults to an SSHDialer.
	Dialer Dialer
	// Display receives a View every tick. Nil runs in collection-only mode:
	// collectors run but the render loop never starts.
	Display Display
	Metrics *Metrics
	Clock   Clock
	Logger  logger.Logger
	// OnStateChange, when set, observes every collector's transitions.
	OnStateChange func(StateChange)
}

// Monitor supervises one collector per valid source plus the render loop.
type Monitor struct {
	cfg        *config.Config
	collectors []*Collector
	feeds      []Feed
	invalid    []config.SourceError
	agg        *Aggregator
	grace      time.Duration
	log        logger.Logger
}

// New validates cfg and builds the collectors. A broken global setting is
// fatal; a broken source is kept as a Failed feed so the rest still run.
func New(cfg *config.Config, opts Options) (*Monitor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewEnvLogger("[monitor]")
	}
	if opts.Dialer == nil {
		opts.Dialer = NewSSHDialer(cfg.ConnectTimeout).Dial
	}

	m := &Monitor{
		cfg:   cfg,
		grace: cfg.ShutdownGrace,
		log:   opts.Logger,
	}

	valid, invalid := config.PartitionSources(cfg)
	m.invalid = invalid

	collectorOpts := OptionsFromConfig(cfg)
	collectorOpts.Clock = opts.Clock
	collectorOpts.Metrics = opts.Metrics
	collectorOpts.Logger = opts.Logger

	for _, src := range valid {
		c := NewCollector(src, opts.Dialer, collectorOpts)
		if opts.OnStateChange != nil {
			c.OnStateChange(opts.OnStateChange)
		}
		m.collectors = append(m.collectors, c)
	}

	var bad []SourceErrorFeed
	for _, se := range invalid {
		m.log.Error("source %s disabled: %s", se.Source.ID, se.Error())
		bad = append(bad, newFailedFeed(se, opts.Clock.Now()))
	}
	// Feeds keep config order so the display lists sources the way they were written.
	m.feeds = orderFeeds(len(cfg.Sources), m.collectors, bad)

	if opts.Display != nil {
		m.agg = NewAggregator(m.feeds, opts.Display, AggregatorOptions{
			Tick:     cfg.Tick,
			Window:   cfg.Window,
			LogLines: cfg.Log.Lines,
			Clock:    opts.Clock,
			Logger:   opts.Logger,
		})
	}

	return m, nil
}

// orderFeeds interleaves collectors and failed placeholders in config order.
// Both lists are already in config order, so a failed feed whose index
// matches the position goes next and otherwise the next collector does.
func orderFeeds(total int, collectors []*Collector, bad []SourceErrorFeed) []Feed {
	feeds := make([]Feed, 0, total)
	ci, bi := 0, 0
	for i := 0; i < total; i++ {
		switch {
		case bi < len(bad) && bad[bi].index == i:
			feeds = append(feeds, bad[bi])
			bi++
		case ci < len(collectors):
			feeds = append(feeds, collectors[ci])
			ci++
		}
	}
	return feeds
}

// Config returns the configuration the monitor was built from.
func (m *Monitor) Config() *config.Config { return m.cfg }

// Collectors returns the running collectors, one per valid source.
func (m *Monitor) Collectors() []*Collector { return m.collectors }

// Feeds returns every source in config order, failed ones included.
func (m *Monitor) Feeds() []Feed { return m.feeds }

// Invalid returns the sources that failed validation.
func (m *Monitor) Invalid() []config.SourceError { return m.invalid }

// Aggregator returns the render loop, or nil in collection-only mode.
func (m *Monitor) Aggregator() *Aggregator { return m.agg }

// Run starts every collector and the render loop, then blocks until ctx is
// cancelled or every collector has stopped. On the way out it waits up to
// the shutdown grace period for collectors to close their sessions.
func (m *Monitor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range m.collectors {
		wg.Add(1)
		go func(c *Collector) {
			defer wg.Done()
			_ = c.Run(runCtx)
		}(c)
	}
	collectorsDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(collectorsDone)
	}()

	renderDone := make(chan struct{})
	if m.agg != nil {
		go func() {
			defer close(renderDone)
			_ = m.agg.Run(runCtx)
		}()
	} else {
		close(renderDone)
	}

	m.log.Info("monitoring %d source(s), %d disabled", len(m.collectors), len(m.invalid))

	select {
	case <-ctx.Done():
	case <-collectorsDone:
		// Let the render loop publish its last frame before stopping it.
		select {
		case <-renderDone:
		case <-ctx.Done():
		case <-time.After(m.grace):
		}
	}
	cancel()

	timer := time.NewTimer(m.grace)
	defer timer.Stop()
	for _, ch := range []chan struct{}{collectorsDone, renderDone} {
		select {
		case <-ch:
		case <-timer.C:
			return errors.New(errors.ErrStream,
				"Some sources didn't shut down within "+m.grace.String(),
				"A remote session may be hung; raise shutdown_grace if this keeps happening.")
		}
	}

	if ctx.Err() == nil {
		return errors.New(errors.ErrSSH,
			"No source is running",
			"Check the log for connection errors, or set reconnect.max_retries to 0 to retry forever.")
	}
	return nil
}

// SourceErrorFeed stands in for a source that failed validation. It is
// Failed from the start, never has readings and is always done.
type SourceErrorFeed struct {
	status Status
	index  int
	logs   []LogLine
	done   chan struct{}
}

func newFailedFeed(se config.SourceError, now time.Time) SourceErrorFeed {
	done := make(chan struct{})
	close(done)
	return SourceErrorFeed{
		status: Status{
			SourceID:  se.Source.ID,
			Tag:       se.Source.DisplayTag(),
			State:     Failed,
			Since:     now,
			LastError: se.Error(),
			Err:       se,
		},
		index: se.Index,
		logs: []LogLine{{
			Time:     now,
			SourceID: se.Source.ID,
			Tag:      se.Source.DisplayTag(),
			Stream:   StreamEvent,
			Text:     "invalid configuration: " + se.Error(),
		}},
		done: done,
	}
}

func (f SourceErrorFeed) ID() string            { return f.status.SourceID }
func (f SourceErrorFeed) Snapshot() []Reading   { return []Reading{} }
func (f SourceErrorFeed) Status() Status        { return f.status }
func (f SourceErrorFeed) Done() <-chan struct{} { return f.done }

func (f SourceErrorFeed) Logs(n int) []LogLine {
	if n <= 0 {
		return nil
	}
	return f.logs
}
