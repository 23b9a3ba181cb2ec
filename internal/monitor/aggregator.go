package monitor

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/logger"
)

// Feed is what the render loop reads from each source. A Collector is a
// Feed; so is the placeholder for a source that failed validation.
type Feed interface {
	ID() string
	Snapshot() []Reading
	Status() Status
	Logs(n int) []LogLine
	// Done is closed once the feed will never produce data again.
	Done() <-chan struct{}
}

// DefaultValueAxis is used until some source has a plotted point.
var DefaultValueAxis = Axis{Min: 0, Max: 2}

// Axis is a closed numeric range.
type Axis struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Point is one plotted sample: seconds since monitor start and distance.
type Point struct {
	Offset   float64 `json:"t"`
	Distance float64 `json:"d"`
}

// Series is one source's part of a View.
type Series struct {
	SourceID string `json:"source_id"`
	Tag      string `json:"tag"`
	// Points holds the readings with presence, in time order.
	Points []Point `json:"points"`
	// Readings is the full snapshot, absences included, for gap rendering.
	Readings []Reading `json:"readings"`
	Status   Status    `json:"status"`
}

// View is everything a display needs for one frame.
type View struct {
	Tick    uint64        `json:"tick"`
	Start   time.Time     `json:"start"`
	At      time.Time     `json:"at"`
	Window  time.Duration `json:"window"`
	Elapsed float64       `json:"elapsed"`
	// TimeAxis spans [Elapsed-Window, Elapsed] in seconds since Start.
	TimeAxis  Axis      `json:"time_axis"`
	ValueAxis Axis      `json:"value_axis"`
	Series    []Series  `json:"series"`
	Logs      []LogLine `json:"logs"`
}

// Connected counts sources that are currently delivering data.
func (v View) Connected() int {
	n := 0
	for _, s := range v.Series {
		if s.Status.Connected() {
			n++
		}
	}
	return n
}

// AggregatorOptions tunes the render loop.
type AggregatorOptions struct {
	Tick   time.Duration
	Window time.Duration
	// LogLines is how many merged raw lines each View carries.
	LogLines int
	Clock    Clock
	// Start anchors the time axis. Defaults to the clock's now.
	Start  time.Time
	Logger logger.Logger
}

// Aggregator polls every feed on a fixed tick and publishes a View.
type Aggregator struct {
	feeds   []Feed
	display Display
	opts    AggregatorOptions
	log     logger.Logger
	ticks   atomic.Uint64
}

// NewAggregator creates a render loop over feeds that publishes to display.
func NewAggregator(feeds []Feed, display Display, opts AggregatorOptions) *Aggregator {
	if opts.Tick <= 0 {
		opts.Tick = config.DefaultTick
	}
	if opts.Window <= 0 {
		opts.Window = config.DefaultWindow
	}
	if opts.LogLines < 0 {
		opts.LogLines = 0
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Start.IsZero() {
		opts.Start = opts.Clock.Now()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewEnvLogger("[render]")
	}
	return &Aggregator{feeds: feeds, display: display, opts: opts, log: opts.Logger}
}

// Start returns the time axis origin.
func (a *Aggregator) Start() time.Time { return a.opts.Start }

// Ticks returns how many views have been published.
func (a *Aggregator) Ticks() uint64 { return a.ticks.Load() }

// Run publishes a View every tick until ctx is cancelled or every feed is
// done. A final View is published when the feeds finish so the display
// shows their terminal status.
func (a *Aggregator) Run(ctx context.Context) error {
	allDone := make(chan struct{})
	go func() {
		for _, f := range a.feeds {
			select {
			case <-f.Done():
			case <-ctx.Done():
				return
			}
		}
		close(allDone)
	}()

	ticker := time.NewTicker(a.opts.Tick)
	defer ticker.Stop()

	a.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-allDone:
			a.publish()
			a.log.Debug("all sources finished after %d ticks", a.Ticks())
			return nil
		case <-ticker.C:
			a.publish()
		}
	}
}

func (a *Aggregator) publish() {
	v := a.Build()
	if a.display != nil {
		a.display.Update(v)
	}
}

// Build snapshots every feed and assembles one View. Each series reflects
// its buffer as of the moment it was snapshotted.
func (a *Aggregator) Build() View {
	now := a.opts.Clock.Now()
	start := a.opts.Start
	elapsed := now.Sub(start).Seconds()

	v := View{
		Tick:    a.ticks.Add(1),
		Start:   start,
		At:      now,
		Window:  a.opts.Window,
		Elapsed: elapsed,
		TimeAxis: Axis{
			Min: elapsed - a.opts.Window.Seconds(),
			Max: elapsed,
		},
		Series: make([]Series, 0, len(a.feeds)),
	}

	tails := make([][]LogLine, 0, len(a.feeds))
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, f := range a.feeds {
		readings := f.Snapshot()
		if readings == nil {
			readings = []Reading{}
		}
		status := f.Status()

		points := make([]Point, 0, len(readings))
		for _, r := range readings {
			if !r.Presence {
				continue
			}
			points = append(points, Point{Offset: r.Timestamp.Sub(start).Seconds(), Distance: r.Distance})
			lo = math.Min(lo, r.Distance)
			hi = math.Max(hi, r.Distance)
		}

		v.Series = append(v.Series, Series{
			SourceID: f.ID(),
			Tag:      status.Tag,
			Points:   points,
			Readings: readings,
			Status:   status,
		})

		if a.opts.LogLines > 0 {
			tails = append(tails, f.Logs(a.opts.LogLines))
		}
	}

	v.ValueAxis = valueAxis(lo, hi)
	v.Logs = MergeLogs(a.opts.LogLines, tails...)
	return v
}

// valueAxis pads [lo, hi] by a tenth of the range, at least 0.05 either side.
func valueAxis(lo, hi float64) Axis {
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return DefaultValueAxis
	}
	margin := math.Max(0.05, 0.1*(hi-lo))
	return Axis{Min: lo - margin, Max: hi + margin}
}
