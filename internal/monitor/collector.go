package monitor

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
)

// ConnectionError wraps anything that ends a connection attempt or session:
// unreachable host, auth failure, command start failure, dropped stream.
// The collector recovers from it by reconnecting.
type ConnectionError struct {
	SourceID string
	// Op is the phase that failed: "dial", "start" or "stream".
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %s", e.SourceID, e.Op, errors.Summary(e.Err))
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

var errStreamEnded = errors.New(errors.ErrStream,
	"Remote command stopped producing output",
	"Run the command by hand on the host to see why it exits.")

var errNoOutput = errors.New(errors.ErrStream,
	"Remote command started but printed nothing",
	"Check the command prints readings right away, or raise connect_timeout if it is slow to start.")

// MaxLineLength is the longest output line the collector keeps. Longer
// lines are dropped and counted as malformed; the stream keeps going.
const MaxLineLength = 64 * 1024

// CollectorOptions tunes a Collector. Zero values fall back to the defaults
// from the config package.
type CollectorOptions struct {
	Window         time.Duration
	ConnectTimeout time.Duration
	// StaleAfter flags a streaming source with no output for this long.
	// Zero disables the flag.
	StaleAfter time.Duration
	Backoff    Backoff
	// MaxRetries is how many reconnects to try before giving up.
	// Zero retries forever.
	MaxRetries  int
	LogTailSize int
	Clock       Clock
	Metrics     *Metrics
	Logger      logger.Logger
}

func (o CollectorOptions) withDefaults() CollectorOptions {
	if o.Window <= 0 {
		o.Window = config.DefaultWindow
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = config.DefaultConnectTimeout
	}
	if o.Backoff.Initial <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.LogTailSize <= 0 {
		o.LogTailSize = DefaultLogTailSize
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Logger == nil {
		o.Logger = logger.NewEnvLogger("[collector]")
	}
	return o
}

// OptionsFromConfig maps the global config onto collector options.
func OptionsFromConfig(cfg *config.Config) CollectorOptions {
	return CollectorOptions{
		Window:         cfg.Window,
		ConnectTimeout: cfg.ConnectTimeout,
		StaleAfter:     cfg.StaleAfter,
		Backoff: Backoff{
			Initial:    cfg.Reconnect.Initial,
			Max:        cfg.Reconnect.Max,
			Multiplier: cfg.Reconnect.Multiplier,
		},
		MaxRetries: cfg.Reconnect.MaxRetries,
	}
}

// Collector owns the connection to one source. It streams the source's
// command output, parses stdout into its Window and reconnects with backoff
// when the connection or the command goes away.
//
// The source and options are fixed for the collector's lifetime.
type Collector struct {
	source config.Source
	tag    string
	opts   CollectorOptions
	dial   Dialer
	log    logger.Logger

	window *Window
	logs   *LogTail
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	status    Status
	observers []func(StateChange)
}

// NewCollector creates a collector for src. Nothing happens until Run.
func NewCollector(src config.Source, dial Dialer, opts CollectorOptions) *Collector {
	opts = opts.withDefaults()
	return &Collector{
		source: src,
		tag:    src.DisplayTag(),
		opts:   opts,
		dial:   dial,
		log:    opts.Logger,
		window: NewWindow(opts.Window, opts.Clock),
		logs:   NewLogTail(opts.LogTailSize),
		done:   make(chan struct{}),
		status: Status{
			SourceID: src.ID,
			Tag:      src.DisplayTag(),
			State:    Disconnected,
			Since:    opts.Clock.Now(),
		},
	}
}

// ID returns the source id.
func (c *Collector) ID() string { return c.source.ID }

// Source returns the source this collector was built for.
func (c *Collector) Source() config.Source { return c.source }

// Window returns the collector's buffer.
func (c *Collector) Window() *Window { return c.window }

// Snapshot returns the buffered readings, oldest first.
func (c *Collector) Snapshot() []Reading { return c.window.Snapshot() }

// Logs returns up to n of the most recent raw lines.
func (c *Collector) Logs(n int) []LogLine { return c.logs.Last(n) }

// Done is closed when Run returns.
func (c *Collector) Done() <-chan struct{} { return c.done }

// OnStateChange registers fn to be called after every transition. Observers
// run on the collector goroutine and should return quickly.
func (c *Collector) OnStateChange(fn func(StateChange)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Status returns a copy of the current status.
func (c *Collector) Status() Status {
	c.mu.Lock()
	s := c.status
	c.mu.Unlock()

	if s.State == Streaming && c.opts.StaleAfter > 0 && !s.LastData.IsZero() {
		s.Stale = c.opts.Clock.Now().Sub(s.LastData) > c.opts.StaleAfter
	}
	return s
}

// Run connects and streams until ctx is cancelled or retries run out.
// It returns nil on cancellation and the last connection error on Failed.
// Run must be called at most once.
func (c *Collector) Run(ctx context.Context) error {
	defer c.once.Do(func() { close(c.done) })

	attempt := 0
	for {
		c.transition(Connecting, attempt, nil)

		delivered, err := c.session(ctx)
		if ctx.Err() != nil {
			c.transition(Disconnected, 0, nil)
			return nil
		}
		if delivered {
			attempt = 0
		}
		attempt++

		c.transition(Reconnecting, attempt, err)
		if c.opts.MaxRetries > 0 && attempt > c.opts.MaxRetries {
			c.transition(Failed, attempt, err)
			c.log.Error("%s: giving up after %d attempts: %s", c.source.ID, attempt, errors.Summary(err))
			return err
		}

		delay := c.opts.Backoff.Delay(attempt)
		c.log.Info("%s: reconnecting in %s (attempt %d): %s", c.source.ID, delay, attempt, errors.Summary(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.transition(Disconnected, 0, nil)
			return nil
		case <-timer.C:
		}
	}
}

// rawLine is one line read from the remote command. An overlong line
// carries a placeholder text instead of its content.
type rawLine struct {
	stream   Stream
	text     string
	at       time.Time
	overlong bool
}

// session runs one connect-and-stream cycle. ConnectTimeout bounds
// everything up to the first byte of output: dialing, starting the command
// and waiting for it to print. delivered reports whether any output
// arrived, which resets the backoff. The returned error is never nil unless
// ctx was cancelled.
func (c *Collector) session(ctx context.Context) (delivered bool, err error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	client, err := c.dial(connectCtx, c.source)
	if err != nil {
		return false, &ConnectionError{SourceID: c.source.ID, Op: "dial", Err: err}
	}
	defer client.Close()

	// StartStream has no context, so closing the client is how a stalled
	// start or a shutdown mid-stream gets unblocked.
	stopConnectWatch := context.AfterFunc(connectCtx, func() { _ = client.Close() })

	stream, err := client.StartStream(c.source.Command, sshutil.StreamOptions{PTY: c.source.UsePTY()})
	if !stopConnectWatch() {
		if err == nil {
			_ = stream.Close()
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, &ConnectionError{SourceID: c.source.ID, Op: "start", Err: connectCtx.Err()}
	}
	if err != nil {
		return false, &ConnectionError{SourceID: c.source.ID, Op: "start", Err: err}
	}
	defer stream.Close()

	stopShutdownWatch := context.AfterFunc(ctx, func() {
		_ = stream.Close()
		_ = client.Close()
	})
	defer stopShutdownWatch()

	sessionID := uuid.NewString()
	c.log.Debug("%s: command started on %s (session %s)", c.source.ID, client.GetAddress(), sessionID)

	first := make(chan struct{})
	var firstOnce sync.Once
	onFirstByte := func() { firstOnce.Do(func() { close(first) }) }

	lines := make(chan rawLine)
	var wg sync.WaitGroup
	wg.Add(2)
	go c.scan(&firstByteReader{r: stream.Stdout(), fn: onFirstByte}, StreamStdout, lines, &wg)
	go c.scan(&firstByteReader{r: stream.Stderr(), fn: onFirstByte}, StreamStderr, lines, &wg)
	go func() {
		wg.Wait()
		close(lines)
	}()

	deadline := connectCtx.Done()
	silent := false
	streaming := false
	markStreaming := func() {
		if !streaming {
			streaming = true
			deadline = nil
			c.setSession(sessionID)
			c.transition(Streaming, 0, nil)
		}
	}

	for lines != nil {
		select {
		case <-deadline:
			deadline = nil
			if ctx.Err() != nil {
				continue
			}
			// Closing unblocks the readers; lines closes once they return.
			silent = true
			_ = stream.Close()
			_ = client.Close()
		case <-first:
			first = nil
			markStreaming()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			markStreaming()
			c.handleLine(line)
		}
	}

	waitErr := stream.Wait()
	if ctx.Err() != nil {
		return streaming, ctx.Err()
	}
	if silent && !streaming {
		return false, &ConnectionError{SourceID: c.source.ID, Op: "start", Err: errNoOutput}
	}
	if waitErr == nil {
		waitErr = errStreamEnded
	}
	return streaming, &ConnectionError{SourceID: c.source.ID, Op: "stream", Err: waitErr}
}

// scan reads r line by line until EOF and stamps each line on receipt.
// Lines over MaxLineLength are read to their end but only their size is
// kept.
func (c *Collector) scan(r io.Reader, stream Stream, out chan<- rawLine, wg *sync.WaitGroup) {
	defer wg.Done()

	br := bufio.NewReader(r)
	var buf []byte
	size, pending := 0, false

	emit := func() {
		line := rawLine{stream: stream, at: c.opts.Clock.Now()}
		if size > MaxLineLength {
			line.overlong = true
			line.text = fmt.Sprintf("[dropped %d-byte line]", size)
		} else {
			line.text = string(buf)
		}
		out <- line
		buf, size, pending = buf[:0], 0, false
	}

	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if pending {
				emit()
			}
			if err != io.EOF {
				c.log.Warn("%s: %s read error: %v", c.source.ID, stream, err)
			}
			return
		}

		size += len(chunk)
		if size <= MaxLineLength {
			buf = append(buf, chunk...)
		}
		pending = true
		if !isPrefix {
			emit()
		}
	}
}

func (c *Collector) handleLine(line rawLine) {
	c.logs.Push(LogLine{
		Time:     line.at,
		SourceID: c.source.ID,
		Tag:      c.tag,
		Stream:   line.stream,
		Text:     line.text,
	})
	c.opts.Metrics.observeLine(c.source.ID, float64(line.at.UnixNano())/1e9)

	c.mu.Lock()
	c.status.LastData = line.at
	c.mu.Unlock()

	if line.stream == StreamStderr {
		c.log.Warn("%s stderr: %s", c.source.ID, line.text)
		return
	}

	if line.overlong {
		c.countMalformed()
		c.log.Debug("%s: %s", c.source.ID, line.text)
		return
	}

	reading, err := ParseLine(line.text, c.source.ID, line.at)
	if err != nil {
		c.countMalformed()
		c.log.Debug("%s: dropping %v", c.source.ID, err)
		return
	}

	if err := c.window.Append(reading); err != nil {
		c.log.Debug("%s: dropping reading: %v", c.source.ID, err)
		return
	}

	c.mu.Lock()
	c.status.Readings++
	c.mu.Unlock()
	c.opts.Metrics.observeReading(c.source.ID)
	c.opts.Metrics.observeWindow(c.source.ID, c.window.Len())
}

func (c *Collector) countMalformed() {
	c.mu.Lock()
	c.status.Malformed++
	c.mu.Unlock()
	c.opts.Metrics.observeMalformed(c.source.ID)
}

func (c *Collector) setSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.SessionID = id
}

// transition moves to state "to", records it and notifies observers.
// Edges outside the state machine are logged and ignored.
func (c *Collector) transition(to ConnectionState, attempt int, cause error) {
	now := c.opts.Clock.Now()

	c.mu.Lock()
	from := c.status.State
	if from == to {
		c.mu.Unlock()
		return
	}
	if !CanTransition(from, to) {
		c.mu.Unlock()
		c.log.Warn("%s: ignoring invalid transition %s -> %s", c.source.ID, from, to)
		return
	}

	c.status.State = to
	c.status.Since = now
	c.status.Attempt = attempt
	c.status.Err = cause
	c.status.LastError = ""
	if cause != nil {
		c.status.LastError = errors.Summary(cause)
	}
	if to == Reconnecting {
		c.status.Reconnects++
	}
	if to != Streaming {
		c.status.SessionID = ""
	}
	observers := append([]func(StateChange){}, c.observers...)
	c.mu.Unlock()

	c.opts.Metrics.observeState(c.source.ID, to)
	c.logs.Push(LogLine{
		Time:     now,
		SourceID: c.source.ID,
		Tag:      c.tag,
		Stream:   StreamEvent,
		Text:     describeTransition(to, attempt, cause),
	})
	c.log.Debug("%s: %s -> %s", c.source.ID, from, to)

	change := StateChange{SourceID: c.source.ID, From: from, To: to, Attempt: attempt, Err: cause, At: now}
	for _, fn := range observers {
		fn(change)
	}
}

func describeTransition(to ConnectionState, attempt int, cause error) string {
	switch {
	case to == Connecting && attempt > 0:
		return fmt.Sprintf("connecting (retry %d)", attempt)
	case cause != nil:
		return fmt.Sprintf("%s: %s", to, errors.Summary(cause))
	default:
		return to.String()
	}
}

// firstByteReader calls fn the first time a read returns data.
type firstByteReader struct {
	r    io.Reader
	fn   func()
	seen bool
}

func (f *firstByteReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if n > 0 && !f.seen {
		f.seen = true
		f.fn()
	}
	return n, err
}

// IsConnectionError reports whether err came from a connection attempt or session.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return stderrors.As(err, &ce)
}
