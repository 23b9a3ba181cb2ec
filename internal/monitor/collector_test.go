package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/radarmon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const radarCmd = `sudo RADAR_DEBUG=1 seamless_dev_spi spi.mode="presence"`

func testSource(id string) config.Source {
	return config.Source{ID: id, Host: "fio@" + id, Command: radarCmd, Tag: "Sentai"}
}

func fastOptions(log logger.Logger) CollectorOptions {
	return CollectorOptions{
		ConnectTimeout: time.Second,
		Backoff:        Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
		Logger:         log,
	}
}

func dialerFrom(d *sshtesting.Dialer) Dialer {
	return func(ctx context.Context, _ config.Source) (sshutil.SSHClient, error) {
		return d.Dial(ctx)
	}
}

func streamingClient(host string, script sshtesting.StreamScript) *sshtesting.MockClient {
	c := sshtesting.NewMockClient(host)
	c.SetStream(radarCmd, script)
	return c
}

// changeRecorder collects state changes from a collector's observer.
type changeRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *changeRecorder) observe(c StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) edges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.From.String() + "->" + c.To.String()
	}
	return out
}

func (r *changeRecorder) first(to ConnectionState) (StateChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.To == to {
			return c, true
		}
	}
	return StateChange{}, false
}

// startCollector runs c until the test ends and returns a cancel func plus
// the channel Run's result arrives on.
func startCollector(t *testing.T, c *Collector) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Error("collector did not stop")
		}
	})
	return cancel, errCh
}

func waitDone(t *testing.T, c *Collector) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestCollector_StreamsReadings(t *testing.T) {
	client := streamingClient("host-1", sshtesting.StreamScript{
		Stdout: []string{"1 0.652001", "1 0.652001", "0 0.000000", "abc def", "1 0.845123"},
		Hold:   true,
	})
	log := logger.NewBufferLogger()
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), fastOptions(log))

	cancel, errCh := startCollector(t, c)

	require.Eventually(t, func() bool {
		s := c.Status()
		return s.Readings == 4 && s.Malformed == 1
	}, 2*time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.Equal(t, Streaming, status.State)
	assert.Equal(t, "Sentai", status.Tag)
	assert.False(t, status.LastData.IsZero())
	_, err := uuid.Parse(status.SessionID)
	assert.NoError(t, err, "session id should be a uuid")

	snap := c.Snapshot()
	require.Len(t, snap, 4)
	var presence []bool
	for i, r := range snap {
		presence = append(presence, r.Presence)
		assert.Equal(t, "host-1", r.SourceID)
		if i > 0 {
			assert.False(t, r.Timestamp.Before(snap[i-1].Timestamp))
		}
	}
	assert.Equal(t, []bool{true, true, false, true}, presence)
	assert.Equal(t, 0.845123, snap[3].Distance)

	// Raw lines, malformed included, go to the log tail.
	var texts []string
	for _, l := range c.Logs(50) {
		if l.Stream == StreamStdout {
			texts = append(texts, l.Text)
		}
	}
	assert.Contains(t, texts, "abc def")
	assert.Len(t, texts, 5)

	assert.Equal(t, []string{radarCmd}, client.StartedStreams())

	cancel()
	waitDone(t, c)
	assert.NoError(t, <-errCh)
	assert.Equal(t, Disconnected, c.Status().State)
	assert.True(t, client.Closed(), "shutdown closes the connection")
	assert.Len(t, c.Snapshot(), 4, "readings outlive the connection")
}

func TestCollector_StderrIsLoggedNotParsed(t *testing.T) {
	client := streamingClient("host-1", sshtesting.StreamScript{
		Stdout: []string{"1 0.5"},
		Stderr: []string{"spi: init ok"},
		Hold:   true,
	})
	log := logger.NewBufferLogger()
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), fastOptions(log))
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return log.Contains("warn", "spi: init ok")
	}, 2*time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.Equal(t, uint64(1), status.Readings)
	assert.Equal(t, uint64(0), status.Malformed)

	var stderr []LogLine
	for _, l := range c.Logs(50) {
		if l.Stream == StreamStderr {
			stderr = append(stderr, l)
		}
	}
	require.Len(t, stderr, 1)
	assert.Equal(t, "Sentai", stderr[0].Tag)
}

func TestCollector_ReconnectsAfterEOF(t *testing.T) {
	first := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}})
	second := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.6"}, Hold: true})
	dialer := sshtesting.NewDialer(first, second)

	c := NewCollector(testSource("host-1"), dialerFrom(dialer), fastOptions(logger.NewBufferLogger()))
	rec := &changeRecorder{}
	c.OnStateChange(rec.observe)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().Readings == 2 && c.Status().State == Streaming
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{
		"disconnected->connecting",
		"connecting->streaming",
		"streaming->reconnecting",
		"reconnecting->connecting",
		"connecting->streaming",
	}, rec.edges())

	reconnect, ok := rec.first(Reconnecting)
	require.True(t, ok)
	assert.Equal(t, 1, reconnect.Attempt)
	assert.True(t, IsConnectionError(reconnect.Err))
	assert.Equal(t, "host-1", reconnect.SourceID)

	assert.Len(t, c.Snapshot(), 2, "the drop must not lose buffered readings")
	assert.Equal(t, 1, c.Status().Reconnects)
	assert.Equal(t, 2, dialer.Dials())
}

func TestCollector_DialFailureBacksOff(t *testing.T) {
	dialErr := errors.New("connection refused")
	client := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})
	dialer := sshtesting.NewDialer(client).FailNext(dialErr).FailNext(dialErr)

	c := NewCollector(testSource("host-1"), dialerFrom(dialer), fastOptions(logger.NewBufferLogger()))
	rec := &changeRecorder{}
	c.OnStateChange(rec.observe)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().State == Streaming
	}, 2*time.Second, 5*time.Millisecond)

	reconnect, ok := rec.first(Reconnecting)
	require.True(t, ok)
	assert.ErrorIs(t, reconnect.Err, dialErr)

	var ce *ConnectionError
	require.ErrorAs(t, reconnect.Err, &ce)
	assert.Equal(t, "dial", ce.Op)

	edges := rec.edges()
	assert.Equal(t, []string{
		"disconnected->connecting",
		"connecting->reconnecting",
		"reconnecting->connecting",
		"connecting->reconnecting",
		"reconnecting->connecting",
		"connecting->streaming",
	}, edges)
	assert.Equal(t, 3, dialer.Dials())
}

func TestCollector_StartFailure(t *testing.T) {
	startErr := errors.New("sudo: a terminal is required")
	bad := streamingClient("host-1", sshtesting.StreamScript{StartErr: startErr})
	good := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})

	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(bad, good)), fastOptions(logger.NewBufferLogger()))
	rec := &changeRecorder{}
	c.OnStateChange(rec.observe)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().State == Streaming
	}, 2*time.Second, 5*time.Millisecond)

	reconnect, ok := rec.first(Reconnecting)
	require.True(t, ok)
	var ce *ConnectionError
	require.ErrorAs(t, reconnect.Err, &ce)
	assert.Equal(t, "start", ce.Op)
	assert.ErrorIs(t, reconnect.Err, startErr)
	assert.True(t, bad.Closed(), "a failed start closes its connection")
}

func TestCollector_ConnectTimeout(t *testing.T) {
	hang := func(ctx context.Context, _ config.Source) (sshutil.SSHClient, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	opts := fastOptions(logger.NewBufferLogger())
	opts.ConnectTimeout = 20 * time.Millisecond
	opts.Backoff = Backoff{Initial: time.Hour, Max: time.Hour, Multiplier: 2}

	c := NewCollector(testSource("host-2"), hang, opts)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().State == Reconnecting
	}, 2*time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.ErrorIs(t, status.Err, context.DeadlineExceeded)
	assert.NotEmpty(t, status.LastError)
	assert.Equal(t, 1, status.Attempt)
}

func TestCollector_SilentCommandTimesOut(t *testing.T) {
	quiet := streamingClient("host-1", sshtesting.StreamScript{Hold: true})

	opts := fastOptions(logger.NewBufferLogger())
	opts.ConnectTimeout = 50 * time.Millisecond
	opts.Backoff = Backoff{Initial: time.Hour, Max: time.Hour, Multiplier: 2}
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(quiet)), opts)
	rec := &changeRecorder{}
	c.OnStateChange(rec.observe)
	startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().State == Reconnecting
	}, 2*time.Second, 5*time.Millisecond)

	status := c.Status()
	var ce *ConnectionError
	require.ErrorAs(t, status.Err, &ce)
	assert.Equal(t, "start", ce.Op)
	assert.ErrorIs(t, status.Err, errNoOutput)
	assert.Equal(t, 1, status.Attempt)
	assert.Empty(t, status.SessionID)
	assert.True(t, quiet.Closed(), "a silent command's connection is closed")
	assert.Equal(t, []string{"disconnected->connecting", "connecting->reconnecting"}, rec.edges())
}

func TestCollector_OutputBeforeTimeoutKeepsStreaming(t *testing.T) {
	lines := make(chan string)
	client := streamingClient("host-1", sshtesting.StreamScript{Lines: lines, Hold: true})

	opts := fastOptions(logger.NewBufferLogger())
	opts.ConnectTimeout = 50 * time.Millisecond
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), opts)
	startCollector(t, c)

	lines <- "1 0.5"
	require.Eventually(t, func() bool {
		return c.Status().Readings == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Quiet well past the connect timeout once streaming.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, Streaming, c.Status().State)

	lines <- "1 0.6"
	require.Eventually(t, func() bool {
		return c.Status().Readings == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCollector_OverlongLineIsDropped(t *testing.T) {
	tests := []struct {
		name      string
		long      string
		readings  uint64
		malformed uint64
	}{
		{"over the limit", strings.Repeat("x", 70*1024), 3, 1},
		{"far over the limit", "1 " + strings.Repeat("9", 300*1024), 3, 1},
		{"exactly the limit", "1 0.55" + strings.Repeat(" ", MaxLineLength-6), 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := streamingClient("host-1", sshtesting.StreamScript{
				Stdout: []string{"1 0.5", tt.long, "1 0.6", "1 0.7"},
				Hold:   true,
			})
			c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), fastOptions(logger.NewBufferLogger()))
			startCollector(t, c)

			require.Eventually(t, func() bool {
				s := c.Status()
				return s.Readings+s.Malformed == tt.readings+tt.malformed
			}, 2*time.Second, 5*time.Millisecond)

			status := c.Status()
			assert.Equal(t, tt.readings, status.Readings)
			assert.Equal(t, tt.malformed, status.Malformed)
			assert.Equal(t, Streaming, status.State, "the session survives")

			snap := c.Snapshot()
			assert.Equal(t, 0.7, snap[len(snap)-1].Distance)
		})
	}
}

func TestCollector_FailsAfterMaxRetries(t *testing.T) {
	dialer := sshtesting.NewDialer()
	dialer.Err = errors.New("no route to host")

	opts := fastOptions(logger.NewBufferLogger())
	opts.MaxRetries = 2
	c := NewCollector(testSource("host-1"), dialerFrom(dialer), opts)
	rec := &changeRecorder{}
	c.OnStateChange(rec.observe)

	_, errCh := startCollector(t, c)
	waitDone(t, c)

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, dialer.Err)
	assert.Equal(t, Failed, c.Status().State)
	assert.Equal(t, 3, dialer.Dials(), "first attempt plus two retries")

	edges := rec.edges()
	assert.Equal(t, "reconnecting->failed", edges[len(edges)-1])
}

func TestCollector_ShutdownDuringBackoff(t *testing.T) {
	dialer := sshtesting.NewDialer()
	dialer.Err = errors.New("host down")

	opts := fastOptions(logger.NewBufferLogger())
	opts.Backoff = Backoff{Initial: time.Hour, Max: time.Hour, Multiplier: 2}
	c := NewCollector(testSource("host-1"), dialerFrom(dialer), opts)
	cancel, errCh := startCollector(t, c)

	require.Eventually(t, func() bool {
		return c.Status().State == Reconnecting
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	waitDone(t, c)
	assert.NoError(t, <-errCh)
	assert.Equal(t, Disconnected, c.Status().State)
}

func TestCollector_StaleFlag(t *testing.T) {
	clock := newFakeClock(epoch)
	lines := make(chan string)
	client := streamingClient("host-1", sshtesting.StreamScript{Lines: lines, Hold: true})

	opts := fastOptions(logger.NewBufferLogger())
	opts.Clock = clock
	opts.StaleAfter = 10 * time.Second
	c := NewCollector(testSource("host-1"), dialerFrom(sshtesting.NewDialer(client)), opts)
	startCollector(t, c)

	lines <- "1 0.5"
	require.Eventually(t, func() bool {
		return c.Status().Readings == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Status().Connected())

	clock.Advance(10 * time.Second)
	assert.False(t, c.Status().Stale, "exactly stale_after is not stale yet")

	clock.Advance(time.Second)
	status := c.Status()
	assert.True(t, status.Stale)
	assert.False(t, status.Connected())
	assert.Equal(t, Streaming, status.State, "stale is a flag, not a state")

	lines <- "1 0.6"
	require.Eventually(t, func() bool {
		return !c.Status().Stale
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCollector_EventsInLogTail(t *testing.T) {
	dialer := sshtesting.NewDialer()
	dialer.Err = errors.New("host down")

	opts := fastOptions(logger.NewBufferLogger())
	opts.MaxRetries = 1
	c := NewCollector(testSource("host-1"), dialerFrom(dialer), opts)
	startCollector(t, c)
	waitDone(t, c)

	var events []string
	for _, l := range c.Logs(50) {
		if l.Stream == StreamEvent {
			events = append(events, l.Text)
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "connecting", events[0])
	assert.Contains(t, events[len(events)-1], "failed")
	assert.Contains(t, events[len(events)-1], "host down")
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconnect.MaxRetries = 7
	cfg.StaleAfter = 3 * time.Second

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, cfg.Window, opts.Window)
	assert.Equal(t, 7, opts.MaxRetries)
	assert.Equal(t, 3*time.Second, opts.StaleAfter)
	assert.Equal(t, DefaultBackoff, opts.Backoff)
}
