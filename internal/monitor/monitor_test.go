package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	internalerrors "github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
	sshtesting "github.com/rileyhilliard/radarmon/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(sources ...config.Source) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Tick = 5 * time.Millisecond
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.ShutdownGrace = 2 * time.Second
	cfg.Reconnect = config.ReconnectConfig{Initial: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2}
	cfg.Sources = sources
	return cfg
}

// routeDialer dials each source through its own function.
func routeDialer(routes map[string]Dialer) Dialer {
	return func(ctx context.Context, src config.Source) (sshutil.SSHClient, error) {
		return routes[src.ID](ctx, src)
	}
}

func hangingDialer(ctx context.Context, _ config.Source) (sshutil.SSHClient, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func runMonitor(t *testing.T, m *Monitor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func seriesByID(v View, id string) (Series, bool) {
	for _, s := range v.Series {
		if s.SourceID == id {
			return s, true
		}
	}
	return Series{}, false
}

func TestMonitor_OneSourceTimesOut(t *testing.T) {
	client := streamingClient("host-1", sshtesting.StreamScript{
		Stdout: []string{"1 0.652001", "1 0.652001", "0 0.000000", "1 0.845123"},
		Hold:   true,
	})
	display := &recordingDisplay{}

	cfg := testConfig(testSource("host-1"), testSource("host-2"))
	// Keep host-2 parked in Reconnecting once its first attempt times out.
	cfg.Reconnect.Initial = time.Hour
	cfg.Reconnect.Max = time.Hour

	m, err := New(cfg, Options{
		Dialer: routeDialer(map[string]Dialer{
			"host-1": dialerFrom(sshtesting.NewDialer(client)),
			"host-2": hangingDialer,
		}),
		Display: display,
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)
	runMonitor(t, m)

	require.Eventually(t, func() bool {
		v := display.Latest()
		a, okA := seriesByID(v, "host-1")
		b, okB := seriesByID(v, "host-2")
		return okA && okB && len(a.Points) == 3 && b.Status.State == Reconnecting
	}, 3*time.Second, 5*time.Millisecond)

	v := display.Latest()
	require.Len(t, v.Series, 2)
	assert.Equal(t, "host-1", v.Series[0].SourceID, "series follow config order")
	assert.Equal(t, Streaming, v.Series[0].Status.State)
	assert.Empty(t, v.Series[1].Points)
	assert.Empty(t, v.Series[1].Readings)
	assert.ErrorIs(t, v.Series[1].Status.Err, context.DeadlineExceeded)
	assert.Equal(t, 1, v.Connected())
}

func TestMonitor_ShutdownWithinGrace(t *testing.T) {
	a := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})
	b := streamingClient("host-2", sshtesting.StreamScript{Stdout: []string{"1 0.7"}, Hold: true})
	display := &recordingDisplay{}

	m, err := New(testConfig(testSource("host-1"), testSource("host-2")), Options{
		Dialer: routeDialer(map[string]Dialer{
			"host-1": dialerFrom(sshtesting.NewDialer(a)),
			"host-2": dialerFrom(sshtesting.NewDialer(b)),
		}),
		Display: display,
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)
	cancel, errCh := runMonitor(t, m)

	require.Eventually(t, func() bool {
		return display.Latest().Connected() == 2
	}, 3*time.Second, 5*time.Millisecond)

	start := time.Now()
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(m.Config().ShutdownGrace + time.Second):
		t.Fatal("monitor did not stop within the grace period")
	}
	assert.Less(t, time.Since(start), m.Config().ShutdownGrace)

	for _, c := range m.Collectors() {
		select {
		case <-c.Done():
		default:
			t.Errorf("collector %s still running", c.ID())
		}
		assert.Equal(t, Disconnected, c.Status().State)
	}
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())

	ticks := display.Count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, display.Count(), "render loop stopped")
}

func TestMonitor_PermanentFailureIsIsolated(t *testing.T) {
	lines := make(chan string)
	healthy := streamingClient("host-2", sshtesting.StreamScript{Lines: lines, Hold: true})
	broken := sshtesting.NewDialer()
	broken.Err = errors.New("permission denied (publickey,password)")

	cfg := testConfig(testSource("host-1"), testSource("host-2"))
	cfg.Reconnect.MaxRetries = 1
	// host-2 prints only when the test feeds it.
	cfg.ConnectTimeout = time.Second

	m, err := New(cfg, Options{
		Dialer: routeDialer(map[string]Dialer{
			"host-1": dialerFrom(broken),
			"host-2": dialerFrom(sshtesting.NewDialer(healthy)),
		}),
		Display: &recordingDisplay{},
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)
	runMonitor(t, m)

	sourceA, sourceB := m.Collectors()[0], m.Collectors()[1]
	for i := 0; i < 5; i++ {
		lines <- "1 0.5"
	}
	require.Eventually(t, func() bool { return sourceA.Status().State == Failed }, 3*time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		lines <- "0 0.0"
	}
	require.Eventually(t, func() bool { return sourceB.Window().Len() == 10 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, Streaming, sourceB.Status().State)
	assert.Empty(t, sourceA.Snapshot())
}

func TestMonitor_InvalidSourceIsIsolated(t *testing.T) {
	good := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})
	missingCommand := config.Source{ID: "host-2", Host: "fio@host-2", Tag: "Broken"}
	display := &recordingDisplay{}

	m, err := New(testConfig(missingCommand, testSource("host-1")), Options{
		Dialer:  dialerFrom(sshtesting.NewDialer(good)),
		Display: display,
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)
	require.Len(t, m.Invalid(), 1)
	require.Len(t, m.Collectors(), 1)

	feeds := m.Feeds()
	require.Len(t, feeds, 2)
	assert.Equal(t, "host-2", feeds[0].ID(), "failed placeholder keeps its config position")
	assert.Equal(t, "host-1", feeds[1].ID())

	status := feeds[0].Status()
	assert.Equal(t, Failed, status.State)
	assert.Equal(t, "Broken", status.Tag)
	assert.True(t, internalerrors.IsCode(status.Err, internalerrors.ErrConfig))
	assert.Contains(t, status.LastError, "command")

	runMonitor(t, m)
	require.Eventually(t, func() bool {
		s, ok := seriesByID(display.Latest(), "host-1")
		return ok && len(s.Points) == 1
	}, 3*time.Second, 5*time.Millisecond)

	broken, ok := seriesByID(display.Latest(), "host-2")
	require.True(t, ok)
	assert.Equal(t, Failed, broken.Status.State)
}

func TestMonitor_InvalidGlobalsAreFatal(t *testing.T) {
	cfg := testConfig(testSource("host-1"))
	cfg.Window = 0

	_, err := New(cfg, Options{})
	require.Error(t, err)
	assert.True(t, internalerrors.IsCode(err, internalerrors.ErrConfig))
}

func TestMonitor_CollectionOnly(t *testing.T) {
	client := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})
	rec := &changeRecorder{}

	m, err := New(testConfig(testSource("host-1")), Options{
		Dialer:        dialerFrom(sshtesting.NewDialer(client)),
		Logger:        logger.NewBufferLogger(),
		OnStateChange: rec.observe,
	})
	require.NoError(t, err)
	assert.Nil(t, m.Aggregator(), "no render loop without a display")

	cancel, errCh := runMonitor(t, m)
	require.Eventually(t, func() bool {
		_, ok := rec.first(Streaming)
		return ok
	}, 3*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestMonitor_AllSourcesFailed(t *testing.T) {
	dialer := sshtesting.NewDialer()
	dialer.Err = errors.New("no route to host")
	cfg := testConfig(testSource("host-1"))
	cfg.Reconnect.MaxRetries = 1

	m, err := New(cfg, Options{Dialer: dialerFrom(dialer), Logger: logger.NewBufferLogger()})
	require.NoError(t, err)

	_, errCh := runMonitor(t, m)
	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "No source is running")
	case <-time.After(3 * time.Second):
		t.Fatal("monitor kept running with every source failed")
	}
}

func TestMonitor_AllSourcesFailedPublishesFinalFrame(t *testing.T) {
	dialer := sshtesting.NewDialer()
	dialer.Err = errors.New("no route to host")
	cfg := testConfig(testSource("host-1"), testSource("host-2"))
	cfg.Reconnect.MaxRetries = 1
	// Only the first and last frames get published.
	cfg.Tick = time.Minute
	display := &recordingDisplay{}

	m, err := New(cfg, Options{
		Dialer:  dialerFrom(dialer),
		Display: display,
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)

	_, errCh := runMonitor(t, m)
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor kept running with every source failed")
	}

	v := display.Latest()
	require.Len(t, v.Series, 2)
	for _, s := range v.Series {
		assert.Equal(t, Failed, s.Status.State, "last frame shows %s as failed", s.SourceID)
		assert.Contains(t, s.Status.LastError, "no route to host")
	}
	assert.Equal(t, 2, display.Count())
}

func TestMonitor_InvalidSourceRendersEmptyReadings(t *testing.T) {
	good := streamingClient("host-1", sshtesting.StreamScript{Stdout: []string{"1 0.5"}, Hold: true})
	missingCommand := config.Source{ID: "host-2", Host: "fio@host-2"}

	m, err := New(testConfig(testSource("host-1"), missingCommand), Options{
		Dialer:  dialerFrom(sshtesting.NewDialer(good)),
		Display: &recordingDisplay{},
		Logger:  logger.NewBufferLogger(),
	})
	require.NoError(t, err)

	data, err := json.Marshal(m.Aggregator().Build())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"readings":null`)

	var decoded struct {
		Series []struct {
			SourceID string            `json:"source_id"`
			Readings []json.RawMessage `json:"readings"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Series, 2)
	assert.Equal(t, "host-2", decoded.Series[1].SourceID)
	assert.NotNil(t, decoded.Series[1].Readings)
	assert.Empty(t, decoded.Series[1].Readings)
}
