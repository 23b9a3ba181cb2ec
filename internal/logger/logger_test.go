package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the standard logger for the duration of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	prev := CurrentLevel()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		envValue  string
		expectLog bool
	}{
		{"logs at debug level", LevelDebug, "", true},
		{"logs when RADARMON_DEBUG is set", LevelInfo, "1", true},
		{"silent at info level", LevelInfo, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			t.Setenv(DebugEnv, tt.envValue)
			SetLevel(tt.level)

			l := NewEnvLogger("[test]")
			l.Debug("test message %s", "arg")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "[test] DEBUG: test message arg")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	buf := captureLog(t)
	t.Setenv(DebugEnv, "")
	SetLevel(LevelWarn)

	l := NewEnvLogger("[lvl]")
	l.Info("hidden info")
	l.Warn("shown warn %d", 1)
	l.Error("shown error %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "[lvl] WARN: shown warn 1")
	assert.Contains(t, out, "[lvl] ERROR: shown error 2")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigure_File(t *testing.T) {
	prev := CurrentLevel()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		SetLevel(prev)
	})
	t.Setenv(DebugEnv, "")

	path := filepath.Join(t.TempDir(), "radarmon.log")
	closer := Configure(Options{Level: LevelInfo, File: path})

	NewEnvLogger("[file]").Info("written to disk")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[file] written to disk")
}

func TestNoopLogger(t *testing.T) {
	buf := captureLog(t)

	l := Noop()
	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	assert.Empty(t, buf.String())
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	msgs := l.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, LogMessage{Level: "debug", Message: "debug 1"}, msgs[0])
	assert.Equal(t, LogMessage{Level: "error", Message: "error 4"}, msgs[3])

	assert.True(t, l.HasLevel("warn"))
	assert.True(t, l.Contains("info", "info 2"))
	assert.False(t, l.Contains("info", "warn"))

	l.Clear()
	assert.Empty(t, l.Messages())
	assert.False(t, l.HasLevel("warn"))
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Info("worker %d line %d", i, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, l.Messages(), 400)
}

func TestDefaultLogger(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("through default")

	assert.True(t, buf.Contains("info", "through default"))
}
