package testing

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/rileyhilliard/radarmon/pkg/sshutil"
)

// ErrClosed is returned by a MockClient after Close.
var ErrClosed = errors.New("connection closed")

// CommandResponse defines a canned response for a specific command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// StreamScript describes what a mocked long-running command prints.
type StreamScript struct {
	// Stdout lines are written in order, each followed by "\n".
	Stdout []string
	// Stderr lines are written after Stdout.
	Stderr []string
	// Lines, when set, supplies extra stdout lines after Stdout until closed.
	// Tests use it to control exactly when data arrives.
	Lines <-chan string
	// Interval is the pause before each scripted stdout line.
	Interval time.Duration
	// Hold keeps the stream open after the script ends until it is closed.
	Hold bool
	// ExitErr is what Wait returns once output is done.
	ExitErr error
	// StartErr makes StartStream fail outright.
	StartErr error
}

// MockClient simulates an SSH connection for testing.
// Exec returns canned responses; StartStream replays scripted output.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	commands map[string]CommandResponse // pattern -> response
	streams  map[string]StreamScript    // pattern -> script
	started  []string
	open     []*MockStream
}

// NewMockClient creates a new mock SSH client.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		commands: make(map[string]CommandResponse),
		streams:  make(map[string]StreamScript),
	}
}

// Exec returns the response registered for cmd.
// Unknown commands exit 127, like a shell would.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, ErrClosed
	}

	if resp, ok := lookup(m.commands, cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	return nil, []byte(fmt.Sprintf("sh: %s: command not found\n", cmd)), 127, nil
}

// StartStream begins replaying the script registered for cmd.
func (m *MockClient) StartStream(cmd string, opts sshutil.StreamOptions) (sshutil.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	script, ok := lookup(m.streams, cmd)
	if !ok {
		return nil, fmt.Errorf("no stream scripted for %q", cmd)
	}
	if script.StartErr != nil {
		return nil, script.StartErr
	}

	m.started = append(m.started, cmd)
	s := newMockStream(script)
	m.open = append(m.open, s)
	return s, nil
}

// Close marks the connection as closed and ends every open stream.
func (m *MockClient) Close() error {
	m.mu.Lock()
	open := m.open
	m.open = nil
	m.closed = true
	m.mu.Unlock()

	for _, s := range open {
		_ = s.Close()
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// SetStream registers a script for commands matching pattern.
// The pattern can be an exact string or a regex pattern.
func (m *MockClient) SetStream(pattern string, script StreamScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[pattern] = script
}

// StartedStreams returns the commands passed to StartStream, in order.
func (m *MockClient) StartedStreams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...)
}

// lookup checks for an exact match first, then regex patterns.
func lookup[T any](table map[string]T, cmd string) (T, bool) {
	if v, ok := table[cmd]; ok {
		return v, true
	}
	for pattern, v := range table {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// MockStream is the sshutil.Stream returned by MockClient.StartStream.
type MockStream struct {
	stdoutR, stderrR *io.PipeReader
	stdoutW, stderrW *io.PipeWriter

	script StreamScript
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newMockStream(script StreamScript) *MockStream {
	s := &MockStream{
		script: script,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	s.stdoutR, s.stdoutW = io.Pipe()
	s.stderrR, s.stderrW = io.Pipe()
	go s.run()
	return s
}

func (s *MockStream) run() {
	defer close(s.done)
	defer s.stdoutW.Close()
	defer s.stderrW.Close()

	for _, line := range s.script.Stdout {
		if !s.pause(s.script.Interval) {
			return
		}
		if _, err := io.WriteString(s.stdoutW, line+"\n"); err != nil {
			return
		}
	}
	for _, line := range s.script.Stderr {
		if _, err := io.WriteString(s.stderrW, line+"\n"); err != nil {
			return
		}
	}
	if s.script.Lines != nil && !s.feed() {
		return
	}
	if s.script.Hold {
		<-s.closed
	}
}

// feed copies lines from the script channel until it closes. It returns
// false if the stream was closed first.
func (s *MockStream) feed() bool {
	for {
		select {
		case <-s.closed:
			return false
		case line, ok := <-s.script.Lines:
			if !ok {
				return true
			}
			if _, err := io.WriteString(s.stdoutW, line+"\n"); err != nil {
				return false
			}
		}
	}
}

func (s *MockStream) pause(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.closed:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.closed:
		return false
	case <-t.C:
		return true
	}
}

// Stdout returns the scripted standard output.
func (s *MockStream) Stdout() io.Reader { return s.stdoutR }

// Stderr returns the scripted standard error.
func (s *MockStream) Stderr() io.Reader { return s.stderrR }

// Wait blocks until the script finishes or the stream is closed.
func (s *MockStream) Wait() error {
	<-s.done
	select {
	case <-s.closed:
		return ErrClosed
	default:
		return s.script.ExitErr
	}
}

// Close ends the stream. Pending reads see io.EOF.
func (s *MockStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		_ = s.stdoutW.Close()
		_ = s.stderrW.Close()
	})
	return nil
}
