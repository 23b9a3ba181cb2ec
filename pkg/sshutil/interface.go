package sshutil

import "io"

// SSHClient defines the interface for SSH command execution.
// Both the real Client and mock implementations satisfy this interface.
//
// This interface enables testing of SSH-dependent code without requiring
// actual SSH connections. The mock implementation replays scripted output
// line by line, which is how sensor commands behave.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// StartStream starts a long-running command and returns its output streams.
	// The command keeps running until it exits or the stream is closed.
	StartStream(cmd string, opts StreamOptions) (Stream, error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host/alias used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Stream is a running remote command.
type Stream interface {
	// Stdout returns the command's standard output.
	Stdout() io.Reader

	// Stderr returns the command's standard error. With a PTY the remote side
	// merges stderr into stdout and this reader yields nothing.
	Stderr() io.Reader

	// Wait blocks until the command exits. A non-zero exit is reported as an error.
	Wait() error

	// Close terminates the session, unblocking any pending reads.
	io.Closer
}

// StreamOptions controls how a stream session is set up.
type StreamOptions struct {
	// PTY requests a pseudo-terminal, needed for commands wrapped in sudo.
	PTY bool
	// Term is the terminal type sent with the PTY request. Defaults to "xterm".
	Term string
}
