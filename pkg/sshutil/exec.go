package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/radarmon/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode = 0
	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		} else {
			return nil, nil, -1, errors.WrapWithCode(err, errors.ErrExec,
				fmt.Sprintf("Failed to execute command: %s", cmd),
				"Check if the command exists on the remote host.")
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// StartStream starts cmd on a fresh session and hands back its output pipes.
// The caller must drain Stdout (and Stderr without a PTY) and eventually
// call Close or Wait.
func (c *Client) StartStream(cmd string, opts StreamOptions) (Stream, error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}

	if opts.PTY {
		term := opts.Term
		if term == "" {
			term = "xterm"
		}
		modes := ssh.TerminalModes{
			ssh.ECHO:          0,     // Disable echoing
			ssh.TTY_OP_ISPEED: 14400, // Input speed = 14.4kbaud
			ssh.TTY_OP_OSPEED: 14400, // Output speed = 14.4kbaud
		}
		if err := session.RequestPty(term, 80, 40, modes); err != nil {
			session.Close()
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Failed to allocate PTY",
				"The remote host may not support pseudo-terminals. Set pty: false for this source.")
		}
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrExec, "Failed to attach to stdout", "")
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrExec, "Failed to attach to stderr", "")
	}

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to start command: %s", cmd),
			"Check if the command exists on the remote host.")
	}

	return &sessionStream{session: session, stdout: stdout, stderr: stderr, cmd: cmd}, nil
}

// sessionStream adapts an ssh.Session to the Stream interface.
type sessionStream struct {
	session *ssh.Session
	stdout  io.Reader
	stderr  io.Reader
	cmd     string

	closeOnce sync.Once
	closeErr  error
}

func (s *sessionStream) Stdout() io.Reader { return s.stdout }
func (s *sessionStream) Stderr() io.Reader { return s.stderr }

func (s *sessionStream) Wait() error {
	err := s.session.Wait()
	if err == nil {
		return nil
	}

	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Command exited with status %d: %s", exitErr.ExitStatus(), s.cmd),
			"Run the command by hand on the host to see what it prints.")
	}
	var missing *ssh.ExitMissingError
	if stderrors.As(err, &missing) {
		return errors.WrapWithCode(err, errors.ErrStream,
			"Stream ended without an exit status",
			"The connection probably dropped.")
	}
	return errors.WrapWithCode(err, errors.ErrStream, "Stream ended unexpectedly", "")
}

// Close asks the remote command to stop and tears the session down.
func (s *sessionStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.session.Signal(ssh.SIGTERM)
		s.closeErr = s.session.Close()
		if stderrors.Is(s.closeErr, io.EOF) {
			s.closeErr = nil
		}
	})
	return s.closeErr
}
