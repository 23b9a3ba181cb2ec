package monitor

import (
	"context"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
)

// Dialer opens a connection to a source's host. The collector bounds ctx
// with its connect timeout and closes the returned client when the session ends.
type Dialer func(ctx context.Context, src config.Source) (sshutil.SSHClient, error)

// SSHDialer connects to sources over SSH with their configured credentials.
// Agent keys, ~/.ssh/config identities and default key files are tried
// before the source's password.
type SSHDialer struct {
	// Timeout bounds TCP connect plus handshake. The collector's context
	// deadline still applies when it is shorter.
	Timeout time.Duration
	// KnownHostsFile overrides ~/.ssh/known_hosts.
	KnownHostsFile string
}

// NewSSHDialer creates an SSHDialer with the given handshake timeout.
func NewSSHDialer(timeout time.Duration) *SSHDialer {
	if timeout == 0 {
		timeout = sshutil.DefaultDialTimeout
	}
	return &SSHDialer{Timeout: timeout}
}

// Dial satisfies Dialer.
func (d *SSHDialer) Dial(ctx context.Context, src config.Source) (sshutil.SSHClient, error) {
	client, err := sshutil.DialContext(ctx, src.Host, sshutil.DialOptions{
		User:                  src.Username,
		Password:              src.Password,
		Timeout:               d.Timeout,
		InsecureIgnoreHostKey: src.InsecureHostKey,
		KnownHostsFile:        d.KnownHostsFile,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
