package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
)

// RequireSSH skips the test if the SSH test server isn't configured.
func RequireSSH(t *testing.T) {
	t.Helper()
	if os.Getenv("RADARMON_TEST_SSH_HOST") == "" {
		t.Skip("Skipping: RADARMON_TEST_SSH_HOST not set (SSH test server not available)")
	}
}

// GetTestSSHHost returns the test server, e.g. "testuser@localhost:2222".
func GetTestSSHHost() string {
	return os.Getenv("RADARMON_TEST_SSH_HOST")
}

// testSource builds a source on the test server running command.
// Host keys aren't checked since the test server's key changes per run.
func testSource(id, command string) config.Source {
	noPTY := false
	return config.Source{
		ID:              id,
		Host:            GetTestSSHHost(),
		Password:        os.Getenv("RADARMON_TEST_SSH_PASSWORD"),
		Command:         command,
		PTY:             &noPTY,
		InsecureHostKey: true,
	}
}

// GetSSHConnection establishes a real SSH connection for integration tests.
// The connection is closed when the test ends.
func GetSSHConnection(t *testing.T) sshutil.SSHClient {
	t.Helper()
	RequireSSH(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := monitor.NewSSHDialer(10*time.Second).Dial(ctx, testSource("reachability", "true"))
	if err != nil {
		t.Fatalf("Failed to connect to test SSH server: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})
	return client
}
