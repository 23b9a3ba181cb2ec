package doctor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/radarmon/internal/util"
	"golang.org/x/crypto/ssh/agent"
)

var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// SSHKeyCheck verifies an SSH key exists.
type SSHKeyCheck struct {
	// Home overrides the user's home directory.
	Home string
}

func (c *SSHKeyCheck) Name() string     { return "ssh_key" }
func (c *SSHKeyCheck) Category() string { return "SSH" }

func (c *SSHKeyCheck) Run() CheckResult {
	home, err := homeDir(c.Home)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot determine home directory",
			Suggestion: "Check HOME environment variable",
		}
	}

	for _, name := range defaultKeyNames {
		if _, err := os.Stat(filepath.Join(home, ".ssh", name+".pub")); err == nil {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: fmt.Sprintf("SSH key found: ~/.ssh/%s.pub", name),
			}
		}
	}

	// Password-only sources still work, so a missing key is not fatal.
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusWarn,
		Message:    "No SSH key found",
		Suggestion: "Generate a key with: ssh-keygen -t ed25519, or set a password on each source",
	}
}

// SSHAgentCheck verifies the SSH agent is running and holds keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run() CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Fix: eval $(ssh-agent) && ssh-add",
		}
	}
	defer conn.Close() //nolint:errcheck // Best-effort close, error not actionable

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check SSH agent: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", len(keys), util.Pluralize(len(keys), "key", "keys")),
	}
}

// SSHKeyPermissionsCheck verifies SSH private key file permissions.
type SSHKeyPermissionsCheck struct {
	// Home overrides the user's home directory.
	Home string
}

func (c *SSHKeyPermissionsCheck) Name() string     { return "ssh_key_permissions" }
func (c *SSHKeyPermissionsCheck) Category() string { return "SSH" }

func (c *SSHKeyPermissionsCheck) Run() CheckResult {
	home, err := homeDir(c.Home)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Skipped: no home directory",
		}
	}

	var badPerms []string
	var foundKey bool

	for _, name := range defaultKeyNames {
		info, err := os.Stat(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		foundKey = true

		// ssh refuses keys readable by group or others
		if info.Mode().Perm()&0077 != 0 {
			badPerms = append(badPerms, name)
		}
	}

	if !foundKey {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No private keys to check",
		}
	}

	if len(badPerms) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions on: %s", util.JoinOrNone(badPerms)),
			Suggestion: "Fix: chmod 600 ~/.ssh/<keyfile>",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "SSH key permissions OK",
	}
}

func homeDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return os.UserHomeDir()
}

// NewSSHChecks creates all SSH-related checks.
func NewSSHChecks() []Check {
	return []Check{
		&SSHKeyCheck{},
		&SSHAgentCheck{},
		&SSHKeyPermissionsCheck{},
	}
}
