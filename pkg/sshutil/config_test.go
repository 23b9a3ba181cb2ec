package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSSHConfig writes content as an ssh config under a fresh HOME with no
// default keys.
func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".ssh", "config")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestAliasesFromFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host radar-right radar-right-alt
    HostName 192.168.0.59
    User fio

Host radar-left
    HostName 192.168.0.58
    User fio
    Port 2222
    IdentityFile ~/.ssh/id_radar

Host radar-right
    User ignored

Host *
    ServerAliveInterval 15

Host pi-?
    User pi

Match host bastion
    User jump

Host after-match
    HostName 10.0.0.1
`)

	aliases, err := AliasesFromFile(path)
	require.NoError(t, err)

	var names []string
	for _, a := range aliases {
		names = append(names, a.Alias)
	}
	assert.Equal(t, []string{"radar-left", "radar-right", "radar-right-alt"}, names,
		"sorted, concrete patterns only, nothing past Match")

	left := aliases[0]
	assert.Equal(t, "192.168.0.58", left.HostName)
	assert.Equal(t, "2222", left.Port)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".ssh", "id_radar"), left.Identity)

	assert.Equal(t, "fio", aliases[1].User, "first matching block wins")
	assert.Equal(t, "192.168.0.59", aliases[2].HostName)
}

func TestAliasesFromFile_Missing(t *testing.T) {
	aliases, err := AliasesFromFile(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestAliasesFromFile_NoHosts(t *testing.T) {
	path := writeSSHConfig(t, "# just comments\n\nHost *\n    ForwardAgent no\n")

	aliases, err := AliasesFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestConfigAliases_ReadsHome(t *testing.T) {
	writeSSHConfig(t, "Host radar\n    HostName 192.168.0.58\n")

	aliases, err := ConfigAliases()
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "radar", aliases[0].Alias)
}

func TestHostAlias_Target(t *testing.T) {
	tests := []struct {
		name  string
		alias HostAlias
		want  string
	}{
		{"alias only", HostAlias{Alias: "radar"}, "radar"},
		{"hostname", HostAlias{Alias: "radar", HostName: "192.168.0.58"}, "192.168.0.58"},
		{"user", HostAlias{Alias: "radar", HostName: "192.168.0.58", User: "fio"}, "fio@192.168.0.58"},
		{"default port hidden", HostAlias{Alias: "radar", User: "fio", Port: "22"}, "fio@radar"},
		{"custom port", HostAlias{Alias: "radar", HostName: "10.0.0.5", Port: "2222"}, "10.0.0.5:2222"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alias.Target())
		})
	}
}

func TestHostAlias_Label(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	key := filepath.Join(home, "id_radar")
	require.NoError(t, os.WriteFile(key, []byte("key"), 0600))

	tests := []struct {
		name  string
		alias HostAlias
		want  string
	}{
		{"with key", HostAlias{Alias: "radar", HostName: "192.168.0.58", User: "fio", Identity: key}, "radar (fio@192.168.0.58)"},
		{"bare alias with key", HostAlias{Alias: "radar", Identity: key}, "radar"},
		{"missing key file", HostAlias{Alias: "radar", Identity: filepath.Join(home, "gone")}, "radar [password]"},
		{"no key at all", HostAlias{Alias: "radar", HostName: "10.0.0.5"}, "radar (10.0.0.5) [password]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alias.Label())
		})
	}
}

func TestHostAlias_LabelUsesDefaultKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".ssh"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".ssh", "id_ed25519"), []byte("key"), 0600))

	assert.Equal(t, "radar", HostAlias{Alias: "radar"}.Label())
}
