package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostAlias is a concrete Host entry from an OpenSSH config file. init
// offers these as ready-made source hosts, since the dialer resolves
// aliases the same way ssh does.
type HostAlias struct {
	Alias    string
	HostName string
	User     string
	Port     string
	// Identity is the expanded IdentityFile path, if one is set.
	Identity string
}

// Target is where the alias actually connects, as user@host:port with the
// defaults left out.
func (a HostAlias) Target() string {
	target := a.HostName
	if target == "" {
		target = a.Alias
	}
	if a.User != "" {
		target = a.User + "@" + target
	}
	if a.Port != "" && a.Port != "22" {
		target += ":" + a.Port
	}
	return target
}

// Label is the alias as shown in init's host picker, e.g.
// "radar-left (fio@192.168.0.58)". Aliases with no usable key are marked,
// since connecting to them will need a password in the source config.
func (a HostAlias) Label() string {
	label := a.Alias
	if target := a.Target(); target != a.Alias {
		label += " (" + target + ")"
	}
	if !a.hasKey() {
		label += " [password]"
	}
	return label
}

func (a HostAlias) hasKey() bool {
	keys := []string{a.Identity}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keys = append(keys, filepath.Join(homeDir(), ".ssh", name))
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, err := os.Stat(k); err == nil {
			return true
		}
	}
	return false
}

// ConfigAliases lists the aliases in ~/.ssh/config.
func ConfigAliases() ([]HostAlias, error) {
	return AliasesFromFile(filepath.Join(homeDir(), ".ssh", "config"))
}

// AliasesFromFile lists the concrete aliases in an OpenSSH config file,
// sorted by name. Wildcard and negated patterns are skipped, as is
// everything from the first Match block on. A missing file yields no
// aliases and no error.
func AliasesFromFile(path string) ([]HostAlias, error) {
	content, _, err := preprocessSSHConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var aliases []HostAlias
	seen := make(map[string]bool)
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			name := pattern.String()
			if seen[name] || strings.ContainsAny(name, "*?!") {
				continue
			}
			seen[name] = true

			get := func(key string) string {
				v, _ := cfg.Get(name, key)
				return v
			}
			alias := HostAlias{
				Alias:    name,
				HostName: get("HostName"),
				User:     get("User"),
				Port:     get("Port"),
			}
			if id := get("IdentityFile"); id != "" {
				alias.Identity = expandPath(id)
			}
			aliases = append(aliases, alias)
		}
	}

	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Alias < aliases[j].Alias })
	return aliases, nil
}
