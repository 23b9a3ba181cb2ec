package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// envRef matches ${NAME} references. Bare $NAME is left alone so remote
// commands keep their shell variables.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
// Use this for LOCAL paths only.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	// Handle ~/path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unchanged if we can't get home
		}
		return filepath.Join(home, path[2:])
	}

	// Handle standalone ~
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// ExpandEnv replaces ${NAME} with the value of the environment variable NAME.
// Unset variables are left as-is and reported in missing, so validation can
// point at them instead of silently connecting with an empty password.
func ExpandEnv(s string) (expanded string, missing []string) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	expanded = envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return ref
	})
	return expanded, missing
}

// ExpandSource expands environment references in the fields that are
// resolved locally: host, username and password. The command runs on the
// remote side and is passed through untouched.
func ExpandSource(s Source) Source {
	s.Host, _ = ExpandEnv(s.Host)
	s.Username, _ = ExpandEnv(s.Username)
	s.Password, _ = ExpandEnv(s.Password)
	return s
}

// UnresolvedRefs returns the ${NAME} references still present in s.
func UnresolvedRefs(s string) []string {
	var names []string
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}
