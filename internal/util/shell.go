// Package util provides small helpers shared by the CLI and diagnostics.
package util

import "strings"

// ShellQuote wraps a string in single quotes, escaping any existing single quotes.
// This is safe for use in shell commands where the string should be treated literally.
func ShellQuote(s string) string {
	// Replace ' with '\'' (end quote, escaped quote, start quote)
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// wrappers run the word after them as the real program.
var wrappers = map[string]bool{
	"sudo":   true,
	"env":    true,
	"nohup":  true,
	"exec":   true,
	"stdbuf": true,
}

// CommandBinary returns the program a shell command line runs, skipping
// wrappers like sudo, their flags and VAR=value assignments.
// "sudo RADAR_DEBUG=1 seamless_dev_spi spi.mode=presence" gives "seamless_dev_spi".
func CommandBinary(cmd string) string {
	for _, word := range strings.Fields(cmd) {
		switch {
		case wrappers[word]:
		case strings.HasPrefix(word, "-"):
		case isAssignment(word):
		default:
			return word
		}
	}
	return ""
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	if !ok || name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
