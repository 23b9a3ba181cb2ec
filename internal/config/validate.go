package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
)

// Validate checks the global settings. A failure here is fatal: nothing can
// be monitored with a broken window, tick or backoff policy. Individual
// sources are checked separately by PartitionSources so one bad source
// doesn't take the others down.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	// Check version
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but radarmon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade radarmon or lower the version field.")
	}

	if err := validatePositive([]namedDuration{
		{"window", cfg.Window, DefaultWindow},
		{"tick", cfg.Tick, DefaultTick},
		{"connect_timeout", cfg.ConnectTimeout, DefaultConnectTimeout},
		{"shutdown_grace", cfg.ShutdownGrace, DefaultShutdownGrace},
	}); err != nil {
		return err
	}

	if cfg.Tick >= cfg.Window {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("tick (%s) must be shorter than window (%s)", cfg.Tick, cfg.Window),
			"The default tick is 100ms and the default window 120s.")
	}

	if cfg.StaleAfter < 0 {
		return errors.New(errors.ErrConfig,
			"stale_after can't be negative",
			"Use 0 to turn stale detection off.")
	}

	if err := validateReconnect(cfg.Reconnect); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'reconnect' section in your config.")
	}

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid log.level", "Use debug, info, warn or error.")
	}
	if cfg.Log.Lines < 0 {
		return errors.New(errors.ErrConfig, "log.lines can't be negative", "Use 0 to hide the log panel.")
	}

	if len(cfg.Sources) == 0 {
		return errors.New(errors.ErrConfig,
			"No sources configured",
			"Add at least one entry under 'sources', or run 'radarmon init'.")
	}

	return nil
}

type namedDuration struct {
	name    string
	value   time.Duration
	example time.Duration
}

func validatePositive(fields []namedDuration) error {
	for _, f := range fields {
		if f.value <= 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s must be a positive duration, got %s", f.name, f.value),
				fmt.Sprintf("Use a Go duration like '%s'.", f.example))
		}
	}
	return nil
}

// validateReconnect checks the backoff policy.
func validateReconnect(r ReconnectConfig) error {
	if r.Initial <= 0 {
		return fmt.Errorf("reconnect.initial must be positive, got %s", r.Initial)
	}
	if r.Max < r.Initial {
		return fmt.Errorf("reconnect.max (%s) must be at least reconnect.initial (%s)", r.Max, r.Initial)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be at least 1, got %g", r.Multiplier)
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("reconnect.max_retries can't be negative (0 means retry forever)")
	}
	return nil
}

// ValidateSource checks a single source definition.
func ValidateSource(s Source) error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New(errors.ErrConfig,
			"Source has no id",
			"Give every source a short unique id, like 'host-1'.")
	}
	if strings.ContainsAny(s.ID, " \t\n") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Source id '%s' contains whitespace", s.ID),
			"Use letters, digits, dashes or underscores.")
	}
	if strings.TrimSpace(s.Host) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Source '%s' has no host", s.ID),
			"Set host to a hostname, user@host, host:port or ~/.ssh/config alias.")
	}
	if strings.Contains(s.Host, "/") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Source '%s' host '%s' contains a path separator", s.ID, s.Host),
			"Use just the host, not a URL or path.")
	}
	if strings.TrimSpace(s.Command) == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Source '%s' has no command", s.ID),
			"Set command to the remote program that prints '<presence> <distance>' lines.")
	}

	for _, f := range [][2]string{{"host", s.Host}, {"username", s.Username}, {"password", s.Password}} {
		if refs := UnresolvedRefs(f[1]); len(refs) > 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Source '%s' %s references unset variable(s): %s", s.ID, f[0], strings.Join(refs, ", ")),
				fmt.Sprintf("Export %s before starting radarmon.", refs[0]))
		}
	}

	return nil
}

// SourceError is a source that failed validation.
type SourceError struct {
	Source Source
	// Index is the source's position in the config's sources list.
	Index int
	Err   error
}

func (e SourceError) Error() string {
	return errors.Summary(e.Err)
}

// Unwrap returns the validation error.
func (e SourceError) Unwrap() error { return e.Err }

// PartitionSources splits the configured sources into usable ones and ones
// that failed validation, keeping config order within each group. A source
// without an id is given a positional one ("source-2") so it can still be
// reported. A source is identified by its host and command: the first valid
// use of an id or of a host/command pair wins, later ones are invalid.
// Invalid sources never claim an id or a pair.
func PartitionSources(cfg *Config) (valid []Source, invalid []SourceError) {
	ids := make(map[string]bool)
	targets := make(map[sourceKey]string)

	for i, s := range cfg.Sources {
		err := ValidateSource(s)
		if strings.TrimSpace(s.ID) == "" {
			s.ID = fmt.Sprintf("source-%d", i+1)
		}

		key := keyOf(s)
		if err == nil && ids[s.ID] {
			err = errors.New(errors.ErrConfig,
				fmt.Sprintf("Source id '%s' is used more than once", s.ID),
				"Source ids must be unique; rename one of them.")
		}
		if err == nil {
			if first, dup := targets[key]; dup {
				err = errors.New(errors.ErrConfig,
					fmt.Sprintf("Source '%s' runs the same command on the same host as '%s'", s.ID, first),
					"Remove one of them, or point it at a different host or command.")
			}
		}

		if err != nil {
			invalid = append(invalid, SourceError{Source: s, Index: i, Err: err})
			continue
		}
		ids[s.ID] = true
		targets[key] = s.ID
		valid = append(valid, s)
	}

	return valid, invalid
}

// sourceKey is a source's identity; the id and tag are only labels.
type sourceKey struct {
	host    string
	command string
}

func keyOf(s Source) sourceKey {
	return sourceKey{
		host:    strings.TrimSpace(s.Host),
		command: strings.Join(strings.Fields(s.Command), " "),
	}
}
