package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Defaults for the global settings.
const (
	DefaultWindow         = 120 * time.Second
	DefaultTick           = 100 * time.Millisecond
	DefaultConnectTimeout = 10 * time.Second
	DefaultStaleAfter     = 10 * time.Second
	DefaultShutdownGrace  = 5 * time.Second
	DefaultLogLines       = 8
)

// Config represents the complete radarmon.yaml configuration file.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Window is how far back readings are kept per source.
	Window time.Duration `yaml:"window" mapstructure:"window"`

	// Tick is the render loop interval.
	Tick time.Duration `yaml:"tick" mapstructure:"tick"`

	// ConnectTimeout bounds dialing plus starting the remote command.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// StaleAfter marks a streaming source as stale when no line arrived for this long.
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`

	// ShutdownGrace is how long collectors get to close after a stop signal.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`

	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`

	// Listen enables the HTTP view when set, e.g. ":8080".
	Listen string `yaml:"listen,omitempty" mapstructure:"listen"`

	Sources []Source `yaml:"sources" mapstructure:"sources"`
}

// Source is one remote sensor stream.
type Source struct {
	// ID names the source in logs, metrics and the legend. Must be unique.
	ID string `yaml:"id" mapstructure:"id"`

	// Host can be: hostname, user@hostname, hostname:port, or SSH config alias.
	Host string `yaml:"host" mapstructure:"host"`

	// Username overrides the SSH login name.
	Username string `yaml:"username,omitempty" mapstructure:"username"`

	// Password is optional. ${VAR} references are expanded from the environment.
	Password string `yaml:"password,omitempty" mapstructure:"password"`

	// Command is the remote command that prints "<presence> <distance>" lines.
	Command string `yaml:"command" mapstructure:"command"`

	// Tag is the display label. Defaults to ID.
	Tag string `yaml:"tag,omitempty" mapstructure:"tag"`

	// PTY requests a pseudo-terminal so sudo works. Defaults to true.
	PTY *bool `yaml:"pty,omitempty" mapstructure:"pty"`

	// InsecureHostKey skips known_hosts verification for this source.
	InsecureHostKey bool `yaml:"insecure_host_key,omitempty" mapstructure:"insecure_host_key"`
}

// ReconnectConfig controls the capped exponential backoff between sessions.
type ReconnectConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`

	// MaxRetries is the number of consecutive failed attempts before a source
	// is marked failed. 0 retries forever.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`

	// File sends logs to a rotating file instead of stderr.
	File string `yaml:"file,omitempty" mapstructure:"file"`

	// Lines is how many recent raw lines the log panel shows.
	Lines int `yaml:"lines" mapstructure:"lines"`
}

// DisplayTag returns the label shown for the source.
func (s Source) DisplayTag() string {
	if s.Tag != "" {
		return s.Tag
	}
	return s.ID
}

// UsePTY reports whether the source's command runs under a pseudo-terminal.
func (s Source) UsePTY() bool {
	return s.PTY == nil || *s.PTY
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentConfigVersion,
		Window:         DefaultWindow,
		Tick:           DefaultTick,
		ConnectTimeout: DefaultConnectTimeout,
		StaleAfter:     DefaultStaleAfter,
		ShutdownGrace:  DefaultShutdownGrace,
		Reconnect: ReconnectConfig{
			Initial:    time.Second,
			Max:        30 * time.Second,
			Multiplier: 2,
		},
		Log: LogConfig{
			Level: "info",
			Lines: DefaultLogLines,
		},
	}
}
