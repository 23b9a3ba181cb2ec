package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the config file looked for in the current directory.
	ConfigFileName = "radarmon.yaml"
	// GlobalConfigDir is the directory for the per-user config.
	GlobalConfigDir = ".config/radarmon"
	// GlobalConfigFile is the per-user config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix namespaces environment overrides, e.g. RADARMON_WINDOW=60s.
	EnvPrefix = "RADARMON"
)

// Load reads config from the specified path.
// Environment variables with the RADARMON_ prefix override scalar settings.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'radarmon init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. radarmon.yaml in current directory
// 3. ~/.config/radarmon/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	// 1. Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	// 2. Current directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	// 3. Global config
	if path := GlobalConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}

// GlobalConfigPath returns ~/.config/radarmon/config.yaml, or "" without a home directory.
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// FindAndLoad resolves the config path and loads it. A missing config is an error
// here because there is nothing to monitor without sources.
func FindAndLoad(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return nil, "", errors.New(errors.ErrConfig,
			"No config file found",
			"Run 'radarmon init' to create "+ConfigFileName+", or pass --config")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Start with defaults
	cfg := DefaultConfig()

	// Viper's default decode hooks turn "120s" into a time.Duration.
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.Log.File = ExpandTilde(cfg.Log.File)
	for i := range cfg.Sources {
		cfg.Sources[i] = ExpandSource(cfg.Sources[i])
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// even when the file leaves it out.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("window", d.Window.String())
	v.SetDefault("tick", d.Tick.String())
	v.SetDefault("connect_timeout", d.ConnectTimeout.String())
	v.SetDefault("stale_after", d.StaleAfter.String())
	v.SetDefault("shutdown_grace", d.ShutdownGrace.String())
	v.SetDefault("reconnect.initial", d.Reconnect.Initial.String())
	v.SetDefault("reconnect.max", d.Reconnect.Max.String())
	v.SetDefault("reconnect.multiplier", d.Reconnect.Multiplier)
	v.SetDefault("reconnect.max_retries", d.Reconnect.MaxRetries)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.lines", d.Log.Lines)
	v.SetDefault("listen", d.Listen)
}
