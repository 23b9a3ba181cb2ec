package doctor

import (
	"fmt"
	"path/filepath"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/util"
)

// ConfigFileCheck verifies that a config file exists and loads.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search

	// Config and Path are set by a passing Run for the checks that follow.
	Config *config.Config
	Path   string
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Error finding config: %s", errors.Summary(err)),
			Suggestion: "Check the --config path or run 'radarmon init' to create a config",
		}
	}

	if path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "No config file found",
			Suggestion: "Run 'radarmon init' to create " + config.ConfigFileName,
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Failed to load %s: %s", filepath.Base(path), errors.Summary(err)),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}

	c.Config = cfg
	c.Path = path
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}

// SettingsCheck verifies the global settings monitor refuses to start without.
type SettingsCheck struct {
	File *ConfigFileCheck
}

func (c *SettingsCheck) Name() string     { return "config_settings" }
func (c *SettingsCheck) Category() string { return "CONFIG" }

func (c *SettingsCheck) Run() CheckResult {
	if c.File == nil || c.File.Config == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Cannot check settings: no config loaded",
		}
	}

	if err := config.Validate(c.File.Config); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    errors.Summary(err),
			Suggestion: suggestionFor(err),
		}
	}

	cfg := c.File.Config
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Settings OK (window %s, tick %s)", cfg.Window, cfg.Tick),
	}
}

// SourcesCheck reports sources that would start out failed.
type SourcesCheck struct {
	File *ConfigFileCheck
}

func (c *SourcesCheck) Name() string     { return "config_sources" }
func (c *SourcesCheck) Category() string { return "CONFIG" }

func (c *SourcesCheck) Run() CheckResult {
	if c.File == nil || c.File.Config == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: "Cannot check sources: no config loaded",
		}
	}

	valid, invalid := config.PartitionSources(c.File.Config)
	if len(invalid) == 0 {
		ids := make([]string, len(valid))
		for i, s := range valid {
			ids[i] = s.ID
		}
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%d %s: %s", len(valid), util.Pluralize(len(valid), "source", "sources"), util.JoinOrNone(ids)),
		}
	}

	bad := make([]string, len(invalid))
	for i, se := range invalid {
		bad[i] = fmt.Sprintf("%s (%s)", se.Source.ID, se.Error())
	}
	status := StatusWarn
	if len(valid) == 0 {
		status = StatusFail
	}
	return CheckResult{
		Name:       c.Name(),
		Status:     status,
		Message:    fmt.Sprintf("%d of %d sources invalid: %s", len(invalid), len(c.File.Config.Sources), util.JoinOrNone(bad)),
		Suggestion: "Run 'radarmon validate' for details",
	}
}

// NewConfigChecks creates the config checks. They share the loaded config,
// so run them in order.
func NewConfigChecks(configPath string) (*ConfigFileCheck, []Check) {
	file := &ConfigFileCheck{ConfigPath: configPath}
	return file, []Check{
		file,
		&SettingsCheck{File: file},
		&SourcesCheck{File: file},
	}
}
