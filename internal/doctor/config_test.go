package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radarmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoSources = `version: 1
sources:
  - id: radar-1
    host: pi-1
    command: sudo seamless_dev_spi spi.mode=presence
  - id: radar-2
    host: pi-2
    command: sudo seamless_dev_spi spi.mode=presence
`

func TestConfigFileCheck(t *testing.T) {
	t.Run("config not found", func(t *testing.T) {
		check := &ConfigFileCheck{ConfigPath: filepath.Join(t.TempDir(), "nonexistent.yaml")}
		result := check.Run()

		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
		if check.Config != nil {
			t.Error("Config should stay nil when loading fails")
		}
	})

	t.Run("config found", func(t *testing.T) {
		path := writeConfig(t, twoSources)
		check := &ConfigFileCheck{ConfigPath: path}
		result := check.Run()

		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
		if check.Config == nil || len(check.Config.Sources) != 2 {
			t.Fatal("expected loaded config with 2 sources")
		}
		if check.Path != path {
			t.Errorf("expected path %s, got %s", path, check.Path)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		check := &ConfigFileCheck{ConfigPath: writeConfig(t, "sources: [\n")}
		result := check.Run()

		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})

	t.Run("name and category", func(t *testing.T) {
		check := &ConfigFileCheck{}
		if check.Name() != "config_file" {
			t.Errorf("expected name 'config_file', got %s", check.Name())
		}
		if check.Category() != "CONFIG" {
			t.Errorf("expected category 'CONFIG', got %s", check.Category())
		}
	})
}

func TestSettingsCheck(t *testing.T) {
	t.Run("no config loaded", func(t *testing.T) {
		check := &SettingsCheck{File: &ConfigFileCheck{}}
		if result := check.Run(); result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		file := &ConfigFileCheck{ConfigPath: writeConfig(t, twoSources)}
		file.Run()

		result := (&SettingsCheck{File: file}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("tick longer than window", func(t *testing.T) {
		file := &ConfigFileCheck{ConfigPath: writeConfig(t, "window: 1s\ntick: 5s\n"+strings.TrimPrefix(twoSources, "version: 1\n"))}
		file.Run()

		result := (&SettingsCheck{File: file}).Run()
		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v: %s", result.Status, result.Message)
		}
		if result.Suggestion == "" {
			t.Error("expected a suggestion")
		}
	})
}

func TestSourcesCheck(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		file := &ConfigFileCheck{ConfigPath: writeConfig(t, twoSources)}
		file.Run()

		result := (&SourcesCheck{File: file}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
		if !strings.Contains(result.Message, "radar-1, radar-2") {
			t.Errorf("expected source ids in message, got %s", result.Message)
		}
	})

	t.Run("one invalid", func(t *testing.T) {
		file := &ConfigFileCheck{ConfigPath: writeConfig(t, twoSources+"  - id: broken\n    command: run\n")}
		file.Run()

		result := (&SourcesCheck{File: file}).Run()
		if result.Status != StatusWarn {
			t.Errorf("expected StatusWarn, got %v: %s", result.Status, result.Message)
		}
		if !strings.Contains(result.Message, "broken") {
			t.Errorf("expected invalid source named, got %s", result.Message)
		}
	})

	t.Run("none valid", func(t *testing.T) {
		file := &ConfigFileCheck{ConfigPath: writeConfig(t, "sources:\n  - id: broken\n    command: run\n")}
		file.Run()

		result := (&SourcesCheck{File: file}).Run()
		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v: %s", result.Status, result.Message)
		}
	})
}

func TestNewConfigChecks(t *testing.T) {
	file, checks := NewConfigChecks("custom.yaml")

	if len(checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(checks))
	}
	if checks[0] != Check(file) {
		t.Error("the file check should run first")
	}
	if file.ConfigPath != "custom.yaml" {
		t.Errorf("expected explicit path, got %s", file.ConfigPath)
	}
}
