package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# radarmon configuration
# Each source runs its command over SSH and must print "<presence> <distance>" lines.
# Passwords may reference environment variables: password: ${RADAR_PASS}
`

// Write saves cfg to path, creating parent directories. The file is only
// readable by the owner since it may hold passwords.
func Write(path string, cfg *Config) error {
	data, err := encode(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, append([]byte(fileHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// AppendSource adds a source to an existing config file.
// It preserves the existing YAML structure and comments.
func AppendSource(configPath string, src Source) error {
	// Read the existing file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse as yaml.Node to preserve structure
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	docNode := root.Content[0]
	if docNode.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	// Find or create sources
	sourcesNode := findMapValue(docNode, "sources")
	if sourcesNode == nil {
		sourcesNode = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		docNode.Content = append(docNode.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "sources"}, sourcesNode)
	} else if sourcesNode.Kind == yaml.ScalarNode && sourcesNode.Tag == "!!null" {
		// "sources:" with nothing after it
		sourcesNode.Kind = yaml.SequenceNode
		sourcesNode.Tag = "!!seq"
		sourcesNode.Value = ""
	}
	if sourcesNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("'sources' must be a list")
	}

	for _, item := range sourcesNode.Content {
		if id := findMapValue(item, "id"); id != nil && id.Value == src.ID {
			return fmt.Errorf("source '%s' already exists in %s", src.ID, configPath)
		}
	}

	var srcNode yaml.Node
	if err := srcNode.Encode(src); err != nil {
		return fmt.Errorf("failed to encode source: %w", err)
	}
	sourcesNode.Content = append(sourcesNode.Content, &srcNode)

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// encode renders cfg with durations as readable strings ("120s", not nanoseconds).
func encode(cfg *Config) ([]byte, error) {
	type reconnect struct {
		Initial    string  `yaml:"initial"`
		Max        string  `yaml:"max"`
		Multiplier float64 `yaml:"multiplier"`
		MaxRetries int     `yaml:"max_retries"`
	}
	type file struct {
		Version        int       `yaml:"version"`
		Window         string    `yaml:"window"`
		Tick           string    `yaml:"tick"`
		ConnectTimeout string    `yaml:"connect_timeout"`
		StaleAfter     string    `yaml:"stale_after"`
		ShutdownGrace  string    `yaml:"shutdown_grace"`
		Reconnect      reconnect `yaml:"reconnect"`
		Log            LogConfig `yaml:"log"`
		Listen         string    `yaml:"listen,omitempty"`
		Sources        []Source  `yaml:"sources"`
	}

	out := file{
		Version:        cfg.Version,
		Window:         cfg.Window.String(),
		Tick:           cfg.Tick.String(),
		ConnectTimeout: cfg.ConnectTimeout.String(),
		StaleAfter:     cfg.StaleAfter.String(),
		ShutdownGrace:  cfg.ShutdownGrace.String(),
		Reconnect: reconnect{
			Initial:    cfg.Reconnect.Initial.String(),
			Max:        cfg.Reconnect.Max.String(),
			Multiplier: cfg.Reconnect.Multiplier,
			MaxRetries: cfg.Reconnect.MaxRetries,
		},
		Log:     cfg.Log,
		Listen:  cfg.Listen,
		Sources: cfg.Sources,
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()
	return []byte(buf.String()), nil
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
