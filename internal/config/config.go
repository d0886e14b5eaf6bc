package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models dealdesk.yml.
type Config struct {
	Desk struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"desk"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Notifications struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"notifications"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dealdesk.yml")
}

// Load reads and validates config from the workspace, falling back to the
// default when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default("dealdesk"), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Desk.ID == "" {
		return fmt.Errorf("config.desk.id is required")
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/v0"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8470"
	}
	return nil
}

// Default returns the default Config struct for a desk.
func Default(deskID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, deskID)), &cfg)
	_ = cfg.Validate()
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(deskID string) string {
	return fmt.Sprintf(defaultTemplate, deskID)
}

const defaultTemplate = `desk:
  id: %s
  name: Decision Desk

server:
  addr: 127.0.0.1:8470
  base_path: /v0
  jwt_secret: ""

notifications:
  enabled: true
`
