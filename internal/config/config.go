package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskflow.yml.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		BaseURL string `yaml:"base_url"`
		AppURL  string `yaml:"app_url"`
	} `yaml:"app"`
	Auth struct {
		JWTSecret    string `yaml:"jwt_secret"`
		SessionHours int    `yaml:"session_hours"`
	} `yaml:"auth"`
	Neynar struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"neynar"`
	Features struct {
		Catalog map[string]FeaturePlan `yaml:"catalog"`
	} `yaml:"features"`
}

// FeaturePlan prices a purchasable feature and fixes its grant duration.
type FeaturePlan struct {
	PriceETH     string `yaml:"price_eth"`
	DurationDays int    `yaml:"duration_days"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run taskflow config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("config.app.name is required")
	}
	if c.App.BaseURL == "" {
		return fmt.Errorf("config.app.base_url is required")
	}
	if c.App.AppURL == "" {
		c.App.AppURL = c.App.BaseURL
	}
	if c.Auth.SessionHours <= 0 {
		c.Auth.SessionHours = 24 * 7
	}
	if len(c.Features.Catalog) == 0 {
		return fmt.Errorf("config.features.catalog is required")
	}
	for _, feature := range []string{"notifications", "project_linking", "premium_bundle"} {
		plan, ok := c.Features.Catalog[feature]
		if !ok {
			return fmt.Errorf("config.features.catalog missing %s", feature)
		}
		if plan.PriceETH == "" {
			return fmt.Errorf("feature %s has no price", feature)
		}
		if plan.DurationDays <= 0 {
			return fmt.Errorf("feature %s has invalid duration", feature)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskflow.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `app:
  name: TaskFlow
  base_url: http://127.0.0.1:8080
  app_url: http://127.0.0.1:3000

auth:
  jwt_secret: ""
  session_hours: 168

neynar:
  base_url: https://api.neynar.com/v2
  api_key: ""

features:
  catalog:
    notifications:
      price_eth: "0.001"
      duration_days: 30

    project_linking:
      price_eth: "0.002"
      duration_days: 30

    premium_bundle:
      price_eth: "0.0025"
      duration_days: 30
`
