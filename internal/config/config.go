// Package config loads the eldersift configuration. The credential itself is
// never stored in the config file; the file names the environment variable
// that holds it.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	API      API      `yaml:"api"`
	Classify Classify `yaml:"classify"`
	Data     Data     `yaml:"data"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type API struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TranslateModel string `yaml:"translate_model"`
}

type Classify struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxAttempts   int     `yaml:"max_attempts"`
}

type Data struct {
	Dir string `yaml:"dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for eldersift.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "eldersift")
}

// DataDir returns the XDG data directory for eldersift.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "eldersift")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/eldersift/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'eldersift init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		API: API{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "LLM_API_KEY",
		},
		Classify: Classify{
			MinConfidence: 0.6,
			MaxAttempts:   5,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// APIKey returns the credential from the environment variable the config
// names, or "" if unset.
func (c *Config) APIKey() string {
	return os.Getenv(c.API.APIKeyEnv)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Data.Dir != "" {
		return c.Data.Dir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
