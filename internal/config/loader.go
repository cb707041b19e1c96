package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigDir returns the configuration directory, creating it if needed.
// Follows the XDG Base Directory Specification.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "kodo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Load loads configuration from the config file and environment variables.
// A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := configPath()
	if err == nil && path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func configPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	if key := os.Getenv("KODO_API_KEY"); key != "" {
		cfg.API.GeminiKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.API.GeminiKey = key
	}

	if model := os.Getenv("KODO_MODEL"); model != "" {
		cfg.Model.Remote = model
	}
	if model := os.Getenv("KODO_LOCAL_MODEL"); model != "" {
		cfg.Model.Local = model
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		cfg.API.OllamaBaseURL = url
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
