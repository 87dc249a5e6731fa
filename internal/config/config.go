// Package config loads sessionstarter settings from TOML.
package config

import (
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

//go:embed default_config.toml
var embeddedConfigData []byte

// Config holds the application configuration.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	Rename RenameConfig `toml:"rename"`
	Log    LogConfig    `toml:"log"`
}

// EngineConfig describes how the analysis engine is driven.
type EngineConfig struct {
	Analysis []string `toml:"analysis"` // issued in order when no functions are known
}

// RenameConfig holds the prefixes applied by the common-function pass.
type RenameConfig struct {
	ImportJumpPrefix   string `toml:"import_jump_prefix"`
	WrapperPrefix      string `toml:"wrapper_prefix"`
	GlobalAssignPrefix string `toml:"global_assign_prefix"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(embeddedConfigData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a TOML file. Keys missing from the
// file keep their embedded defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Load returns the config at path, or the embedded default when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	return LoadFromFile(path)
}

// Validate rejects settings the renaming pass cannot work with.
func (c *Config) Validate() error {
	if len(c.Engine.Analysis) == 0 {
		return fmt.Errorf("engine.analysis must list at least one command")
	}
	prefixes := map[string]string{
		"rename.import_jump_prefix":   c.Rename.ImportJumpPrefix,
		"rename.wrapper_prefix":       c.Rename.WrapperPrefix,
		"rename.global_assign_prefix": c.Rename.GlobalAssignPrefix,
	}
	for key, p := range prefixes {
		if p == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
