// Package config reads and writes tally.yaml.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tally-dev/tally/internal/importer"
	"github.com/tally-dev/tally/internal/validation"
)

// FileName is the project config file at the repo root.
const FileName = "tally.yaml"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Owner    OwnerConfig                       `yaml:"owner"`
	Classify ClassifyConfig                    `yaml:"classify"`
	Imports  map[string]importer.ColumnMapping `yaml:"imports,omitempty" validate:"dive"`
	Logging  LoggingConfig                     `yaml:"logging"`
	Metrics  MetricsConfig                     `yaml:"metrics"`
	History  HistoryConfig                     `yaml:"history"`
	Git      GitConfig                         `yaml:"git"`
}

// OwnerConfig identifies whose ledger this is.
type OwnerConfig struct {
	Name string `yaml:"name"`
}

// ClassifyConfig controls the rule engine.
type ClassifyConfig struct {
	RulesFile       string `yaml:"rules_file" validate:"required"`
	Workers         int    `yaml:"workers" validate:"gte=0"` // 0 = GOMAXPROCS
	DefaultCategory string `yaml:"default_category" validate:"required"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig controls the SQLite run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email" validate:"omitempty,email"`
}

// Load reads a tally.yaml file from disk and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validation.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := validation.Failures(err)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Default returns a Config with sensible defaults for a new project.
func Default(ownerName string) *Config {
	return &Config{
		Owner: OwnerConfig{
			Name: ownerName,
		},
		Classify: ClassifyConfig{
			RulesFile:       "rules/categorization-rules.yaml",
			Workers:         4,
			DefaultCategory: "Uncategorized",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    ".tally/history.db",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Tally",
			AuthorEmail: "tally@localhost",
		},
	}
}
