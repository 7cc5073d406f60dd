// Package common provides shared configuration and logger setup for
// the QuantAgg binaries.
package common

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flashbots/quantagg/services"
	"github.com/flashbots/quantagg/tensor"
)

// Duration parses YAML durations from strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the YAML configuration shared by the collector binary.
type Config struct {
	HTTPAddr        string                   `yaml:"http_addr"`
	MetricsAddr     string                   `yaml:"metrics_addr"`
	EnablePprof     bool                     `yaml:"enable_pprof"`
	SpecFile        string                   `yaml:"spec_file"`
	StepSize        float64                  `yaml:"step_size"`
	MinContributors int                      `yaml:"min_contributors"`
	RoundDuration   Duration                 `yaml:"round_duration"`
	Postgres        *services.PostgresConfig `yaml:"postgres"`
	LogJSON         bool                     `yaml:"log_json"`
	LogDebug        bool                     `yaml:"log_debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		StepSize:        0.125,
		MinContributors: 1,
		RoundDuration:   Duration(30 * time.Second),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadSpec reads the value spec from its JSON file and validates that
// it is usable for quantized aggregation.
func LoadSpec(path string) (tensor.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec: %w", err)
	}
	spec, err := tensor.UnmarshalSpec(data)
	if err != nil {
		return nil, fmt.Errorf("parsing spec: %w", err)
	}
	if err := tensor.ValidateFloat(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// NewStore selects the round store: PostgreSQL when configured,
// otherwise in-memory.
func NewStore(cfg *Config) (services.RoundStore, error) {
	if cfg.Postgres != nil {
		return services.NewPostgresStore(cfg.Postgres)
	}
	return services.NewMemoryStore(), nil
}

// NewLogger builds the process logger.
func NewLogger(jsonOutput, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
