package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

// Environment overrides, applied after the config file.
const (
	EnvDB          = "DIAG_DB"
	EnvAddr        = "DIAG_ADDR"
	EnvModel       = "DIAG_MODEL"
	EnvWorkers     = "DIAG_WORKERS"
	EnvMetricsAddr = "DIAG_METRICS_ADDR"
)

var validate = validator.New()

// #region config
// Config is the runtime configuration shared by every diagnoser command.
type Config struct {
	DBPath      string `koanf:"db_path" validate:"required"`
	Addr        string `koanf:"addr" validate:"required,hostname_port"`
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`

	// ModelPath is a network definition file; empty selects the built-in network.
	ModelPath string `koanf:"model"`
	// Query overrides the definition's query variable when set.
	Query string `koanf:"query"`

	FaultState  int     `koanf:"fault_state" validate:"min=0"`
	Threshold   float64 `koanf:"threshold" validate:"gte=0,lte=1"`
	Workers     int     `koanf:"workers" validate:"min=1,max=256"`
	PruneBarren bool    `koanf:"prune_barren"`

	// Sensors replaces the definition's thresholds when non-empty.
	Sensors map[string]signals.Threshold `koanf:"sensors" validate:"dive"`
}

// Default returns the configuration used when no file or environment is given.
func Default() Config {
	gc := gate.DefaultGateConfig()
	return Config{
		DBPath:     "diagnoser.db",
		Addr:       "localhost:50061",
		FaultState: gc.FaultState,
		Threshold:  gc.Threshold,
		Workers:    orchestrator.DefaultConfig().Workers,
	}
}

// #endregion config

// #region load
// Load reads path (optional) over the defaults, applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DBPath = envOr(EnvDB, cfg.DBPath)
	cfg.Addr = envOr(EnvAddr, cfg.Addr)
	cfg.ModelPath = envOr(EnvModel, cfg.ModelPath)
	cfg.MetricsAddr = envOr(EnvMetricsAddr, cfg.MetricsAddr)
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Workers = n
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region derived
// GateConfig returns the decision rule.
func (c Config) GateConfig() gate.GateConfig {
	return gate.GateConfig{FaultState: c.FaultState, Threshold: c.Threshold}
}

// PipelineConfig returns the batch settings. defaultQuery is used when Query is empty.
func (c Config) PipelineConfig(defaultQuery string) orchestrator.Config {
	q := c.Query
	if q == "" {
		q = defaultQuery
	}
	return orchestrator.Config{Query: q, Workers: c.Workers}
}

// ProducerConfig returns the configured thresholds, or fallback when none are set.
func (c Config) ProducerConfig(fallback signals.ProducerConfig) signals.ProducerConfig {
	if len(c.Sensors) == 0 {
		return fallback
	}
	return signals.ProducerConfig{Thresholds: c.Sensors}
}

// #endregion derived
