package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagnoser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvDB, EnvAddr, EnvModel, EnvWorkers, EnvMetricsAddr} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1, cfg.GateConfig().FaultState)
	assert.Equal(t, 0.5, cfg.GateConfig().Threshold)
	assert.Equal(t, "FalloSistema", cfg.PipelineConfig("FalloSistema").Query)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db_path: /tmp/diag.db
addr: 0.0.0.0:7000
threshold: 0.8
workers: 2
prune_barren: true
query: UsoAltoCPU
sensors:
  UsoAltoCPU: {low: 90, high: 100}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/diag.db", cfg.DBPath)
	assert.Equal(t, "0.0.0.0:7000", cfg.Addr)
	assert.Equal(t, 0.8, cfg.Threshold)
	assert.Equal(t, 1, cfg.FaultState, "unset keys keep their defaults")
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.PruneBarren)
	assert.Equal(t, "UsoAltoCPU", cfg.PipelineConfig("FalloSistema").Query)

	pc := cfg.ProducerConfig(signals.DefaultProducerConfig())
	require.Len(t, pc.Thresholds, 1)
	assert.Equal(t, 90.0, pc.Thresholds["UsoAltoCPU"].Low)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "db_path: from-file.db\nworkers: 2\n")

	t.Setenv(EnvDB, "from-env.db")
	t.Setenv(EnvWorkers, "8")
	t.Setenv(EnvMetricsAddr, ":9100")
	t.Setenv(EnvModel, "net.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "net.yaml", cfg.ModelPath)
}

func TestEnvWorkersNotANumber(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkers, "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"threshold above one": "threshold: 1.5\n",
		"zero workers":        "workers: 0\n",
		"bad addr":            "addr: not-an-address\n",
		"empty db":            "db_path: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProducerConfigFallback(t *testing.T) {
	fallback := signals.DefaultProducerConfig()
	assert.Equal(t, fallback, Default().ProducerConfig(fallback))
}
