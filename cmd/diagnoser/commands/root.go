package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/config"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
)

var (
	configPath string
	modelPath  string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "diagnoser",
	Short: "Diagnose machine faults with exact Bayesian-network inference",
	Long: `diagnoser discretizes sensor readings, computes the posterior of the
fault variable by variable elimination and gates it into a fault decision.
Batches can be persisted to SQLite and the model served over gRPC.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "network definition file (overrides config; default built-in)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite path (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(serveCmd)
}

// #region app
// app is everything a subcommand needs, resolved from config and flags.
type app struct {
	cfg   config.Config
	def   *modeldef.Definition
	model *network.Model
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if modelPath != "" {
		cfg.ModelPath = modelPath
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	def, err := modeldef.LoadOrDefault(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	m, err := def.Build()
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", def.Name, err)
	}
	return &app{cfg: cfg, def: def, model: m}, nil
}

func (a *app) engine() *infer.Engine {
	return infer.NewEngine(a.model, infer.WithBarrenPruning(a.cfg.PruneBarren))
}

func (a *app) pipelineConfig() orchestrator.Config {
	return a.cfg.PipelineConfig(a.def.Query)
}

func (a *app) pipeline(opts ...orchestrator.Option) (*orchestrator.Pipeline, error) {
	return orchestrator.NewPipeline(
		a.engine(),
		signals.NewProducer(a.cfg.ProducerConfig(a.def.ProducerConfig())),
		gate.NewGate(a.cfg.GateConfig()),
		a.pipelineConfig(),
		opts...,
	)
}

// #endregion app
