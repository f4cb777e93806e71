package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/gate"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/rpc"
)

var (
	queryVar      string
	queryEvidence []string
	queryOrder    []string
	queryRemote   string
	queryExplain  bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Compute the posterior of one variable given evidence",
	Example: `  diagnoser query --evidence UsoAltoCPU=si --evidence FallosRed=0
  diagnoser query --query UsoAltoCPU --evidence FalloSistema=1 --explain
  diagnoser query --remote localhost:50061 --evidence ErroresMemoria=1`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryVar, "query", "", "query variable (default the model's query)")
	queryCmd.Flags().StringSliceVarP(&queryEvidence, "evidence", "e", nil, "observation Var=state, state by index or name (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryOrder, "order", nil, "explicit elimination order of the hidden variables")
	queryCmd.Flags().StringVar(&queryRemote, "remote", "", "ask a running server at host:port instead of computing locally")
	queryCmd.Flags().BoolVar(&queryExplain, "explain", false, "print the elimination order used")
}

// #region query
func runQuery(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	ev, err := parseEvidence(a.def, queryEvidence)
	if err != nil {
		return err
	}
	q := queryVar
	if q == "" {
		q = a.pipelineConfig().Query
	}

	if queryRemote != "" {
		if len(queryOrder) > 0 || queryExplain {
			return errors.New("--order and --explain are local only")
		}
		return remoteQuery(cmd.Context(), a, q, ev)
	}

	e := a.engine()
	var post infer.Posterior
	if len(queryOrder) > 0 {
		post, err = e.QueryWithOrder(q, ev, queryOrder)
	} else {
		post, err = e.Query(q, ev)
	}
	if err != nil {
		return err
	}

	if queryExplain {
		order := queryOrder
		if len(order) == 0 {
			if order, err = e.EliminationOrder(q, ev); err != nil {
				return err
			}
		}
		fmt.Printf("elimination order: %s\n", strings.Join(order, " -> "))
	}

	printPosterior(a, q, ev, post.Probs)
	if q == a.pipelineConfig().Query {
		d := gate.NewGate(a.cfg.GateConfig()).Evaluate(post)
		fmt.Printf("decision: %s (%s)\n", d.Label, d.Reason)
	}
	return nil
}

func remoteQuery(ctx context.Context, a *app, q string, ev infer.Evidence) error {
	c, err := rpc.NewClient(queryRemote)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	res, err := c.Query(ctx, q, ev)
	if err != nil {
		return err
	}
	printPosterior(a, res.Variable, ev, res.Probs)
	if res.Label != "" {
		fmt.Printf("decision: %s (%s)\n", res.Label, res.Reason)
	}
	return nil
}

// #endregion query

// #region helpers
// parseEvidence reads Var=state pairs. A state is a declared state name or an index.
func parseEvidence(def *modeldef.Definition, pairs []string) (infer.Evidence, error) {
	ev := make(infer.Evidence, len(pairs))
	for _, p := range pairs {
		name, state, ok := strings.Cut(p, "=")
		if !ok || name == "" || state == "" {
			return nil, fmt.Errorf("evidence %q: want Var=state", p)
		}
		idx, err := stateIndex(def, name, state)
		if err != nil {
			return nil, err
		}
		ev[name] = idx
	}
	return ev, nil
}

func stateIndex(def *modeldef.Definition, variable, state string) (int, error) {
	for _, v := range def.Variables {
		if v.Name != variable {
			continue
		}
		for i, s := range v.States {
			if s == state {
				return i, nil
			}
		}
	}
	n, err := strconv.Atoi(state)
	if err != nil {
		return 0, fmt.Errorf("evidence %s=%s: unknown state", variable, state)
	}
	return n, nil
}

func printPosterior(a *app, q string, ev infer.Evidence, probs []float64) {
	fmt.Printf("P(%s | %s)\n", q, evidenceString(a, ev))
	for i, p := range probs {
		fmt.Printf("  %-6s %.6f\n", a.def.StateName(q, i), p)
	}
}

// #endregion helpers
