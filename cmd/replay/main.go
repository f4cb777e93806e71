package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/network"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/replay"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to diagnoser.db (DB mode)")
	runID := flag.String("run", "", "run id to replay in DB mode (default latest)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	modelPath := flag.String("model", "", "network definition (overrides the fixture's; default built-in)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/diagnoser.db [--run id] [--model file]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json [--model file]")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath, *modelPath)
	} else {
		exitCode = runDBMode(*dbPath, *runID, *modelPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

// runDBMode rebuilds a fixture from a stored run and replays it, so the
// labels logged at the time are checked against the current code.
func runDBMode(dbPath, runID, modelPath string) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	var run store.Run
	if runID != "" {
		run, err = st.GetRun(runID)
	} else {
		run, err = st.LatestRun()
	}
	if errors.Is(err, store.ErrRunNotFound) {
		fmt.Fprintln(os.Stderr, "no matching run found")
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "get run: %v\n", err)
		return 2
	}

	diags, err := st.ListDiagnoses(run.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list diagnoses: %v\n", err)
		return 2
	}
	f, err := replay.FixtureFromDiagnoses(run, modelPath, diags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	fmt.Printf("Replaying run %s (model %s, %d records)\n\n", run.RunID, run.Model, len(diags))
	return replayFixture(&f, modelPath)
}

func runFixtureMode(path, modelPath string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	return replayFixture(f, modelPath)
}

func replayFixture(f *replay.Fixture, modelPath string) int {
	if modelPath == "" {
		modelPath = f.Model
	}
	m, err := loadModel(modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load model: %v\n", err)
		return 2
	}

	results, err := replay.Replay(m, f.Readings(), f.Config.ToReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, f.ExpectedResults)
}

func loadModel(path string) (*network.Model, error) {
	def, err := modeldef.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return def.Build()
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	fmt.Printf("%-12s| %-10s| %-10s| %-9s| %s\n", "Record", "Expected", "Replayed", "P(fault)", "Match")
	fmt.Printf("%-12s+%-11s+%-11s+%-10s+%s\n",
		"------------", "-----------", "-----------", "----------", "------")

	byID := make(map[string]replay.ReplayResult, len(results))
	for _, r := range results {
		byID[r.RecordID] = r
	}
	mismatches := replay.Compare(results, expected)
	diff := make(map[string]bool, len(mismatches))
	for _, m := range mismatches {
		diff[m.RecordID] = true
	}

	for _, e := range expected {
		r, ok := byID[e.RecordID]
		got, prob := "-", "-"
		if ok {
			got = r.Label
			if r.Label != "error" {
				prob = fmt.Sprintf("%.4f", r.Probability)
			}
		}
		match := "OK"
		if diff[e.RecordID] {
			match = "DIFF"
		}
		fmt.Printf("%-12s| %-10s| %-10s| %-9s| %s\n", e.RecordID, e.Label, got, prob, match)
	}

	s := replay.Summarize(results, mismatches)
	fmt.Printf("\nSummary: %d records, %d fault, %d no-fault, %d error, %d diverge\n",
		s.TotalRecords, s.Faults, s.NoFaults, s.Errors, s.Mismatches)

	if s.Mismatches > 0 {
		return 1
	}
	return 0
}

// #endregion output
