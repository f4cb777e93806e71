package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/replay"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to diagnoser.db")
	runID := flag.String("run", "", "run id to export (default latest)")
	outPath := flag.String("out", "", "output fixture JSON path")
	modelPath := flag.String("model", "", "network definition the run used (empty = built-in)")
	last := flag.Int("last", 0, "export only the N last records of the run (0 = all)")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--run id] [--model file] [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *modelPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, runID, modelPath string, last int, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	var r store.Run
	if runID != "" {
		r, err = st.GetRun(runID)
	} else {
		r, err = st.LatestRun()
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	diags, err := st.ListDiagnoses(r.RunID)
	if err != nil {
		return fmt.Errorf("list diagnoses: %w", err)
	}
	if last > 0 && len(diags) > last {
		diags = diags[len(diags)-last:]
	}

	f, err := replay.FixtureFromDiagnoses(r, modelPath, diags)
	if err != nil {
		return err
	}
	if err := replay.WriteFixture(f, outPath); err != nil {
		return err
	}

	faults, errs := 0, 0
	for _, e := range f.ExpectedResults {
		switch e.Label {
		case "fault":
			faults++
		case "error":
			errs++
		}
	}
	fmt.Printf("Exported %d records from run %s to %s (%d fault, %d error)\n",
		len(f.Records), r.RunID, outPath, faults, errs)
	return nil
}

// #endregion export
