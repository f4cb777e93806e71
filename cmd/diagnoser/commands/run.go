package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/orchestrator"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/stats"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// TriggerBatch marks runs started by the run command.
const TriggerBatch = "batch"

var (
	runRecords string
	runWorkers int
	runNoStore bool
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Diagnose a batch of records",
	Long: `Diagnose every record of a YAML/JSON batch file (the built-in sample
fleet when --records is empty), print one line per record and the per-sensor
report, and persist the run with its provenance log unless --no-store is set.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVar(&runRecords, "records", "", "batch file (default built-in sample fleet)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "worker count (overrides config)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "do not persist the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "output as JSON instead of table")
}

// #region run
func runBatch(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if runWorkers > 0 {
		a.cfg.Workers = runWorkers
	}
	records, err := modeldef.LoadRecordsOrSample(runRecords)
	if err != nil {
		return err
	}

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	var (
		st  *store.Store
		run store.Run
	)
	if !runNoStore {
		st, err = store.NewStore(a.cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err = st.BeginRun(a.model.Name(), p.Config().Query, TriggerBatch)
		if err != nil {
			return err
		}
		rec := orchestrator.NewProvenanceRecorder(st.DB(), run.RunID, TriggerBatch, p)
		if p, err = a.pipeline(orchestrator.WithRecorder(rec)); err != nil {
			return err
		}
		log.Printf("[RUN] run %s started: model=%s records=%d db=%s", shortID(run.RunID), a.model.Name(), len(records), a.cfg.DBPath)
	}

	res, runErr := p.Run(cmd.Context(), records)
	if st != nil {
		if err := finishRun(st, run.RunID, res, runErr); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, stats.ErrInsufficientBatchData) {
		return runErr
	}

	if runJSON {
		if err := printJSON(batchJSON(a, res, run.RunID)); err != nil {
			return err
		}
	} else {
		printOutcomes(a, res.Outcomes)
		if runErr == nil {
			fmt.Println()
			printReport(res.Report)
		}
	}
	return runErr
}
// finishRun closes the stored run with whatever the batch produced. A batch
// cut short by runErr is still closed so no run stays open.
func finishRun(st *store.Store, runID string, res orchestrator.BatchResult, runErr error) error {
	sum := store.RunSummary{
		Records: len(res.Outcomes),
		Faults:  res.Faults,
		Errors:  res.Errors,
	}
	if runErr == nil {
		data, err := json.Marshal(res.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		sum.ReportJSON = string(data)
	} else if !errors.Is(runErr, stats.ErrInsufficientBatchData) {
		log.Printf("[RUN] run %s aborted: %v", shortID(runID), runErr)
	}
	return st.FinishRun(runID, sum)
}

// #endregion run

// #region output
type outcomeRow struct {
	RecordID    string         `json:"record_id"`
	Label       string         `json:"label"`
	Probability float64        `json:"probability"`
	Posterior   []float64      `json:"posterior,omitempty"`
	Evidence    map[string]int `json:"evidence,omitempty"`
	Error       string         `json:"error,omitempty"`
}

type batchOutput struct {
	RunID    string        `json:"run_id,omitempty"`
	Model    string        `json:"model"`
	Query    string        `json:"query"`
	Outcomes []outcomeRow  `json:"outcomes"`
	Faults   int           `json:"faults"`
	Errors   int           `json:"errors"`
	Report   *stats.Report `json:"report,omitempty"`
}

func batchJSON(a *app, res orchestrator.BatchResult, runID string) batchOutput {
	out := batchOutput{
		RunID:    runID,
		Model:    a.model.Name(),
		Query:    a.pipelineConfig().Query,
		Outcomes: make([]outcomeRow, len(res.Outcomes)),
		Faults:   res.Faults,
		Errors:   res.Errors,
	}
	for i, o := range res.Outcomes {
		row := outcomeRow{
			RecordID:    o.RecordID,
			Label:       o.Label(),
			Probability: o.Decision.Probability,
			Posterior:   o.Posterior.Probs,
			Evidence:    o.Evidence,
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		out.Outcomes[i] = row
	}
	if res.Report.Total > 0 {
		r := res.Report
		out.Report = &r
	}
	return out
}

func printOutcomes(a *app, outcomes []orchestrator.Outcome) {
	fmt.Printf("%-10s| %-9s| %-9s| %s\n", "Record", "Label", "P(fault)", "Evidence")
	fmt.Println(strings.Repeat("-", 72))
	for _, o := range outcomes {
		if o.Failed() {
			fmt.Printf("%-10s| %-9s| %-9s| %v\n", o.RecordID, o.Label(), "-", o.Err)
			continue
		}
		fmt.Printf("%-10s| %-9s| %-9.4f| %s\n", o.RecordID, o.Label(), o.Decision.Probability, evidenceString(a, o.Evidence))
	}
}

func evidenceString(a *app, ev map[string]int) string {
	names := make([]string, 0, len(ev))
	for _, v := range a.model.Variables() {
		if s, ok := ev[v.Name]; ok {
			names = append(names, v.Name+"="+a.def.StateName(v.Name, s))
		}
	}
	return strings.Join(names, " ")
}

func printReport(r stats.Report) {
	fmt.Printf("%-18s| %-9s| %-9s\n", "Variable", "Present%", "Absent%")
	fmt.Println(strings.Repeat("-", 40))
	for _, name := range r.Names() {
		v := r.Variables[name]
		fmt.Printf("%-18s| %8.2f | %8.2f\n", name, v.PresentPercent, v.AbsentPercent)
	}
	fmt.Printf("(%d records)\n", r.Total)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
