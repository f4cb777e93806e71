package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/stats"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to diagnoser.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	record := flag.String("record", "", "with --run, show one record's full diagnosis")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/diagnoser.db [--last N] [--run id [--record id]] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *record, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string `json:"run_id"`
	Model     string `json:"model"`
	Query     string `json:"query"`
	Trigger   string `json:"trigger"`
	Records   int    `json:"records"`
	Faults    int    `json:"faults"`
	Errors    int    `json:"errors"`
	Finished  bool   `json:"finished"`
	StartedAt string `json:"started_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:     r.RunID,
			Model:     r.Model,
			Query:     r.Query,
			Trigger:   r.TriggerType,
			Records:   r.Records,
			Faults:    r.Faults,
			Errors:    r.Errors,
			Finished:  r.Finished(),
			StartedAt: r.StartedAt.Format(time.RFC3339),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-16s  %-14s  %-8s  %7s  %6s  %6s  %s\n",
		"Run", "Model", "Query", "Trigger", "Records", "Faults", "Errors", "Started")
	fmt.Printf("%-10s+-%-16s+-%-14s+-%-8s+-%7s+-%6s+-%6s+-%s\n",
		"----------", "----------------", "--------------", "--------", "-------", "------", "------", "--------------------")
	for _, r := range rows {
		started := r.StartedAt
		if !r.Finished {
			started += " (unfinished)"
		}
		fmt.Printf("%-10s  %-16s  %-14s  %-8s  %7d  %6d  %6d  %s\n",
			shortID(r.RunID), r.Model, r.Query, r.Trigger, r.Records, r.Faults, r.Errors, started)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Run        listRow        `json:"run"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Report     *stats.Report  `json:"report,omitempty"`
	Diagnoses  []diagnosisRow `json:"diagnoses"`
}

type diagnosisRow struct {
	RecordID    string             `json:"record_id"`
	Label       string             `json:"label"`
	Reason      string             `json:"reason,omitempty"`
	Probability float64            `json:"probability"`
	Posterior   []float64          `json:"posterior,omitempty"`
	Evidence    map[string]int     `json:"evidence,omitempty"`
	Readings    map[string]float64 `json:"readings,omitempty"`
}

func runDetailMode(st *store.Store, runID, record string, jsonOut bool) error {
	r, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	diags, err := st.ListDiagnoses(r.RunID)
	if err != nil {
		return err
	}

	out := detailOutput{
		Run: listRow{
			RunID:     r.RunID,
			Model:     r.Model,
			Query:     r.Query,
			Trigger:   r.TriggerType,
			Records:   r.Records,
			Faults:    r.Faults,
			Errors:    r.Errors,
			Finished:  r.Finished(),
			StartedAt: r.StartedAt.Format(time.RFC3339),
		},
	}
	if r.Finished() {
		out.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	if r.ReportJSON != "" {
		var rep stats.Report
		if err := json.Unmarshal([]byte(r.ReportJSON), &rep); err == nil {
			out.Report = &rep
		}
	}
	for _, d := range diags {
		if record != "" && d.RecordID != record {
			continue
		}
		out.Diagnoses = append(out.Diagnoses, diagnosisRow{
			RecordID:    d.RecordID,
			Label:       d.Label,
			Reason:      d.Reason,
			Probability: d.Record.Probability,
			Posterior:   d.Record.Posterior,
			Evidence:    d.Record.Evidence,
			Readings:    d.Record.Readings,
		})
	}
	if record != "" && len(out.Diagnoses) == 0 {
		return fmt.Errorf("record %q not found in run %s", record, r.RunID)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", out.Run.RunID)
	fmt.Printf("Model:    %s\n", out.Run.Model)
	fmt.Printf("Query:    %s\n", out.Run.Query)
	fmt.Printf("Trigger:  %s\n", out.Run.Trigger)
	fmt.Printf("Started:  %s\n", out.Run.StartedAt)
	if out.FinishedAt != "" {
		fmt.Printf("Finished: %s\n", out.FinishedAt)
	}
	fmt.Printf("Records:  %d (%d fault, %d error)\n", out.Run.Records, out.Run.Faults, out.Run.Errors)

	if record != "" {
		printRecord(out.Diagnoses[0])
		return nil
	}

	if out.Report != nil {
		fmt.Printf("\nSensor report:\n")
		for _, name := range out.Report.Names() {
			v := out.Report.Variables[name]
			fmt.Printf("  %-18s present %6.2f%%  absent %6.2f%%\n", name, v.PresentPercent, v.AbsentPercent)
		}
	}

	fmt.Printf("\n%-10s  %-9s  %8s  %s\n", "Record", "Label", "P(fault)", "Reason")
	fmt.Printf("%-10s+-%-9s+-%8s+-%s\n", "----------", "---------", "--------", "--------------------")
	for _, d := range out.Diagnoses {
		prob := "—"
		if d.Label != "error" {
			prob = fmt.Sprintf("%.4f", d.Probability)
		}
		fmt.Printf("%-10s  %-9s  %8s  %s\n", d.RecordID, d.Label, prob, d.Reason)
	}
	return nil
}

func printRecord(d diagnosisRow) {
	fmt.Printf("\nRecord:   %s\n", d.RecordID)
	fmt.Printf("Label:    %s\n", d.Label)
	fmt.Printf("Reason:   %s\n", d.Reason)
	if len(d.Posterior) > 0 {
		fmt.Printf("Posterior:")
		for i, p := range d.Posterior {
			fmt.Printf(" [%d]=%.4f", i, p)
		}
		fmt.Println()
	}

	fmt.Printf("\nReadings:\n")
	for _, name := range sortedKeys(d.Readings) {
		ev := "—"
		if s, ok := d.Evidence[name]; ok {
			ev = fmt.Sprintf("%d", s)
		}
		fmt.Printf("  %-18s %10.2f  -> %s\n", name, d.Readings[name], ev)
	}
}

// #endregion detail-mode

// #region output

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
