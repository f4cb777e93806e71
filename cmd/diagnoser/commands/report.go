package commands

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/infer"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/modeldef"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/signals"
	"github.com/esteb4an/redes-bayesianas/go-diagnoser/internal/stats"
)

var (
	reportRecords string
	reportJSON    bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the share of records with each sensor abnormal",
	Long: `Discretize a batch and print, per sensor, the percentage of records
observing it abnormal (present) and normal (absent). No inference is run.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRecords, "records", "", "batch file (default built-in sample fleet)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "output as JSON instead of table")
}

func runReport(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	records, err := modeldef.LoadRecordsOrSample(reportRecords)
	if err != nil {
		return err
	}

	prod := signals.NewProducer(a.cfg.ProducerConfig(a.def.ProducerConfig()))
	batch := make([]infer.Evidence, 0, len(records))
	for _, r := range records {
		ev, err := prod.Evidence(r)
		if err != nil {
			log.Printf("[REPORT] record %s skipped: %v", r.ID, err)
			continue
		}
		batch = append(batch, ev)
	}

	rep, err := stats.Aggregate(batch)
	if err != nil {
		return err
	}
	if reportJSON {
		return printJSON(rep)
	}
	printReport(rep)
	return nil
}
