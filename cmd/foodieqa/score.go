package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foodieqa/internal/model"
	"foodieqa/internal/resultlog"
	"foodieqa/internal/score"
)

var (
	scoreJSON   bool
	scoreOutput string
)

// scoreCmd re-scores an existing result log
var scoreCmd = &cobra.Command{
	Use:   "score <result-log.jsonl>",
	Short: "Compute per-category accuracy from a result log",
	Long: `Reads a JSONL result log written by foodieqa run and recomputes the report
against the configured category map. Answers without a known category are
left out of every total.

Examples:
  foodieqa score output/results_template14.jsonl
  foodieqa score --json -o report.json output/results_adaptive.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: scoreLog,
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print the report as JSON")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "Also write the JSON report to this file")
}

func scoreLog(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	answers, err := resultlog.ReadAll(args[0])
	if err != nil {
		return err
	}
	// the log carries no categories of its own
	_, categories, err := a.LoadQuestions()
	if err != nil {
		return err
	}

	res := score.Score(answers, categories, logger)
	logger.Debug("Scored result log",
		zap.String("path", args[0]),
		zap.Int("answers", len(answers)),
		zap.Int("unmapped", res.Unmapped),
		zap.Int("skipped", res.Skipped))

	if scoreOutput != "" {
		if err := writeReport(scoreOutput, res.Report); err != nil {
			return err
		}
	}
	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report)
	}
	printReport(os.Stdout, res.Report)
	return nil
}

func writeReport(path string, report model.AccuracyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
