package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"foodieqa/internal/model"
	"foodieqa/internal/score"
)

// printReport renders one row per category, then overall
func printReport(out io.Writer, report model.AccuracyReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCORRECT\tTOTAL\tACCURACY")
	for _, cat := range score.Categories(report) {
		s := report[cat]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\n", cat, s.Correct, s.Total, s.Accuracy)
	}
	o := report.Overall()
	fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\n", model.OverallKey, o.Correct, o.Total, o.Accuracy)
	tw.Flush()
}

func printSummary(out io.Writer, s *model.RunSummary) {
	fmt.Fprintf(out, "Run %s (%s, template %d %s, %s)\n", s.RunID, s.Status, s.Variant, s.VariantName, s.Model)
	printReport(out, s.Report)
	if s.Skipped > 0 || s.Failed > 0 || s.Unmapped > 0 {
		fmt.Fprintf(out, "skipped %d, failed %d, unmapped %d\n", s.Skipped, s.Failed, s.Unmapped)
	}
}
