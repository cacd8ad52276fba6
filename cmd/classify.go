package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <record-file>",
	Short: "Classify one incident's impact record",
	Long: `Classify a single impact record against the regulatory rule table.

The record file is JSON or YAML (by extension). The engine validates the
record, runs every criterion evaluator, and prints the severity tier, the
mandatory-report flag, and the criterion that decided it.

Examples:
  # Classify a record and show the per-criterion breakdown
  incidentctl classify incident.json --breakdown

  # Classify with a custom rule table and persist the result
  INCIDENT_RULES_PATH=rules.yaml incidentctl classify incident.yaml --save`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.String("format", "table", "output format: table or json")
	f.Bool("breakdown", false, "include per-criterion outcomes")
	f.Bool("save", false, "store the record and classification")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	breakdown, _ := cmd.Flags().GetBool("breakdown")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "json" {
		return eris.Errorf("classify: --format must be table or json (got %q)", format)
	}

	rec, err := loadRecord(args[0])
	if err != nil {
		return err
	}

	engine, err := initEngine()
	if err != nil {
		return err
	}

	result, err := engine.Classify(rec)
	if err != nil {
		return eris.Wrap(err, "classify")
	}

	zap.L().Info("classified record",
		zap.String("company", rec.Company),
		zap.String("tier", result.TierLabel),
		zap.Bool("report_required", result.ReportRequired),
		zap.String("criterion", result.Criterion),
	)

	if save {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		inc, err := st.CreateIncident(ctx, *rec)
		if err != nil {
			return eris.Wrap(err, "classify: save record")
		}
		saved, err := st.SaveClassification(ctx, inc.ID, result)
		if err != nil {
			return eris.Wrap(err, "classify: save classification")
		}
		result = saved
	}

	if !breakdown {
		result.Breakdown = nil
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printClassification(os.Stdout, rec, result)
	return nil
}

// printClassification writes a human-readable verdict to w.
func printClassification(out io.Writer, rec *model.ImpactRecord, c *model.Classification) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Company:\t%s\n", rec.Company)
	_, _ = fmt.Fprintf(w, "Incident date:\t%s\n", rec.IncidentDate.Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Severity:\t%s (tier %d)\n", c.TierLabel, c.Tier)
	_, _ = fmt.Fprintf(w, "Report within 24h:\t%v\n", c.ReportRequired)
	_, _ = fmt.Fprintf(w, "Criterion:\t%s\n", c.Criterion)
	_, _ = fmt.Fprintf(w, "Justification:\t%s\n", c.Justification)
	if c.ID != "" {
		_, _ = fmt.Fprintf(w, "Saved as:\t%s (incident %s)\n", c.ID, c.IncidentID)
	}
	_ = w.Flush()

	if len(c.Breakdown) > 0 {
		_, _ = fmt.Fprintln(out)
		bw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(bw, "CRITERION\tTIER\tREPORT\tREASON")
		_, _ = fmt.Fprintln(bw, "---------\t----\t------\t------")
		for _, o := range c.Breakdown {
			reason := o.Reason
			if reason == "" {
				reason = "-"
			}
			_, _ = fmt.Fprintf(bw, "%s\t%s\t%v\t%s\n", o.Dimension, o.TierLabel, o.TriggersReport, reason)
		}
		_ = bw.Flush()
	}
}
