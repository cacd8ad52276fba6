package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridian-ehs/incidentctl/internal/model"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored incidents",
	Long:  "Commands for listing, viewing, and summarizing stored incidents and their classifications.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored incidents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		company, _ := cmd.Flags().GetString("company")
		limit, _ := cmd.Flags().GetInt("limit")

		incidents, err := st.ListIncidents(ctx, store.IncidentFilter{
			Company: company,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if len(incidents) == 0 {
			fmt.Fprintln(os.Stderr, "No incidents found.")
			return nil
		}

		formatIncidentList(os.Stdout, incidents)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <incident-id>",
	Short: "Show an incident and its latest classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		inc, err := st.GetIncident(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(inc)
	},
}

// -- records history --

var recordsHistoryCmd = &cobra.Command{
	Use:   "history <incident-id>",
	Short: "Show every classification of an incident",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		history, err := st.ListClassifications(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "records history")
		}

		if len(history) == 0 {
			fmt.Fprintln(os.Stderr, "No classifications found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CLASSIFIED\tTIER\tREPORT\tCRITERION\tJUSTIFICATION")
		_, _ = fmt.Fprintln(w, "----------\t----\t------\t---------\t-------------")
		for _, c := range history {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
				c.ClassifiedAt.UTC().Format("2006-01-02 15:04"),
				c.TierLabel, c.ReportRequired, c.Criterion, c.Justification)
		}
		return w.Flush()
	},
}

// -- records dashboard --

var recordsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Summarize stored classifications",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		summary, err := st.Summary(ctx)
		if err != nil {
			return eris.Wrap(err, "records dashboard")
		}

		fmt.Printf("Incidents:        %d\n", summary.Incidents)
		fmt.Printf("Classified:       %d\n", summary.Classified)
		fmt.Printf("Report required:  %d\n", summary.ReportRequired)
		if len(summary.ByTier) > 0 {
			fmt.Println("By tier:")
			labels := make([]string, 0, len(summary.ByTier))
			for label := range summary.ByTier {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Printf("  %-14s %d\n", label, summary.ByTier[label])
			}
		}
		return nil
	},
}

func init() {
	recordsListCmd.Flags().String("company", "", "filter by company name")
	recordsListCmd.Flags().Int("limit", 50, "max incidents to list")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	recordsCmd.AddCommand(recordsHistoryCmd)
	recordsCmd.AddCommand(recordsDashboardCmd)
	rootCmd.AddCommand(recordsCmd)
}

// formatIncidentList writes a tabular list of incidents to w.
func formatIncidentList(out io.Writer, incidents []model.Incident) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOMPANY\tDATE\tTIER\tREPORT")
	_, _ = fmt.Fprintln(w, "--\t-------\t----\t----\t------")

	for _, inc := range incidents {
		tier, report := "-", "-"
		if inc.Latest != nil {
			tier = inc.Latest.TierLabel
			report = fmt.Sprintf("%v", inc.Latest.ReportRequired)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(inc.ID), inc.Record.Company,
			inc.Record.IncidentDate.Format("2006-01-02"), tier, report)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
