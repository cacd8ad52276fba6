package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ehs/incidentctl/internal/export"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored classifications",
	Long: `Export stored incidents with their latest classifications.

The format is taken from the output file extension: .csv or .xlsx.

Examples:
  incidentctl export --output classifications.csv
  incidentctl export --output classifications.xlsx --company "Acme Chemicals"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		output, _ := cmd.Flags().GetString("output")
		company, _ := cmd.Flags().GetString("company")
		if output == "" {
			return eris.New("export: --output is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		incidents, err := st.ListIncidents(ctx, store.IncidentFilter{Company: company})
		if err != nil {
			return eris.Wrap(err, "export: list incidents")
		}

		switch {
		case strings.HasSuffix(output, ".xlsx"):
			err = export.WriteXLSX(output, incidents)
		case strings.HasSuffix(output, ".csv"):
			f, ferr := os.Create(output)
			if ferr != nil {
				return eris.Wrapf(ferr, "export: create %s", output)
			}
			defer f.Close() //nolint:errcheck
			err = export.WriteCSV(f, incidents)
		default:
			return eris.Errorf("export: unsupported output format %q (want .csv or .xlsx)", output)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("output", output),
			zap.Int("incidents", len(incidents)),
		)
		fmt.Printf("exported %d incidents to %s\n", len(incidents), output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (.csv or .xlsx)")
	exportCmd.Flags().String("company", "", "filter by company name")
	rootCmd.AddCommand(exportCmd)
}
