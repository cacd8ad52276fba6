package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/meridian-ehs/incidentctl/internal/model"
	"github.com/meridian-ehs/incidentctl/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the regulatory rule table",
}

// -- rules show --

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective rule table",
	Long:  "Prints the rule table the engine will use: the configured rules file merged over the built-in defaults.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := initEngine()
		if err != nil {
			return err
		}
		rs := engine.Rules()

		format, _ := cmd.Flags().GetString("format")
		if format == "yaml" {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close() //nolint:errcheck
			return enc.Encode(rs)
		}

		printRuleTable(rs)
		return nil
	},
}

// -- rules check --

var rulesCheckCmd = &cobra.Command{
	Use:   "check <rules-file>",
	Short: "Validate a rules file without classifying",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := rules.LoadFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", args[0])
		return nil
	},
}

func init() {
	rulesShowCmd.Flags().String("format", "table", "output format: table or yaml")

	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

func printRuleTable(rs *rules.RuleSet) {
	fmt.Printf("Tier scale: %v\n\n", rs.TierLabels)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CRITERION\tTHRESHOLD\tTIER\tREPORT")
	_, _ = fmt.Fprintln(w, "---------\t---------\t----\t------")

	printLadder := func(name string, l rules.Ladder) {
		for _, s := range l {
			_, _ = fmt.Fprintf(w, "%s\t>= %g\t%s\t%v\n", name, s.Threshold, rs.Label(s.Tier), s.Report)
		}
	}

	printLadder("human: deaths", rs.Human.Deaths)
	printLadder("human: injured on site", rs.Human.InjuredOnsite)
	printLadder("human: injured off site", rs.Human.InjuredOffsite)
	printLadder("evacuation: people", rs.Evacuation.People)
	printLadder("evacuation: person-hours", rs.Evacuation.PersonHours)
	printLadder("service: people", rs.Service.People)
	printLadder("service: person-hours", rs.Service.PersonHours)
	printLadder("environmental: protected area (ha)", rs.Environmental.ProtectedAreaHa)
	printLadder("environmental: extended area (ha)", rs.Environmental.ExtendedAreaHa)
	printLadder("environmental: river (km)", rs.Environmental.RiverKM)
	printLadder("environmental: lake (ha)", rs.Environmental.LakeHa)
	printLadder("environmental: delta (ha)", rs.Environmental.DeltaHa)
	printLadder("environmental: aquifer (ha)", rs.Environmental.AquiferHa)
	printLadder("financial: total cost", rs.Financial.Total)
	printLadder("financial: off-site cost", rs.Financial.Offsite)

	homes := make([]string, 0, len(rs.Property))
	for h := range rs.Property {
		homes = append(homes, string(h))
	}
	sort.Strings(homes)
	for _, h := range homes {
		rule := rs.Property[model.HomesDamaged(h)]
		_, _ = fmt.Fprintf(w, "property: homes %s\t-\t%s\t%v\n", h, rs.Label(rule.Tier), rule.Report)
	}

	_, _ = fmt.Fprintf(w, "transboundary: yes\t-\t%s\t%v\n", rs.Label(rs.Transboundary.Tier), rs.Transboundary.Report)

	for _, cat := range rs.ReleaseCategories() {
		printLadder(fmt.Sprintf("release: %s (kg)", cat), rs.Release[cat])
	}

	_ = w.Flush()
}
