package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-ehs/incidentctl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "incidentctl",
	Short: "Workplace safety incident intake and classification",
	Long:  "Takes structured impact answers for a workplace safety incident, assigns a severity tier and a mandatory-24h-report flag per a configurable regulatory rule table, and stores the result.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
