package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stratix-platform/initiative-import/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "initiative-import",
	Short: "Spreadsheet import and reconciliation for strategic initiatives",
	Long:  "Reads CSV and Excel exports of initiative plans, maps their columns onto the catalog, creates or updates initiatives per area and reports the KPI impact of every import.",
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

// tenantOrDefault falls back to the configured tenant when no flag was given.
func tenantOrDefault(tenant string) string {
	if tenant != "" {
		return tenant
	}
	return cfg.Import.DefaultTenant
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
