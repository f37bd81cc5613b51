package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/order-convert/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "order-convert",
	Short: "Convert medical-order spreadsheets to the insurer intake layout",
	Long:  "Reads order exports (CSV or xlsx), fills employer data from the company registry, normalizes and validates every row, and writes the 25-column intake workbook.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
