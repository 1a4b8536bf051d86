package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "moldlab",
	Short: "Taguchi prompt experiments for injection-molding quality assessment",
	Long: "Runs an L9 Taguchi design over prompt factors (context depth, chain-of-thought, " +
		"output strictness, persona) against an LLM endpoint, records per-sample outcomes " +
		"to append-only NDJSON logs, and ranks factor levels by signal-to-noise ratio.",
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
