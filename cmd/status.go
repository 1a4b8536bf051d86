package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/runlog"
)

var (
	statusRunsDir string
	statusRebuild bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report completed (trial, sample) pairs",
	Long: `Scans the run logs and reports how many samples each trial has
recorded. With --rebuild, the sqlite resume index is rebuilt from the
logs, which are the single source of truth.

Examples:
  moldlab status
  moldlab status --rebuild`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRunsDir, "runs-dir", "", "run log directory (overrides config)")
	statusCmd.Flags().BoolVar(&statusRebuild, "rebuild", false, "rebuild the sqlite resume index from the logs")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	runsDir := statusRunsDir
	if runsDir == "" {
		runsDir = cfg.Experiment.OutDir
	}

	idx, err := runlog.BuildIndex(runsDir)
	if err != nil {
		return err
	}

	trials := idx.Trials()
	sort.Strings(trials)
	if len(trials) == 0 {
		fmt.Printf("no run logs under %s\n", runsDir)
		return nil
	}
	total := 0
	for _, t := range trials {
		fmt.Printf("%-5s %d completed\n", t, idx.Count(t))
		total += idx.Count(t)
	}
	fmt.Printf("total %d completed pairs in %d trials\n", total, len(trials))

	if !statusRebuild {
		return nil
	}
	if cfg.Store.Path == "" {
		fmt.Println("no store.path configured; skipping index rebuild")
		return nil
	}

	ctx := cmd.Context()
	db, err := openRunIndex(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reset(ctx); err != nil {
		return err
	}
	var markErr error
	idx.Pairs(func(trialID, sampleID string) {
		if markErr == nil {
			markErr = db.MarkDone(ctx, trialID, sampleID, "rebuild")
		}
	})
	if markErr != nil {
		return markErr
	}
	zap.L().Info("resume index rebuilt",
		zap.String("path", cfg.Store.Path),
		zap.Int("pairs", total),
	)
	fmt.Printf("rebuilt %s with %d pairs\n", cfg.Store.Path, total)
	return nil
}
