package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/cost"
	"github.com/moldworks/moldlab-cli/internal/dataset"
	"github.com/moldworks/moldlab-cli/internal/model"
	"github.com/moldworks/moldlab-cli/internal/runlog"
	"github.com/moldworks/moldlab-cli/internal/taguchi"
)

// Output documents written next to the run logs.
const (
	runsSummaryFile = "taguchi_runs_summary.json"
	analysisFile    = "taguchi_analysis.json"
)

var (
	analyzeRunsDir string
	analyzeData    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate run logs and rank factor levels",
	Long: `Replays every run_<trial>.ndjson log, computes per-trial metrics
(parsability, accuracy, macro-F1, confidence-weighted accuracy, Brier
score, S/N ratios) and ranks factor levels by average larger-is-better
S/N to recommend a prompt configuration.

Ground-truth labels come from the dataset given with --data; without it,
labels stored in the logs' internal metadata are used.

Examples:
  moldlab analyze --data samples.csv
  moldlab analyze --runs-dir outputs/taguchi_runs`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRunsDir, "runs-dir", "", "run log directory (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeData, "data", "", "labeled dataset for ground truth (overrides config)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(_ *cobra.Command, _ []string) error {
	runsDir := analyzeRunsDir
	if runsDir == "" {
		runsDir = cfg.Experiment.OutDir
	}

	byTrial, err := runlog.ReadDir(runsDir)
	if err != nil {
		return err
	}
	if len(byTrial) == 0 {
		return eris.Errorf("analyze: no run logs under %s", runsDir)
	}

	labels, err := loadLabels()
	if err != nil {
		return err
	}

	calc := cost.NewCalculator(cfg.Pricing)

	var summaries []taguchi.RunSummary
	for _, records := range byTrial {
		s := taguchi.Summarize(records[0].Factors, records, labels)
		s.EstimatedCost = calc.Gemini(s.Usage.PromptTokens, s.Usage.ResponseTokens)
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].TrialID < summaries[j].TrialID })

	analysis := taguchi.Analyze(summaries)

	if err := writeJSON(filepath.Join(runsDir, runsSummaryFile), map[string]any{"summary": summaries}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(runsDir, analysisFile), analysis); err != nil {
		return err
	}

	fmt.Println("trial  n  parse  acc    f1     cwa    brier  s/n(dB)")
	for _, s := range summaries {
		fmt.Printf("%-5s %3d %5d  %.3f  %.3f  %.3f  %.3f  %6.2f\n",
			s.TrialID, s.N, s.ParseOK, s.Accuracy, s.MacroF1, s.ConfWeightedAccuracy, s.Brier, s.SNLarger)
	}
	fmt.Println()
	for _, f := range model.Factors {
		fmt.Printf("best %-8s level %d\n", f, analysis.Best[f])
	}
	fmt.Printf("recommended: context=%d cot=%d format=%d persona=%d\n",
		analysis.Recommended.Context, analysis.Recommended.CoT,
		analysis.Recommended.Format, analysis.Recommended.Persona)

	zap.L().Info("analysis written",
		zap.String("summary", filepath.Join(runsDir, runsSummaryFile)),
		zap.String("analysis", filepath.Join(runsDir, analysisFile)),
	)
	return nil
}

func loadLabels() (map[string]model.Quality, error) {
	path := analyzeData
	if path == "" {
		path = cfg.Experiment.Dataset
	}
	if path == "" {
		return nil, nil // fall back to labels recorded in the logs
	}
	samples, err := dataset.Load(path)
	if err != nil {
		return nil, err
	}
	return dataset.Labels(samples), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "analyze: marshal %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "analyze: write %s", path)
	}
	return nil
}
