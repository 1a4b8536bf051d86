package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/config"
	"github.com/moldworks/moldlab-cli/internal/dataset"
	"github.com/moldworks/moldlab-cli/internal/experiment"
	"github.com/moldworks/moldlab-cli/internal/extract"
	"github.com/moldworks/moldlab-cli/internal/prompt"
	"github.com/moldworks/moldlab-cli/internal/resilience"
	"github.com/moldworks/moldlab-cli/internal/runlog"
	"github.com/moldworks/moldlab-cli/pkg/gemini"
)

var (
	runMatrix        string
	runData          string
	runOutDir        string
	runSamples       int
	runSeed          int64
	runDryRun        bool
	runResume        bool
	runStrict        bool
	runIncludePrompt bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the Taguchi prompt experiment",
	Long: `Runs every trial of the design matrix sequentially: draws samples from
the dataset, assembles the prompt for the trial's factor levels, calls
the LLM endpoint with bounded retry, and appends one NDJSON record per
sample to outputs/run_<trial>.ndjson. Per-sample failures are recorded
and the run continues; configuration and I/O failures abort.

Examples:
  # Dry run against the built-in stub client, no API key needed
  moldlab run --data samples.csv --dry-run

  # Live run with an external matrix, 10 samples per trial
  moldlab run --matrix l9.csv --data samples.csv --samples 10

  # Resume an interrupted run, skipping recorded pairs
  moldlab run --data samples.csv --resume`,
	RunE: runExperiment,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runMatrix, "matrix", "", "design matrix CSV (default: config, else built-in L9)")
	f.StringVar(&runData, "data", "", "sample dataset (.csv or .xlsx; overrides config)")
	f.StringVar(&runOutDir, "out-dir", "", "run log directory (overrides config)")
	f.IntVar(&runSamples, "samples", 0, "samples per trial (overrides config)")
	f.Int64Var(&runSeed, "seed", 0, "sampling seed (overrides config)")
	f.BoolVar(&runDryRun, "dry-run", false, "use the stub client, no network calls")
	f.BoolVar(&runResume, "resume", false, "skip (trial, sample) pairs already in the logs")
	f.BoolVar(&runStrict, "strict", false, "strict parsing only: no fenced/embedded JSON extraction")
	f.BoolVar(&runIncludePrompt, "include-prompt", false, "store the full prompt text on each record")
	rootCmd.AddCommand(runCmd)
}

func runExperiment(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exp := cfg.Experiment
	applyRunFlags(cmd.Flags(), &exp)
	if exp.Dataset == "" {
		return eris.New("run: no dataset configured (use --data or experiment.dataset)")
	}

	matrixPath := runMatrix
	if matrixPath == "" {
		matrixPath = exp.MatrixCSV
	}
	design, err := loadDesign(matrixPath)
	if err != nil {
		return err
	}
	if err := taguchiCheck(design); err != nil {
		return err
	}

	samples, err := dataset.Load(exp.Dataset)
	if err != nil {
		return err
	}
	zap.L().Info("dataset loaded",
		zap.String("path", exp.Dataset),
		zap.Int("samples", len(samples)),
	)

	client, err := buildClient()
	if err != nil {
		return err
	}

	parserOpts := []extract.Option{}
	if runStrict {
		parserOpts = append(parserOpts, extract.StrictOnly())
	}

	opts := experiment.Options{
		Client:    client,
		Assembler: prompt.NewAssembler(),
		Parser:    extract.NewParser(parserOpts...),
		Policy: resilience.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
			Multiplier:     cfg.Retry.Multiplier,
			JitterFraction: cfg.Retry.JitterFraction,
			OnRetry:        resilience.RetryLogger("gemini", "generate"),
		},
		TimeoutMaxAttempts: cfg.Retry.TimeoutMaxAttempts,
		GenConfig:          genConfig(),
		OutDir:             exp.OutDir,
		SamplesPerTrial:    exp.SamplesPerTrial,
		Seed:               exp.Seed,
		IncludePrompt:      exp.IncludePrompt,
		Model:              cfg.Gemini.Model,
		Resume:             runResume,
	}

	if runResume {
		completed, err := runlog.BuildIndex(exp.OutDir)
		if err != nil {
			return err
		}
		opts.Completed = completed
	}

	if cfg.Store.Path != "" {
		idx, err := openRunIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()
		opts.Index = idx
	}

	result, err := experiment.NewRunner(opts).Run(ctx, design, samples)
	if err != nil {
		return err
	}

	for _, tr := range result.Trials {
		fmt.Printf("%s: %d/%d parsed", tr.TrialID, tr.ParseOK, tr.N)
		if tr.Skipped > 0 {
			fmt.Printf(" (%d skipped)", tr.Skipped)
		}
		fmt.Println()
	}
	fmt.Printf("summary: %s\n", filepath.Join(exp.OutDir, experiment.SummaryFile))
	return nil
}

// applyRunFlags lays the run flags over the configured experiment
// values. Changed distinguishes an explicit --seed 0 from an unset
// flag.
func applyRunFlags(f *pflag.FlagSet, exp *config.ExperimentConfig) {
	if runData != "" {
		exp.Dataset = runData
	}
	if runOutDir != "" {
		exp.OutDir = runOutDir
	}
	if runSamples > 0 {
		exp.SamplesPerTrial = runSamples
	}
	if f.Changed("seed") {
		exp.Seed = runSeed
	}
	if runIncludePrompt {
		exp.IncludePrompt = true
	}
}

// buildClient returns the stub client for dry runs, otherwise a live
// client configured from the gemini section.
func buildClient() (gemini.Client, error) {
	if runDryRun {
		zap.L().Info("dry run: using stub client")
		return &gemini.StaticClient{Response: gemini.DryRunResponse}, nil
	}

	key, err := cfg.Gemini.ResolveKey()
	if err != nil {
		return nil, err
	}
	return gemini.NewClient(key,
		gemini.WithEndpoint(cfg.Gemini.Endpoint),
		gemini.WithTimeout(cfg.Gemini.Timeout()),
		gemini.WithRateLimit(cfg.Gemini.RateLimitPerMin),
	), nil
}

func genConfig() *gemini.GenerationConfig {
	gc := &gemini.GenerationConfig{}
	if cfg.Gemini.Temperature > 0 {
		t := cfg.Gemini.Temperature
		gc.Temperature = &t
	}
	if cfg.Gemini.MaxOutputTokens > 0 {
		m := cfg.Gemini.MaxOutputTokens
		gc.MaxOutputTokens = &m
	}
	return gc
}
