// Package experiment drives the Taguchi prompt experiment: one trial
// per design-matrix row, processed strictly sequentially, every outcome
// appended to the trial's run log before the next sample starts.
package experiment

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/dataset"
	"github.com/moldworks/moldlab-cli/internal/extract"
	"github.com/moldworks/moldlab-cli/internal/model"
	"github.com/moldworks/moldlab-cli/internal/prompt"
	"github.com/moldworks/moldlab-cli/internal/resilience"
	"github.com/moldworks/moldlab-cli/internal/runlog"
	"github.com/moldworks/moldlab-cli/internal/store"
	"github.com/moldworks/moldlab-cli/pkg/gemini"
)

// SummaryFile is the results summary written next to the run logs.
const SummaryFile = "taguchi_results_summary.json"

// Options configures a Runner. Client, Assembler and Parser are
// required; Index and Completed are optional.
type Options struct {
	Client    gemini.Client
	Assembler *prompt.Assembler
	Parser    *extract.Parser

	Policy             resilience.Policy
	TimeoutMaxAttempts int
	GenConfig          *gemini.GenerationConfig

	OutDir          string
	SamplesPerTrial int
	Seed            int64
	IncludePrompt   bool
	Model           string

	// Completed pairs are skipped when Resume is set. Built from the
	// run logs, which stay the source of truth.
	Resume    bool
	Completed *runlog.CompletedIndex

	// Index, when present, receives completed pairs for fast status
	// queries. Index write failures are logged, never fatal.
	Index *store.RunIndex
}

// TrialResult summarizes one trial of a finished run.
type TrialResult struct {
	TrialID  string                  `json:"trial_id"`
	Factors  model.FactorCombination `json:"factors"`
	N        int                     `json:"n"`
	ParseOK  int                     `json:"parse_ok"`
	Failures int                     `json:"failures"`
	Skipped  int                     `json:"skipped"`
	Usage    model.TokenUsage        `json:"usage"`
}

// Result is the experiment summary document.
type Result struct {
	ExperimentID string           `json:"experiment_id"`
	Model        string           `json:"model"`
	Trials       []TrialResult    `json:"trials"`
	Usage        model.TokenUsage `json:"usage"`
	RunAt        time.Time        `json:"run_at"`
}

// Runner executes the experiment.
type Runner struct {
	opts Options
	id   string
	log  *zap.Logger
}

// NewRunner creates a Runner with a fresh experiment ID.
func NewRunner(opts Options) *Runner {
	id := uuid.NewString()
	return &Runner{
		opts: opts,
		id:   id,
		log:  zap.L().With(zap.String("experiment_id", id)),
	}
}

// Run processes every trial in design order and writes the summary
// document. Per-sample failures are recorded in the trial log and never
// abort the run; I/O failures are fatal.
func (r *Runner) Run(ctx context.Context, design []model.FactorCombination, samples []model.Sample) (*Result, error) {
	if len(design) == 0 {
		return nil, eris.New("experiment: empty design matrix")
	}
	if len(samples) == 0 {
		return nil, eris.New("experiment: no samples to draw from")
	}

	res := &Result{
		ExperimentID: r.id,
		Model:        r.opts.Model,
		RunAt:        time.Now().UTC(),
	}

	for i, comb := range design {
		tr, err := r.runTrial(ctx, i, comb, samples)
		res.Trials = append(res.Trials, tr)
		res.Usage.Add(tr.Usage)
		if err != nil {
			return res, err
		}
	}

	if err := r.writeSummary(res); err != nil {
		return res, err
	}
	r.log.Info("experiment complete",
		zap.Int("trials", len(res.Trials)),
		zap.Int("prompt_tokens", res.Usage.PromptTokens),
		zap.Int("response_tokens", res.Usage.ResponseTokens),
	)
	return res, nil
}

func (r *Runner) runTrial(ctx context.Context, ordinal int, comb model.FactorCombination, all []model.Sample) (tr TrialResult, err error) {
	tr = TrialResult{TrialID: comb.TrialID, Factors: comb}
	log := r.log.With(zap.String("trial", comb.TrialID))

	// Deterministic draw: the same (seed, trial ordinal) pair always
	// selects the same samples, which is what makes resume safe.
	samples := dataset.Select(all, r.opts.SamplesPerTrial, uint64(r.opts.Seed)+uint64(ordinal))

	w, err := runlog.NewWriter(runlog.Path(r.opts.OutDir, comb.TrialID))
	if err != nil {
		return tr, err
	}
	// A failed sync at trial end means records may not be durable;
	// surface it instead of moving on to the next trial.
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	log.Info("trial started", zap.Int("samples", len(samples)))

	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return tr, eris.Wrap(err, "experiment: interrupted")
		}
		if r.opts.Resume && r.opts.Completed != nil && r.opts.Completed.Done(comb.TrialID, s.ID) {
			tr.Skipped++
			continue
		}

		rec := r.processSample(ctx, comb, s)
		if err := w.Append(rec); err != nil {
			return tr, err
		}
		r.markDone(ctx, comb.TrialID, s.ID)

		tr.N++
		tr.Usage.Add(rec.Usage)
		if rec.ParseOK {
			tr.ParseOK++
		} else {
			tr.Failures++
		}
	}

	log.Info("trial finished",
		zap.Int("n", tr.N),
		zap.Int("parse_ok", tr.ParseOK),
		zap.Int("skipped", tr.Skipped),
	)
	return tr, nil
}

// processSample always produces a RunRecord: call failures and parse
// failures are captured on the record, never silently dropped.
func (r *Runner) processSample(ctx context.Context, comb model.FactorCombination, s model.Sample) model.RunRecord {
	promptID := comb.TrialID + "-" + s.ID
	p := r.opts.Assembler.Build(comb, s, promptID)

	rec := model.RunRecord{
		TrialID:    comb.TrialID,
		PromptID:   promptID,
		SampleID:   s.ID,
		Factors:    comb,
		RawRow:     &s,
		Internal:   s.Internal,
		RecordedAt: time.Now().UTC(),
	}
	if r.opts.IncludePrompt {
		rec.Prompt = p.Text
	}

	resp, err := Send(ctx, r.opts.Client, r.opts.Policy, r.opts.TimeoutMaxAttempts, gemini.TextRequest(p.Text, r.opts.GenConfig))
	if err != nil {
		rec.RawResponse = "error: " + err.Error()
		rec.ParseError = "call failed"
		r.log.Warn("sample call failed",
			zap.String("trial", comb.TrialID),
			zap.String("sample", s.ID),
			zap.Error(err),
		)
		return rec
	}

	rec.RawResponse = resp.Text()
	rec.Usage = model.TokenUsage{
		PromptTokens:   resp.UsageMetadata.PromptTokenCount,
		ResponseTokens: resp.UsageMetadata.CandidatesTokenCount,
	}

	outcome := r.opts.Parser.Parse(rec.RawResponse)
	pr, ok := outcome.Record()
	if !ok {
		rec.ParseError = outcome.Reason()
		return rec
	}

	// The model's own provenance is advisory; fill the authoritative
	// values where it left them blank.
	if pr.Provenance.Model == "" {
		pr.Provenance.Model = r.opts.Model
	}
	if pr.Provenance.PromptID == "" {
		pr.Provenance.PromptID = promptID
	}
	if pr.Provenance.Timestamp == "" {
		pr.Provenance.Timestamp = rec.RecordedAt.Format(time.RFC3339)
	}
	rec.Parsed = pr
	rec.ParseOK = true
	return rec
}

func (r *Runner) markDone(ctx context.Context, trialID, sampleID string) {
	if r.opts.Completed != nil {
		r.opts.Completed.Add(trialID, sampleID)
	}
	if r.opts.Index == nil {
		return
	}
	if err := r.opts.Index.MarkDone(ctx, trialID, sampleID, r.id); err != nil {
		r.log.Warn("run index update failed",
			zap.String("trial", trialID),
			zap.String("sample", sampleID),
			zap.Error(err),
		)
	}
}

func (r *Runner) writeSummary(res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return eris.Wrap(err, "experiment: marshal summary")
	}
	path := filepath.Join(r.opts.OutDir, SummaryFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "experiment: write summary %s", path)
	}
	return nil
}
