package taguchi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldworks/moldlab-cli/internal/model"
)

func record(trial, sample string, ok bool, q model.Quality, conf float64) model.RunRecord {
	rec := model.RunRecord{TrialID: trial, SampleID: sample, ParseOK: ok}
	if ok {
		rec.Parsed = &model.PredictionRecord{SampleID: sample, Quality: q, Confidence: conf}
	}
	return rec
}

func TestSummarize_ParseRate(t *testing.T) {
	comb := model.FactorCombination{TrialID: "T1", Context: 1, CoT: 1, Format: 1, Persona: 1}
	records := []model.RunRecord{
		record("T1", "a", true, model.QualityHigh, 0.8),
		record("T1", "b", false, "", 0),
		record("T1", "c", true, model.QualityLow, 0.4),
		record("T1", "d", false, "", 0),
	}
	s := Summarize(comb, records, nil)
	assert.Equal(t, 4, s.N)
	assert.Equal(t, 2, s.ParseOK)
	assert.InDelta(t, 0.5, s.ParseRate, 1e-9)
	assert.InDelta(t, 0.6, s.AvgConfidence, 1e-9)
	assert.Equal(t, 0, s.Labeled) // no ground truth supplied
}

func TestSummarize_AccuracyAndBrier(t *testing.T) {
	comb := model.FactorCombination{TrialID: "T2", Context: 1, CoT: 2, Format: 2, Persona: 2}
	records := []model.RunRecord{
		record("T2", "a", true, model.QualityHigh, 0.9),   // correct
		record("T2", "b", true, model.QualityMedium, 0.6), // wrong
	}
	labels := map[string]model.Quality{
		"a": model.QualityHigh,
		"b": model.QualityLow,
	}
	s := Summarize(comb, records, labels)
	assert.Equal(t, 2, s.Labeled)
	assert.InDelta(t, 0.5, s.Accuracy, 1e-9)
	// Brier: ((0.9-1)^2 + (0.6-0)^2) / 2 = (0.01 + 0.36) / 2
	assert.InDelta(t, 0.185, s.Brier, 1e-9)
	// Confidence-weighted accuracy: 0.9*1 / (0.9+0.6)
	assert.InDelta(t, 0.6, s.ConfWeightedAccuracy, 1e-9)
}

func TestSummarize_LabelFallbackToInternal(t *testing.T) {
	comb := model.FactorCombination{TrialID: "T3", Context: 1, CoT: 3, Format: 3, Persona: 3}
	rec := record("T3", "a", true, model.QualityMedium, 0.7)
	rec.Internal.Label = model.QualityMedium
	s := Summarize(comb, []model.RunRecord{rec}, nil)
	assert.Equal(t, 1, s.Labeled)
	assert.InDelta(t, 1.0, s.Accuracy, 1e-9)
}

func TestSN_Transforms(t *testing.T) {
	// Larger-is-better of 1.0 is 0 dB; of 0.5 is about -6.02 dB.
	assert.InDelta(t, 0.0, SNLarger(1.0), 1e-9)
	assert.InDelta(t, -6.0206, SNLarger(0.5), 1e-3)
	// Smaller-is-better of 0.1 is +20 dB.
	assert.InDelta(t, 20.0, SNSmaller(0.1), 1e-9)
	// Zero responses are clamped, not -Inf.
	assert.False(t, SNLarger(0) < -200)
}

func TestAnalyze_LevelAverage(t *testing.T) {
	// Three trials share context level 1 with confidence-weighted
	// accuracies 0.5, 0.6, 0.7; the level average must be 0.6.
	var summaries []RunSummary
	design := Design()
	cwa := map[string]float64{"T1": 0.5, "T2": 0.6, "T3": 0.7}
	for _, comb := range design {
		v := cwa[comb.TrialID] // 0 for trials at other context levels
		summaries = append(summaries, RunSummary{
			TrialID:              comb.TrialID,
			Factors:              comb,
			ConfWeightedAccuracy: v,
			SNLarger:             SNLarger(v),
		})
	}

	a := Analyze(summaries)
	var found bool
	for _, lv := range a.Levels {
		if lv.Factor == model.FactorContext && lv.Level == 1 {
			found = true
			assert.ElementsMatch(t, []string{"T1", "T2", "T3"}, lv.Trials)
			assert.InDelta(t, 0.6, lv.Metric, 1e-9)
		}
	}
	require.True(t, found, "context level 1 average missing")

	// Context level 1 carries all the signal, so it must win.
	assert.Equal(t, model.Level(1), a.Best[model.FactorContext])
	assert.Equal(t, model.Level(1), a.Recommended.Context)
}

func TestAnalyze_TieBreaksTowardLowerLevel(t *testing.T) {
	var summaries []RunSummary
	for _, comb := range Design() {
		summaries = append(summaries, RunSummary{
			TrialID:              comb.TrialID,
			Factors:              comb,
			ConfWeightedAccuracy: 0.5,
			SNLarger:             SNLarger(0.5),
		})
	}
	a := Analyze(summaries)
	for _, f := range model.Factors {
		assert.Equal(t, model.Level(1), a.Best[f], "factor %s", f)
	}
}

func TestMacroF1_PerfectAndMixed(t *testing.T) {
	preds := []model.Quality{model.QualityHigh, model.QualityLow}
	truths := []model.Quality{model.QualityHigh, model.QualityLow}
	assert.InDelta(t, 1.0, macroF1(preds, truths), 1e-9)

	// One class predicted perfectly, the other never predicted.
	preds = []model.Quality{model.QualityHigh, model.QualityHigh}
	truths = []model.Quality{model.QualityHigh, model.QualityLow}
	// High: tp=1 fp=1 fn=0 -> F1 = 2/3; Low: tp=0 -> F1 = 0. Mean = 1/3.
	assert.InDelta(t, 1.0/3.0, macroF1(preds, truths), 1e-9)
}
