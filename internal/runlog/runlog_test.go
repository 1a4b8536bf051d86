package runlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldworks/moldlab-cli/internal/model"
)

func testRecord(trial, sample string, ok bool) model.RunRecord {
	rec := model.RunRecord{
		TrialID:     trial,
		PromptID:    trial + "-" + sample,
		SampleID:    sample,
		Factors:     model.FactorCombination{TrialID: trial, Context: 1, CoT: 2, Format: 3, Persona: 1},
		RawResponse: `{"quality": "High"}`,
		ParseOK:     ok,
		Internal:    model.InternalMeta{Timestamp: "2024-03-02T10:15:00Z", MouldCode: "M-7712", Label: model.QualityHigh},
		Usage:       model.TokenUsage{PromptTokens: 100, ResponseTokens: 30},
		RecordedAt:  time.Date(2024, 3, 2, 10, 15, 0, 0, time.UTC),
	}
	if ok {
		rec.Parsed = &model.PredictionRecord{SampleID: sample, Quality: model.QualityHigh, Confidence: 0.9}
	} else {
		rec.ParseError = "no JSON object found in response"
	}
	return rec
}

func TestWriter_AppendAndReadAll(t *testing.T) {
	path := Path(t.TempDir(), "T1")
	w, err := NewWriter(path)
	require.NoError(t, err)

	want := []model.RunRecord{
		testRecord("T1", "a", true),
		testRecord("T1", "b", false),
	}
	for _, rec := range want {
		require.NoError(t, w.Append(rec))
	}
	require.NoError(t, w.Close())

	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriter_AppendsAcrossReopens(t *testing.T) {
	path := Path(t.TempDir(), "T1")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRecord("T1", "a", true)))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRecord("T1", "b", true)))
	require.NoError(t, w.Close())

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SampleID)
	assert.Equal(t, "b", got[1].SampleID)
}

func TestWriter_CloseReportsFailure(t *testing.T) {
	w, err := NewWriter(Path(t.TempDir(), "T1"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Syncing an already-closed file fails; the error must surface so
	// callers know the log may not be durable.
	assert.Error(t, w.Close())
}

func TestReadAll_SkipsPartialTrailingLine(t *testing.T) {
	path := Path(t.TempDir(), "T1")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(testRecord("T1", "a", true)))
	require.NoError(t, w.Close())

	// Simulate a crash mid-write: a truncated JSON line at the end.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"trial_id": "T1", "sample_`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].SampleID)
}

func TestReadDir_GroupsByTrial(t *testing.T) {
	dir := t.TempDir()
	for _, trial := range []string{"T1", "T2"} {
		w, err := NewWriter(Path(dir, trial))
		require.NoError(t, err)
		require.NoError(t, w.Append(testRecord(trial, "a", true)))
		require.NoError(t, w.Append(testRecord(trial, "b", false)))
		require.NoError(t, w.Close())
	}

	byTrial, err := ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, byTrial, 2)
	assert.Len(t, byTrial["T1"], 2)
	assert.Len(t, byTrial["T2"], 2)
}

func TestReadDir_EmptyDir(t *testing.T) {
	byTrial, err := ReadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, byTrial)
}

func TestCompletedIndex(t *testing.T) {
	idx := NewCompletedIndex()
	assert.False(t, idx.Done("T1", "a"))

	idx.Add("T1", "a")
	idx.Add("T1", "b")
	idx.Add("T2", "a")

	assert.True(t, idx.Done("T1", "a"))
	assert.False(t, idx.Done("T2", "b"))
	assert.Equal(t, 2, idx.Count("T1"))
	assert.ElementsMatch(t, []string{"T1", "T2"}, idx.Trials())

	pairs := 0
	idx.Pairs(func(_, _ string) { pairs++ })
	assert.Equal(t, 3, pairs)

	// Re-adding is idempotent.
	idx.Add("T1", "a")
	assert.Equal(t, 2, idx.Count("T1"))
}

func TestBuildIndex(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Path(dir, "T3"))
	require.NoError(t, err)
	require.NoError(t, w.Append(testRecord("T3", "x", true)))
	require.NoError(t, w.Append(testRecord("T3", "y", false)))
	require.NoError(t, w.Close())

	idx, err := BuildIndex(dir)
	require.NoError(t, err)
	// Failed-parse records still count as completed: the outcome is
	// recorded, so the pair is not re-queried on resume.
	assert.True(t, idx.Done("T3", "x"))
	assert.True(t, idx.Done("T3", "y"))
	assert.Equal(t, 2, idx.Count("T3"))
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "run_T5.ndjson"), Path("out", "T5"))
}
