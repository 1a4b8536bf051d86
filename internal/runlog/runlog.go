// Package runlog reads and writes the per-trial NDJSON run logs. The
// logs are append-only and self-describing: each line is a complete
// RunRecord, so an interrupted run can be resumed by replaying the log.
package runlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// maxLineBytes bounds a single log line; raw responses with detailed
// chain-of-thought can run long.
const maxLineBytes = 4 << 20

// Path returns the log file path for a trial inside out dir.
func Path(dir, trialID string) string {
	return filepath.Join(dir, "run_"+trialID+".ndjson")
}

// Writer appends RunRecords to a single trial log. Append is the only
// mutation; existing lines are never rewritten. Not safe for concurrent
// use — the runner processes samples sequentially.
type Writer struct {
	f *os.File
}

// NewWriter opens (creating if needed) the trial log for appending.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "runlog: create dir for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: open %s", path)
	}
	return &Writer{f: f}, nil
}

// Append writes one record as a single JSON line.
func (w *Writer) Append(rec model.RunRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrapf(err, "runlog: marshal record %s/%s", rec.TrialID, rec.SampleID)
	}
	line = append(line, '\n')
	if _, err := w.f.Write(line); err != nil {
		return eris.Wrapf(err, "runlog: append record %s/%s", rec.TrialID, rec.SampleID)
	}
	return nil
}

// Sync flushes the log to stable storage.
func (w *Writer) Sync() error {
	return eris.Wrap(w.f.Sync(), "runlog: sync")
}

// Close syncs and closes the log.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return eris.Wrap(err, "runlog: sync on close")
	}
	return eris.Wrap(w.f.Close(), "runlog: close")
}

// ReadAll replays a trial log line by line in write order. Lines that
// fail to decode (a partial trailing line from an interrupted run) are
// skipped with a warning rather than aborting the replay.
func ReadAll(path string) ([]model.RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: open %s", path)
	}
	defer f.Close()

	var records []model.RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			zap.L().Warn("runlog: skipping undecodable line",
				zap.String("path", path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "runlog: scan %s", path)
	}
	return records, nil
}

// ReadDir replays every run_*.ndjson log under dir, keyed by trial ID.
func ReadDir(dir string) (map[string][]model.RunRecord, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "run_*.ndjson"))
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: glob %s", dir)
	}
	out := make(map[string][]model.RunRecord)
	for _, p := range paths {
		records, err := ReadAll(p)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			out[rec.TrialID] = append(out[rec.TrialID], rec)
		}
	}
	return out, nil
}
