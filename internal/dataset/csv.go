// Package dataset loads the pruned, labeled sample files the experiment
// draws from. CSV and XLSX exports share the same column layout; the
// ground-truth label column is kept for offline scoring only and never
// becomes prompt content.
package dataset

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// setpointColumns maps source columns to the setpoint names rendered in
// prompts.
var setpointColumns = map[string]string{
	"mold_temperature":      "mold_temp",
	"injection_pressure":    "inj_pressure",
	"MeasuredCycleDuration": "cycle_time",
}

// LoadCSV reads a sample CSV with a header row.
func LoadCSV(path string) ([]model.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return samplesFromRows(rows, path)
}

// samplesFromRows converts header+data rows into samples. Shared by the
// CSV and XLSX loaders.
func samplesFromRows(rows [][]string, path string) ([]model.Sample, error) {
	if len(rows) < 2 {
		return nil, eris.Errorf("dataset: %s has no data rows", path)
	}
	header := rows[0]

	samples := make([]model.Sample, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cells := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(row) {
				cells[name] = strings.TrimSpace(row[j])
			}
		}
		s, err := buildSample(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s row %d", path, i+2)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// buildSample assembles one Sample from a header-keyed row.
func buildSample(cells map[string]string) (model.Sample, error) {
	id := firstOf(cells, "sample_id", "id", "RowID")
	if id == "" {
		return model.Sample{}, eris.New("missing sample_id")
	}

	s := model.Sample{
		ID:                id,
		Setpoints:         make(map[string]string, len(setpointColumns)),
		TimeseriesSummary: cells["timeseries_summary"],
		Internal: model.InternalMeta{
			Timestamp: firstOf(cells, "timestamp", "Ts"),
			MouldCode: cells["MouldCode"],
		},
	}

	for col, name := range setpointColumns {
		if v := cells[col]; v != "" {
			s.Setpoints[name] = v
		}
	}

	for _, name := range model.MeasurementFields {
		s.Measurements = append(s.Measurements, model.Measurement{Name: name, Value: cells[name]})
	}

	if raw := cells["recent_readings"]; raw != "" {
		series, err := parseSeries(raw)
		if err != nil {
			return model.Sample{}, err
		}
		s.Series = series
	}

	if raw := firstOf(cells, "quality_label", "label"); raw != "" {
		q, ok := model.ParseQuality(raw)
		if !ok {
			return model.Sample{}, eris.Errorf("unknown quality label %q", raw)
		}
		s.Internal.Label = q
	}

	return s, nil
}

// parseSeries decodes a semicolon-separated reading series.
func parseSeries(raw string) ([]float64, error) {
	parts := strings.Split(raw, ";")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "bad reading %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func firstOf(cells map[string]string, names ...string) string {
	for _, n := range names {
		if v := cells[n]; v != "" {
			return v
		}
	}
	return ""
}

// Labels extracts the ground-truth map used for offline scoring.
func Labels(samples []model.Sample) map[string]model.Quality {
	out := make(map[string]model.Quality, len(samples))
	for _, s := range samples {
		if s.Internal.Label != "" {
			out[s.ID] = s.Internal.Label
		}
	}
	return out
}
