package taguchi

import (
	"math"
	"sort"
	"time"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// snFloor clamps response values away from zero before the log10
// transform; a zero response would otherwise produce -Inf.
const snFloor = 1e-6

// RunSummary aggregates the recorded outcomes of one trial.
type RunSummary struct {
	TrialID              string                  `json:"trial_id"`
	Factors              model.FactorCombination `json:"factors"`
	N                    int                     `json:"n"`
	ParseOK              int                     `json:"parse_ok"`
	ParseRate            float64                 `json:"parse_rate"`
	Labeled              int                     `json:"labeled"`
	Accuracy             float64                 `json:"accuracy"`
	MacroF1              float64                 `json:"macro_f1"`
	ConfWeightedAccuracy float64                 `json:"conf_weighted_accuracy"`
	Brier                float64                 `json:"brier"`
	AvgConfidence        float64                 `json:"avg_confidence"`
	SNLarger             float64                 `json:"sn_larger_db"`
	SNSmaller            float64                 `json:"sn_smaller_db"`
	Usage                model.TokenUsage        `json:"usage"`
	EstimatedCost        float64                 `json:"estimated_cost,omitempty"`
}

// LevelAverage is the mean response for one factor level across the
// trials that share it.
type LevelAverage struct {
	Factor    model.Factor `json:"factor"`
	Level     model.Level  `json:"level"`
	Trials    []string     `json:"trials"`
	Metric    float64      `json:"conf_weighted_accuracy"`
	SNLarger  float64      `json:"sn_larger_db"`
	SNSmaller float64      `json:"sn_smaller_db"`
}

// Analysis is the final Taguchi level selection: per-level averages,
// the best level per factor, and the recommended combination.
type Analysis struct {
	Levels      []LevelAverage               `json:"levels"`
	Best        map[model.Factor]model.Level `json:"best_levels"`
	Recommended model.FactorCombination      `json:"recommended"`
	RunAt       time.Time                    `json:"run_at"`
}

// Summarize computes the per-trial metrics from its run records.
// Ground-truth labels are keyed by sample ID; records whose sample has
// no label contribute to parse metrics but not to accuracy, F1 or Brier.
func Summarize(comb model.FactorCombination, records []model.RunRecord, labels map[string]model.Quality) RunSummary {
	s := RunSummary{TrialID: comb.TrialID, Factors: comb, N: len(records)}

	var (
		confSum, confWeightSum, weightedCorrect float64
		brierSum                                float64
		correct                                 int
		preds                                   []model.Quality
		truths                                  []model.Quality
	)

	for _, r := range records {
		s.Usage.Add(r.Usage)
		if !r.ParseOK || r.Parsed == nil {
			continue
		}
		s.ParseOK++
		confSum += r.Parsed.Confidence

		label, ok := labels[r.SampleID]
		if !ok {
			label = r.Internal.Label
		}
		if label == "" {
			continue
		}
		s.Labeled++
		preds = append(preds, r.Parsed.Quality)
		truths = append(truths, label)

		hit := 0.0
		if r.Parsed.Quality == label {
			hit = 1.0
			correct++
		}
		confWeightSum += r.Parsed.Confidence
		weightedCorrect += r.Parsed.Confidence * hit
		brierSum += (r.Parsed.Confidence - hit) * (r.Parsed.Confidence - hit)
	}

	if s.N > 0 {
		s.ParseRate = float64(s.ParseOK) / float64(s.N)
	}
	if s.ParseOK > 0 {
		s.AvgConfidence = confSum / float64(s.ParseOK)
	}
	if s.Labeled > 0 {
		s.Accuracy = float64(correct) / float64(s.Labeled)
		s.Brier = brierSum / float64(s.Labeled)
		s.MacroF1 = macroF1(preds, truths)
	}
	if confWeightSum > 0 {
		s.ConfWeightedAccuracy = weightedCorrect / confWeightSum
	}

	s.SNLarger = SNLarger(s.ConfWeightedAccuracy)
	s.SNSmaller = SNSmaller(s.Brier)
	return s
}

// SNLarger is the Taguchi larger-is-better transform of a single
// response value: -10*log10(1/y^2).
func SNLarger(y float64) float64 {
	if y < snFloor {
		y = snFloor
	}
	return -10 * math.Log10(1/(y*y))
}

// SNSmaller is the Taguchi smaller-is-better transform: -10*log10(y^2).
func SNSmaller(y float64) float64 {
	if y < snFloor {
		y = snFloor
	}
	return -10 * math.Log10(y*y)
}

// macroF1 averages per-class F1 over the quality classes present in
// either predictions or ground truth.
func macroF1(preds, truths []model.Quality) float64 {
	var sum float64
	var classes int
	for _, q := range model.Qualities {
		var tp, fp, fn int
		for i := range preds {
			switch {
			case preds[i] == q && truths[i] == q:
				tp++
			case preds[i] == q:
				fp++
			case truths[i] == q:
				fn++
			}
		}
		if tp+fp+fn == 0 {
			continue // class absent from both; leave it out of the mean
		}
		classes++
		if tp == 0 {
			continue // F1 is 0
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(tp+fn)
		sum += 2 * precision * recall / (precision + recall)
	}
	if classes == 0 {
		return 0
	}
	return sum / float64(classes)
}

// Analyze ranks factor levels by their average larger-is-better S/N and
// selects the best level per factor. Ties break toward the lower level
// index, which keeps the selection deterministic.
func Analyze(summaries []RunSummary) Analysis {
	a := Analysis{
		Best:  make(map[model.Factor]model.Level),
		RunAt: time.Now().UTC(),
	}

	for _, f := range model.Factors {
		var bestLevel model.Level
		var bestSN float64
		for lvl := model.Level(1); lvl <= 3; lvl++ {
			avg := LevelAverage{Factor: f, Level: lvl}
			var snL, snS, metric float64
			for _, s := range summaries {
				if s.Factors.Level(f) != lvl {
					continue
				}
				avg.Trials = append(avg.Trials, s.TrialID)
				snL += s.SNLarger
				snS += s.SNSmaller
				metric += s.ConfWeightedAccuracy
			}
			if n := len(avg.Trials); n > 0 {
				avg.SNLarger = snL / float64(n)
				avg.SNSmaller = snS / float64(n)
				avg.Metric = metric / float64(n)
			}
			sort.Strings(avg.Trials)
			a.Levels = append(a.Levels, avg)

			if len(avg.Trials) > 0 && (bestLevel == 0 || avg.SNLarger > bestSN) {
				bestLevel = lvl
				bestSN = avg.SNLarger
			}
		}
		a.Best[f] = bestLevel
	}

	a.Recommended = model.FactorCombination{
		TrialID: "recommended",
		Context: a.Best[model.FactorContext],
		CoT:     a.Best[model.FactorCoT],
		Format:  a.Best[model.FactorFormat],
		Persona: a.Best[model.FactorPersona],
	}
	return a
}
