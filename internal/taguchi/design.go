package taguchi

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// l9 is the canonical L9(3^4) orthogonal array: 9 trials over 4
// three-level factors, columns A=context, B=cot, C=format, D=persona.
var l9 = [9][4]model.Level{
	{1, 1, 1, 1},
	{1, 2, 2, 2},
	{1, 3, 3, 3},
	{2, 1, 2, 3},
	{2, 2, 3, 1},
	{2, 3, 1, 2},
	{3, 1, 3, 2},
	{3, 2, 1, 3},
	{3, 3, 2, 1},
}

// Design returns the canonical L9 design in trial order T1..T9.
func Design() []model.FactorCombination {
	out := make([]model.FactorCombination, len(l9))
	for i, row := range l9 {
		out[i] = model.FactorCombination{
			TrialID: fmt.Sprintf("T%d", i+1),
			Context: row[0],
			CoT:     row[1],
			Format:  row[2],
			Persona: row[3],
		}
	}
	return out
}

// LoadDesignCSV reads an external design matrix with header
// trial,A,B,C,D. Levels must be 1..3.
func LoadDesignCSV(path string) ([]model.FactorCombination, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "taguchi: open design csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "taguchi: read design csv")
	}
	if len(rows) < 2 {
		return nil, eris.Errorf("taguchi: design csv %s has no data rows", path)
	}

	col := map[string]int{}
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, want := range []string{"trial", "A", "B", "C", "D"} {
		if _, ok := col[want]; !ok {
			return nil, eris.Errorf("taguchi: design csv missing column %q", want)
		}
	}

	var design []model.FactorCombination
	for _, row := range rows[1:] {
		levels := make([]model.Level, 4)
		for i, c := range []string{"A", "B", "C", "D"} {
			n, err := strconv.Atoi(row[col[c]])
			if err != nil {
				return nil, eris.Wrapf(err, "taguchi: trial %s column %s", row[col["trial"]], c)
			}
			levels[i] = model.Level(n)
		}
		comb := model.FactorCombination{
			TrialID: row[col["trial"]],
			Context: levels[0],
			CoT:     levels[1],
			Format:  levels[2],
			Persona: levels[3],
		}
		if err := comb.Validate(); err != nil {
			return nil, eris.Wrap(err, "taguchi: design csv")
		}
		design = append(design, comb)
	}
	return design, nil
}

// CheckOrthogonal verifies the balance properties of a three-level
// orthogonal array: each level appears the same number of times within
// every factor, and every ordered pair of levels appears the same number
// of times across every pair of factors.
func CheckOrthogonal(design []model.FactorCombination) error {
	n := len(design)
	if n == 0 || n%3 != 0 {
		return eris.Errorf("taguchi: design size %d is not a multiple of 3", n)
	}
	perLevel := n / 3

	for _, f := range model.Factors {
		counts := map[model.Level]int{}
		for _, c := range design {
			counts[c.Level(f)]++
		}
		for lvl := model.Level(1); lvl <= 3; lvl++ {
			if counts[lvl] != perLevel {
				return eris.Errorf("taguchi: factor %s level %d appears %d times, want %d",
					f, lvl, counts[lvl], perLevel)
			}
		}
	}

	if n%9 != 0 {
		return nil // pairwise balance needs n divisible by 9
	}
	perPair := n / 9
	for i, fa := range model.Factors {
		for _, fb := range model.Factors[i+1:] {
			counts := map[[2]model.Level]int{}
			for _, c := range design {
				counts[[2]model.Level{c.Level(fa), c.Level(fb)}]++
			}
			for la := model.Level(1); la <= 3; la++ {
				for lb := model.Level(1); lb <= 3; lb++ {
					if counts[[2]model.Level{la, lb}] != perPair {
						return eris.Errorf("taguchi: factors %s/%s levels (%d,%d) appear %d times, want %d",
							fa, fb, la, lb, counts[[2]model.Level{la, lb}], perPair)
					}
				}
			}
		}
	}
	return nil
}

// WriteDesignCSV exports a design in the trial,A,B,C,D layout consumed
// by LoadDesignCSV.
func WriteDesignCSV(path string, design []model.FactorCombination) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "taguchi: create design csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"trial", "A", "B", "C", "D"}); err != nil {
		return eris.Wrap(err, "taguchi: write header")
	}
	for _, c := range design {
		row := []string{
			c.TrialID,
			strconv.Itoa(int(c.Context)),
			strconv.Itoa(int(c.CoT)),
			strconv.Itoa(int(c.Format)),
			strconv.Itoa(int(c.Persona)),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "taguchi: write trial %s", c.TrialID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "taguchi: flush design csv")
}
