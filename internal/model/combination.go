package model

import "fmt"

// Level is a Taguchi factor level. Valid values are 1, 2, 3.
type Level int

// Valid reports whether the level is one of the three design levels.
func (l Level) Valid() bool {
	return l >= 1 && l <= 3
}

// Factor identifies one of the four prompt design factors.
type Factor string

const (
	FactorContext Factor = "context" // A: context depth
	FactorCoT     Factor = "cot"     // B: chain-of-thought verbosity
	FactorFormat  Factor = "format"  // C: output strictness
	FactorPersona Factor = "persona" // D: persona preamble
)

// Factors lists the design factors in column order (A, B, C, D).
var Factors = []Factor{FactorContext, FactorCoT, FactorFormat, FactorPersona}

// FactorCombination is one row of the design matrix: a trial identifier
// plus the level assigned to each of the four factors. Immutable once
// constructed.
type FactorCombination struct {
	TrialID string `json:"trial_id"`
	Context Level  `json:"context"`
	CoT     Level  `json:"cot"`
	Format  Level  `json:"format"`
	Persona Level  `json:"persona"`
}

// Level returns the level assigned to the given factor.
func (c FactorCombination) Level(f Factor) Level {
	switch f {
	case FactorContext:
		return c.Context
	case FactorCoT:
		return c.CoT
	case FactorFormat:
		return c.Format
	case FactorPersona:
		return c.Persona
	}
	return 0
}

// Validate checks that every factor carries a valid level.
func (c FactorCombination) Validate() error {
	for _, f := range Factors {
		if !c.Level(f).Valid() {
			return fmt.Errorf("trial %s: factor %s has invalid level %d", c.TrialID, f, c.Level(f))
		}
	}
	return nil
}
