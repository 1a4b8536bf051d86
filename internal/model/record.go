package model

import "time"

// TokenUsage is the token consumption reported by the provider for a
// single call.
type TokenUsage struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.ResponseTokens += other.ResponseTokens
}

// RunRecord is one line of a per-trial run log: the raw response and
// parse outcome for a single (trial, sample) pair. Records are written
// once and never mutated. ParseOK=false implies Parsed=nil; ParseOK=true
// implies Parsed is a validated PredictionRecord.
type RunRecord struct {
	TrialID     string            `json:"trial_id"`
	PromptID    string            `json:"prompt_id"`
	SampleID    string            `json:"sample_id"`
	Factors     FactorCombination `json:"factors"`
	Prompt      string            `json:"prompt,omitempty"`
	RawResponse string            `json:"raw_response"`
	Parsed      *PredictionRecord `json:"parsed"`
	ParseOK     bool              `json:"parse_ok"`
	ParseError  string            `json:"parse_error,omitempty"`
	// RawRow is a snapshot of the source sample for audit. Sample
	// excludes InternalMeta from its JSON form, so timestamp, mould
	// code and label never reach the log through it.
	RawRow     *Sample      `json:"raw_row_redacted,omitempty"`
	Internal   InternalMeta `json:"internal_metadata"`
	Usage      TokenUsage   `json:"usage"`
	RecordedAt time.Time    `json:"recorded_at"`
}
