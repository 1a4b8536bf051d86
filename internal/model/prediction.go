package model

// Defect is a single predicted defect with the model's rationale.
type Defect struct {
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// Provenance records which model produced a prediction and under which
// prompt. Fields left empty by the model are filled in by the runner.
type Provenance struct {
	Model        string `json:"model,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
	PromptID     string `json:"prompt_id,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// PredictionRecord is the structured quality assessment extracted from a
// model response. A PredictionRecord only exists in validated form: the
// parser guarantees SampleID is present, Quality is one of the three
// enumerated levels and Confidence lies in [0,1].
type PredictionRecord struct {
	SampleID           string     `json:"sample_id"`
	Quality            Quality    `json:"quality"`
	Confidence         float64    `json:"confidence"`
	PredictedDefects   []Defect   `json:"predicted_defects"`
	ReasoningSteps     []string   `json:"reasoning_steps"`
	RecommendedActions []string   `json:"recommended_actions"`
	Provenance         Provenance `json:"provenance"`
}
