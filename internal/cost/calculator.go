// Package cost estimates API spend from reported token usage.
package cost

// Rates holds per-provider pricing configuration (USD per million
// tokens).
type Rates struct {
	Gemini GeminiRate `yaml:"gemini" mapstructure:"gemini"`
}

// GeminiRate prices generateContent calls.
type GeminiRate struct {
	InputPerMTok  float64 `yaml:"input_per_mtok" mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok" mapstructure:"output_per_mtok"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Gemini computes the cost of one or more generateContent calls from
// prompt and response token counts.
func (c *Calculator) Gemini(promptTokens, responseTokens int) float64 {
	in := (float64(promptTokens) / 1e6) * c.rates.Gemini.InputPerMTok
	out := (float64(responseTokens) / 1e6) * c.rates.Gemini.OutputPerMTok
	return in + out
}
