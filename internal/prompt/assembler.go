package prompt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// SchemaName identifies the expected response schema in prompt metadata.
const SchemaName = "taguchi_v1"

// Prompt is an assembled prompt ready to send, plus the metadata the
// run log keeps about it.
type Prompt struct {
	Text string
	Meta Meta
}

// Meta describes how a prompt was built.
type Meta struct {
	PromptID string                  `json:"prompt_id"`
	Factors  model.FactorCombination `json:"factors"`
	Schema   string                  `json:"schema"`
}

// contextReadings maps the context-depth level to how many trailing
// series readings are rendered.
var contextReadings = map[model.Level]int{1: 3, 2: 10, 3: 30}

var cotInstruction = map[model.Level]string{
	1: "Do not include chain-of-thought; reasoning_steps must be an empty array.",
	2: "Provide a brief 2-4 step chain-of-thought in reasoning_steps.",
	3: "Provide a detailed 6-12 step chain-of-thought in reasoning_steps.",
}

var formatDirective = map[model.Level]string{
	1: "Respond in free text; a JSON block is welcome but not required.",
	2: "Respond with a short heading followed by a JSON block.",
	3: "Return ONLY valid JSON inside triple backticks. No text outside the JSON.",
}

var personaPreamble = map[model.Level]string{
	1: "You are an assistant assessing injection-molding part quality.",
	2: "You are a process engineer with deep experience in injection-molding cycle tuning.",
	3: "You are a quality expert specialized in injection-molding defect diagnosis.",
}

// Assembler renders deterministic prompts from a factor combination and
// a sample. Timestamp, mould code and the ground-truth label never
// appear in the output.
type Assembler struct {
	schema string
}

// NewAssembler returns an Assembler for the default response schema.
func NewAssembler() *Assembler {
	return &Assembler{schema: SchemaName}
}

// Build renders the prompt for one (combination, sample) pair.
func (a *Assembler) Build(comb model.FactorCombination, s model.Sample, promptID string) Prompt {
	var b strings.Builder

	b.WriteString(personaPreamble[comb.Persona])
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Context: use the last %d cycle readings for this assessment. %s\n",
		contextReadings[comb.Context], cotInstruction[comb.CoT])
	fmt.Fprintf(&b, "Output format: %s\n\n", formatDirective[comb.Format])

	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "sample_id: %s\n", s.ID)
	b.WriteString("Setpoints: ")
	b.WriteString(renderSetpoints(s.Setpoints))
	b.WriteString("\n")
	a.writeContext(&b, comb.Context, s)

	b.WriteString("\nNote: do not use timestamps or internal identifiers for this assessment; ")
	b.WriteString("base the inference only on the Setpoints and Measurements fields, ")
	b.WriteString("and do not mention timestamps or internal IDs in the answer.\n")

	b.WriteString("\nMeasurements:\n")
	for _, name := range model.MeasurementFields {
		fmt.Fprintf(&b, "%s: %s\n", name, s.Measurement(name))
	}

	b.WriteString("\nJSON schema: sample_id, quality (High/Medium/Low), confidence (0..1), ")
	b.WriteString("predicted_defects (array), reasoning_steps (array), recommended_actions (array), provenance.\n")
	if comb.Format == 3 {
		b.WriteString("Return the answer only as valid JSON inside triple backticks.\n")
	} else {
		b.WriteString("Include the JSON block in the answer.\n")
	}

	return Prompt{
		Text: b.String(),
		Meta: Meta{PromptID: promptID, Factors: comb, Schema: a.schema},
	}
}

// writeContext renders the trailing readings for the context level, plus
// summary statistics at the deepest level.
func (a *Assembler) writeContext(b *strings.Builder, level model.Level, s model.Sample) {
	if s.TimeseriesSummary != "" {
		fmt.Fprintf(b, "Timeseries summary: %s\n", s.TimeseriesSummary)
	}
	if len(s.Series) == 0 {
		return
	}

	n := contextReadings[level]
	if n > len(s.Series) {
		n = len(s.Series)
	}
	recent := s.Series[len(s.Series)-n:]

	b.WriteString("Recent readings: ")
	for i, v := range recent {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%.3f", v)
	}
	b.WriteString("\n")

	if level == 3 {
		mean, std := meanStd(recent)
		fmt.Fprintf(b, "Reading stats: mean=%.3f std=%.3f n=%d\n", mean, std, len(recent))
	}
}

// renderSetpoints renders setpoints in a stable key order.
func renderSetpoints(setpoints map[string]string) string {
	if len(setpoints) == 0 {
		return "not provided"
	}
	keys := make([]string, 0, len(setpoints))
	for k := range setpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+setpoints[k])
	}
	return strings.Join(parts, ",")
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(vals)))
	return mean, std
}
