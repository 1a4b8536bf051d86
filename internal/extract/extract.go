// Package extract turns raw model responses into validated
// PredictionRecords. Extraction never fails with an error: every input
// maps to a Parsed or Unparsed outcome.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/moldworks/moldlab-cli/internal/model"
)

// fencedJSON matches a ```json ... ``` (or bare ```) block holding an
// object.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parser decodes and validates model responses. With Strict set, only
// responses that are a bare JSON object parse; otherwise fenced blocks
// and embedded objects are also extracted.
type Parser struct {
	validate *validator.Validate
	strict   bool
}

// Option configures the parser.
type Option func(*Parser)

// StrictOnly disables the lenient fenced-block and embedded-object
// extraction passes.
func StrictOnly() Option {
	return func(p *Parser) { p.strict = true }
}

// NewParser returns a Parser with lenient extraction enabled.
func NewParser(opts ...Option) *Parser {
	p := &Parser{validate: validator.New()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// payload is the wire shape of a model answer. Pointer fields
// distinguish absent from zero: confidence 0.0 is valid, missing
// confidence is a schema violation.
type payload struct {
	SampleID           *string          `json:"sample_id" validate:"required"`
	Quality            *string          `json:"quality" validate:"required"`
	Confidence         *float64         `json:"confidence" validate:"required,gte=0,lte=1"`
	PredictedDefects   []model.Defect   `json:"predicted_defects"`
	ReasoningSteps     []string         `json:"reasoning_steps"`
	RecommendedActions []string         `json:"recommended_actions"`
	Provenance         model.Provenance `json:"provenance"`
}

// Parse extracts a PredictionRecord from raw response text.
func (p *Parser) Parse(raw string) model.Outcome {
	text, found := p.findObject(raw)
	if !found {
		return model.Unparsed("no JSON object found in response")
	}

	var pl payload
	if err := json.Unmarshal([]byte(text), &pl); err != nil {
		return model.Unparsed("invalid JSON: " + err.Error())
	}

	if err := p.validate.Struct(&pl); err != nil {
		return model.Unparsed("schema: " + validationReason(err))
	}

	quality, ok := model.ParseQuality(*pl.Quality)
	if !ok {
		return model.Unparsed(fmt.Sprintf("schema: quality %q is not one of High/Medium/Low", *pl.Quality))
	}

	rec := &model.PredictionRecord{
		SampleID:           *pl.SampleID,
		Quality:            quality,
		Confidence:         *pl.Confidence,
		PredictedDefects:   pl.PredictedDefects,
		ReasoningSteps:     pl.ReasoningSteps,
		RecommendedActions: pl.RecommendedActions,
		Provenance:         pl.Provenance,
	}
	return model.Parsed(rec)
}

// findObject locates the JSON object to decode: the whole trimmed
// response if it is a bare object, else (in lenient mode) the first
// fenced block, else the first balanced object substring.
func (p *Parser) findObject(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	if p.strict {
		return "", false
	}

	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}

	if obj, ok := balancedObject(raw); ok {
		return obj, true
	}
	return "", false
}

// balancedObject returns the first brace-balanced substring starting at
// the first '{'. Braces inside JSON strings are not special-cased; the
// decoded result is validated afterwards anyway.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// validationReason flattens a validator error into a short reason
// string naming the first offending field.
func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		name := jsonName(fe.Field())
		switch fe.Tag() {
		case "required":
			return "missing required field " + name
		case "gte", "lte":
			return name + " out of range [0,1]"
		}
		return name + " failed " + fe.Tag()
	}
	return err.Error()
}

// jsonName maps payload struct field names to their wire names.
func jsonName(field string) string {
	switch field {
	case "SampleID":
		return "sample_id"
	case "Quality":
		return "quality"
	case "Confidence":
		return "confidence"
	}
	return strings.ToLower(field)
}
