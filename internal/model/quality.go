package model

import "strings"

// Quality is the three-level part quality assessment returned by the model.
type Quality string

const (
	QualityHigh   Quality = "High"
	QualityMedium Quality = "Medium"
	QualityLow    Quality = "Low"
)

// Qualities lists the enumerated quality levels in rank order.
var Qualities = []Quality{QualityHigh, QualityMedium, QualityLow}

// ParseQuality normalizes a raw quality string. Model responses are not
// consistent about casing ("MEDIUM", "medium", "Medium" all occur).
func ParseQuality(s string) (Quality, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return QualityHigh, true
	case "medium":
		return QualityMedium, true
	case "low":
		return QualityLow, true
	default:
		return "", false
	}
}
