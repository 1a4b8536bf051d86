package model

// Outcome is the result of parsing a raw model response: either a
// validated PredictionRecord or an unparsed marker with the reason the
// extraction failed. The zero value is an unparsed outcome with no
// reason.
type Outcome struct {
	record *PredictionRecord
	reason string
}

// Parsed wraps a validated PredictionRecord.
func Parsed(rec *PredictionRecord) Outcome {
	return Outcome{record: rec}
}

// Unparsed marks a response that could not be decoded or failed schema
// validation. The raw text is preserved separately on the RunRecord.
func Unparsed(reason string) Outcome {
	return Outcome{reason: reason}
}

// OK reports whether the outcome carries a validated record.
func (o Outcome) OK() bool {
	return o.record != nil
}

// Record returns the validated record and whether one is present.
func (o Outcome) Record() (*PredictionRecord, bool) {
	return o.record, o.record != nil
}

// Reason returns why extraction failed; empty for parsed outcomes.
func (o Outcome) Reason() string {
	return o.reason
}
