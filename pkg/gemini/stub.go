package gemini

import "context"

// StaticClient is a Client that returns a canned response without any
// network traffic. Used by dry-run mode and tests.
type StaticClient struct {
	Response string
	Usage    Usage
	Err      error
	Calls    int
}

// Generate returns the canned response, or Err if set.
func (s *StaticClient) Generate(_ context.Context, _ GenerateRequest) (*GenerateResponse, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return &GenerateResponse{
		Candidates:    []Candidate{{Content: Content{Parts: []Part{{Text: s.Response}}}}},
		UsageMetadata: s.Usage,
	}, nil
}

// DryRunResponse is the simulated assessment StaticClient serves in
// dry-run mode: a plausible fenced-JSON answer in the expected schema.
const DryRunResponse = "```json\n" + `{
  "sample_id": "dry-run",
  "quality": "Medium",
  "confidence": 0.65,
  "predicted_defects": [
    {"type": "short_shot", "confidence": 0.5, "explanation": "low injection pressure in cycle"}
  ],
  "reasoning_steps": ["pressure dropped at transfer", "cycle duration shorter than normal"],
  "recommended_actions": ["increase injection pressure by 5%", "check feed system for blockage"],
  "provenance": {}
}` + "\n```"
