package experiment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldworks/moldlab-cli/internal/resilience"
	"github.com/moldworks/moldlab-cli/pkg/gemini"
)

// sequenceClient returns the queued errors in order, then a fixed
// success response.
type sequenceClient struct {
	errs  []error
	calls int
}

func (c *sequenceClient) Generate(_ context.Context, _ gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	return &gemini.GenerateResponse{
		Candidates:    []gemini.Candidate{{Content: gemini.Content{Parts: []gemini.Part{{Text: "ok"}}}}},
		UsageMetadata: gemini.Usage{PromptTokenCount: 10, CandidatesTokenCount: 5},
	}, nil
}

func testPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestSend_RateLimitRetriesThenSucceeds(t *testing.T) {
	c := &sequenceClient{errs: []error{
		&gemini.RateLimitError{Body: "quota"},
		&gemini.RateLimitError{Body: "quota"},
	}}
	var delays []time.Duration
	pol := testPolicy()
	pol.OnRetry = func(_ int, delay time.Duration, _ error) {
		delays = append(delays, delay)
	}

	resp, err := Send(context.Background(), c, pol, 2, gemini.TextRequest("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, c.calls)
	// Two backoff sleeps between the three attempts, doubling.
	require.Len(t, delays, 2)
	assert.Equal(t, time.Millisecond, delays[0])
	assert.Equal(t, 2*time.Millisecond, delays[1])
}

func TestSend_ClientErrorNeverRetries(t *testing.T) {
	c := &sequenceClient{errs: []error{
		&gemini.ProviderError{Status: 400, Body: "bad request"},
	}}
	_, err := Send(context.Background(), c, testPolicy(), 2, gemini.TextRequest("hi", nil))
	assert.Error(t, err)
	assert.Equal(t, 1, c.calls)
}

func TestSend_ServerErrorRetriesUnderLowerCeiling(t *testing.T) {
	// 503 is transient but counts against the lower ceiling, so with
	// timeoutMax 2 only one retry happens.
	c := &sequenceClient{errs: []error{
		&gemini.ProviderError{Status: 503, Body: "overloaded"},
	}}
	resp, err := Send(context.Background(), c, testPolicy(), 2, gemini.TextRequest("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 2, c.calls)

	c = &sequenceClient{errs: []error{
		&gemini.ProviderError{Status: 502, Body: "bad gateway"},
		&gemini.ProviderError{Status: 502, Body: "bad gateway"},
		&gemini.ProviderError{Status: 502, Body: "bad gateway"},
	}}
	_, err = Send(context.Background(), c, testPolicy(), 2, gemini.TextRequest("hi", nil))
	assert.Error(t, err)
	assert.Equal(t, 2, c.calls)
}

func TestSend_TimeoutsStopAtLowerCeiling(t *testing.T) {
	// Four timeouts queued, but timeoutMax 2 allows only one retry.
	c := &sequenceClient{errs: []error{
		context.DeadlineExceeded,
		context.DeadlineExceeded,
		context.DeadlineExceeded,
		context.DeadlineExceeded,
	}}
	_, err := Send(context.Background(), c, testPolicy(), 2, gemini.TextRequest("hi", nil))
	assert.Error(t, err)
	assert.Equal(t, 2, c.calls)
}

func TestSend_RateLimitsUseFullCeiling(t *testing.T) {
	// Rate limits keep retrying up to MaxAttempts even past timeoutMax.
	c := &sequenceClient{errs: []error{
		&gemini.RateLimitError{Body: "quota"},
		&gemini.RateLimitError{Body: "quota"},
		&gemini.RateLimitError{Body: "quota"},
	}}
	resp, err := Send(context.Background(), c, testPolicy(), 2, gemini.TextRequest("hi", nil))
	require.NoError(t, err)
	assert.Equal(t, 4, c.calls)
	assert.Equal(t, 10, resp.UsageMetadata.PromptTokenCount)
}
