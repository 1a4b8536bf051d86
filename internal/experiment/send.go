package experiment

import (
	"context"
	"errors"

	"github.com/moldworks/moldlab-cli/internal/resilience"
	"github.com/moldworks/moldlab-cli/pkg/gemini"
)

// Send issues one generate call under the retry policy. Rate limits
// retry with the full backoff ceiling; transient server statuses (5xx),
// timeouts and other transient network failures retry under the lower
// timeoutMax ceiling; client-side provider errors surface immediately.
func Send(ctx context.Context, c gemini.Client, pol resilience.Policy, timeoutMax int, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	pol.ShouldRetry = retryClassifier(timeoutMax)
	return resilience.DoVal(ctx, pol, func(ctx context.Context) (*gemini.GenerateResponse, error) {
		return c.Generate(ctx, req)
	})
}

// retryClassifier builds the pure per-call retry decision. It closes
// over a transient-failure counter so transport and server failures
// stop retrying before rate limits do.
func retryClassifier(timeoutMax int) func(err error, attempt int) bool {
	var transient int
	return func(err error, _ int) bool {
		var rl *gemini.RateLimitError
		if errors.As(err, &rl) {
			return true
		}

		var pe *gemini.ProviderError
		if errors.As(err, &pe) {
			if !resilience.IsTransientHTTPStatus(pe.Status) {
				return false
			}
			transient++
			return transient < timeoutMax
		}

		if !resilience.IsTransient(err) {
			return false
		}
		transient++
		return transient < timeoutMax
	}
}
