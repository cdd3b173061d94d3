package llmport

import (
	"context"
	"errors"
	"time"

	"github.com/auroraspa/receptionist/pkg/logging"
)

// RetryableError marks an error as transient (rate-limited or a timeout) so
// the retry wrapper knows to retry rather than fall back immediately.
type RetryableError struct {
	Err error
}

func (r *RetryableError) Error() string { return r.Err.Error() }
func (r *RetryableError) Unwrap() error { return r.Err }

// Retryable wraps err so the retrying client treats it as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// RetryingClient wraps a Client with the spec's backoff schedule: base 1s,
// factor 2, max 3 attempts, applied only to errors marked retryable.
type RetryingClient struct {
	inner       Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *logging.Logger
}

// NewRetryingClient wraps inner with a doubling backoff. Non-positive
// arguments select the defaults of 3 attempts and a 1s base delay, which
// waits 1s and then 2s between the attempts.
func NewRetryingClient(inner Client, maxAttempts int, baseDelay time.Duration, logger *logging.Logger) *RetryingClient {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryingClient{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
	}
}

var _ Client = (*RetryingClient)(nil)

func (r *RetryingClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	delay := r.baseDelay
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return LLMResponse{}, err
		}
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Warn("llm completion retrying after transient error",
			"attempt", attempt, "max_attempts", r.maxAttempts, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return LLMResponse{}, lastErr
}
