package llmport

import (
	"context"
	"errors"

	"github.com/auroraspa/receptionist/pkg/logging"
)

// FallbackClient tries a primary Client and falls back to a secondary one
// on any error, matching the teacher's LLMFallbackEnabled/LLMFallbackProvider
// configuration knobs.
type FallbackClient struct {
	primary   Client
	secondary Client
	logger    *logging.Logger
}

// NewFallbackClient wires a primary/secondary pair. secondary may be nil, in
// which case this behaves exactly like primary.
func NewFallbackClient(primary, secondary Client, logger *logging.Logger) *FallbackClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, secondary: secondary, logger: logger}
}

var _ Client = (*FallbackClient)(nil)

func (f *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := f.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if f.secondary == nil {
		return LLMResponse{}, err
	}

	f.logger.Warn("llm primary provider failed, falling back", "error", err)
	resp, fallbackErr := f.secondary.Complete(ctx, req)
	if fallbackErr != nil {
		return LLMResponse{}, errors.Join(err, fallbackErr)
	}
	return resp, nil
}
