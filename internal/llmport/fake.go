package llmport

import "context"

// Fake is a scriptable Client for tests: each call to Complete pops the
// next response (or error) off a queue.
type Fake struct {
	Responses []LLMResponse
	Errors    []error
	Calls     []LLMRequest
	callCount int
}

var _ Client = (*Fake)(nil)

func (f *Fake) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	f.Calls = append(f.Calls, req)
	idx := f.callCount
	f.callCount++

	var err error
	if idx < len(f.Errors) {
		err = f.Errors[idx]
	}
	if err != nil {
		return LLMResponse{}, err
	}

	if idx < len(f.Responses) {
		return f.Responses[idx], nil
	}
	if len(f.Responses) > 0 {
		return f.Responses[len(f.Responses)-1], nil
	}
	return LLMResponse{}, nil
}
