package llmport

import (
	"context"
	"errors"
	"testing"
)

type scriptedClient struct {
	errs  []error
	resps []LLMResponse
	calls int
}

func (s *scriptedClient) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return LLMResponse{}, s.errs[idx]
	}
	if idx < len(s.resps) {
		return s.resps[idx], nil
	}
	return LLMResponse{}, nil
}

func TestRetryingClientRetriesTransientErrors(t *testing.T) {
	inner := &scriptedClient{
		errs: []error{Retryable(errors.New("rate limited")), nil},
		resps: []LLMResponse{{}, {Text: "ok"}},
	}
	client := NewRetryingClient(inner, 3, 0, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("expected success after retry, got error: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("expected resp text 'ok', got %q", resp.Text)
	}
	if inner.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", inner.calls)
	}
}

func TestRetryingClientDoesNotRetryNonTransientErrors(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("invalid request")}}
	client := NewRetryingClient(inner, 3, 0, nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 call for non-retryable error, got %d", inner.calls)
	}
}

func TestRetryingClientExhaustsAttempts(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		Retryable(errors.New("1")), Retryable(errors.New("2")), Retryable(errors.New("3")),
	}}
	client := NewRetryingClient(inner, 3, 0, nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}
