package llmport

import (
	"context"
	"errors"
	"testing"
)

func TestFallbackClientUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &Fake{Responses: []LLMResponse{{Text: "primary"}}}
	secondary := &Fake{Responses: []LLMResponse{{Text: "secondary"}}}

	client := NewFallbackClient(primary, secondary, nil)
	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "primary" {
		t.Fatalf("expected primary response, got %q", resp.Text)
	}
	if len(secondary.Calls) != 0 {
		t.Fatalf("expected secondary not to be called")
	}
}

func TestFallbackClientFallsBackOnPrimaryError(t *testing.T) {
	primary := &Fake{Errors: []error{errors.New("boom")}}
	secondary := &Fake{Responses: []LLMResponse{{Text: "secondary"}}}

	client := NewFallbackClient(primary, secondary, nil)
	resp, err := client.Complete(context.Background(), LLMRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "secondary" {
		t.Fatalf("expected secondary response, got %q", resp.Text)
	}
}

func TestFallbackClientReturnsJoinedErrorWhenBothFail(t *testing.T) {
	primary := &Fake{Errors: []error{errors.New("primary failed")}}
	secondary := &Fake{Errors: []error{errors.New("secondary failed")}}

	client := NewFallbackClient(primary, secondary, nil)
	_, err := client.Complete(context.Background(), LLMRequest{})
	if err == nil {
		t.Fatalf("expected error when both providers fail")
	}
}
