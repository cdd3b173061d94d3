package messagingport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTelnyxSMSSendsAndParsesMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req telnyxMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if req.To != "+15555550101" {
			t.Fatalf("expected to=+15555550101, got %q", req.To)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(telnyxMessageResponse{Data: struct {
			ID string `json:"id"`
		}{ID: "msg_123"}})
	}))
	defer srv.Close()

	sender := NewTelnyxSMS("test-key", "profile-1", "+15555550100")
	sender.baseURL = srv.URL

	id, err := sender.SendSMS(context.Background(), SMS{To: "+15555550101", Body: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg_123" {
		t.Fatalf("expected message id msg_123, got %q", id)
	}
}

func TestTelnyxSMSSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"detail":"invalid number"}]}`))
	}))
	defer srv.Close()

	sender := NewTelnyxSMS("test-key", "profile-1", "+15555550100")
	sender.baseURL = srv.URL

	if _, err := sender.SendSMS(context.Background(), SMS{To: "bad", Body: "hello"}); err == nil {
		t.Fatalf("expected error for 400 response")
	}
}
