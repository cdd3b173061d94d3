package messagingport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telnyxDefaultBaseURL = "https://api.telnyx.com/v2"

// TelnyxSMS sends outbound SMS through Telnyx's messaging API.
type TelnyxSMS struct {
	apiKey            string
	messagingProfile  string
	fromNumber        string
	baseURL           string
	httpClient        *http.Client
}

// NewTelnyxSMS constructs a Telnyx-backed SMS sender.
func NewTelnyxSMS(apiKey, messagingProfileID, fromNumber string) *TelnyxSMS {
	return &TelnyxSMS{
		apiKey:           apiKey,
		messagingProfile: messagingProfileID,
		fromNumber:       fromNumber,
		baseURL:          telnyxDefaultBaseURL,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
	}
}

var _ SMSSender = (*TelnyxSMS)(nil)

type telnyxMessageRequest struct {
	From               string `json:"from"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

type telnyxMessageResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (t *TelnyxSMS) SendSMS(ctx context.Context, msg SMS) (string, error) {
	from := msg.From
	if from == "" {
		from = t.fromNumber
	}

	payload := telnyxMessageRequest{
		From:               from,
		To:                 msg.To,
		Text:               msg.Body,
		MessagingProfileID: t.messagingProfile,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("messagingport: failed to encode telnyx payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("messagingport: failed to build telnyx request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messagingport: telnyx request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("messagingport: telnyx returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed telnyxMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("messagingport: failed to decode telnyx response: %w", err)
	}
	return parsed.Data.ID, nil
}
