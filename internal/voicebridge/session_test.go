package voicebridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/auroraspa/receptionist/internal/booking"
	"github.com/auroraspa/receptionist/internal/calendarport"
	"github.com/auroraspa/receptionist/internal/llmport"
	"github.com/auroraspa/receptionist/internal/scoring"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
)

type fakeProvider struct {
	sent []any
}

func (f *fakeProvider) Send(_ context.Context, v any) error {
	f.sent = append(f.sent, v)
	return nil
}

type fakeClient struct {
	audio []string
	pongs int
}

func (f *fakeClient) SendAudio(_ context.Context, b64 string) error {
	f.audio = append(f.audio, b64)
	return nil
}
func (f *fakeClient) SendPong(_ context.Context) error {
	f.pongs++
	return nil
}

type fakeVoiceStore struct {
	appended     []store.Message
	meta         store.Metadata
	status       store.ConversationStatus
	scoring      *scoring.Result
	messages     []store.Message
	voiceDetails []store.VoiceDetails
}

func (f *fakeVoiceStore) AppendMessage(_ context.Context, msg store.Message) error {
	f.appended = append(f.appended, msg)
	return nil
}
func (f *fakeVoiceStore) MutateMetadata(_ context.Context, id string, fn func(store.Metadata) store.Metadata) error {
	f.meta = fn(f.meta)
	return nil
}
func (f *fakeVoiceStore) UpdateStatus(_ context.Context, conversationID string, status store.ConversationStatus, completedAt *time.Time) error {
	f.status = status
	return nil
}
func (f *fakeVoiceStore) RecordScoring(_ context.Context, conversationID string, satisfaction int, sentiment, outcome, summary string) error {
	f.scoring = &scoring.Result{SatisfactionScore: satisfaction, Sentiment: sentiment, Outcome: outcome, Summary: summary}
	return nil
}
func (f *fakeVoiceStore) GetMessages(_ context.Context, conversationID string) ([]store.Message, error) {
	return f.messages, nil
}
func (f *fakeVoiceStore) SaveVoiceDetails(_ context.Context, vd store.VoiceDetails) error {
	f.voiceDetails = append(f.voiceDetails, vd)
	return nil
}

func newTestSession(t *testing.T) (*Session, *fakeProvider, *fakeClient, *fakeVoiceStore) {
	t.Helper()
	st := &fakeVoiceStore{}
	clock := spaclock.New("UTC")
	bookingOrch := booking.NewOrchestrator(calendarport.NewFake(), clock)
	scorer := scoring.New(&llmport.Fake{Responses: []llmport.LLMResponse{
		{Text: `{"satisfaction_score": 8, "sentiment": "positive", "outcome": "appointment_scheduled", "summary": "Booked over the phone."}`},
	}}, nil)
	provider := &fakeProvider{}
	client := &fakeClient{}
	session := NewSession("call-1", st, bookingOrch, scorer, clock, nil, provider, client, store.Metadata{})
	return session, provider, client, st
}

func TestStartSendsSessionConfigAndGreeting(t *testing.T) {
	session, provider, _, _ := newTestSession(t)
	if err := session.Start(context.Background(), "Hi, thanks for calling."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 2 {
		t.Fatalf("expected 2 provider commands sent, got %d", len(provider.sent))
	}
}

func TestHandleProviderEventForwardsAudioDelta(t *testing.T) {
	session, _, client, _ := newTestSession(t)
	event := `{"type":"response.audio.delta","delta":"QUJD"}`
	if err := session.HandleProviderEvent(context.Background(), []byte(event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.audio) != 1 || client.audio[0] != "QUJD" {
		t.Fatalf("expected audio forwarded to client, got %v", client.audio)
	}
}

func TestHandleProviderEventCommitsCustomerTranscript(t *testing.T) {
	session, _, _, _ := newTestSession(t)
	event := `{"type":"input_audio_buffer.transcription.completed","transcript":"Do you have any botox openings?"}`
	if err := session.HandleProviderEvent(context.Background(), []byte(event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transcript := session.Transcript()
	if len(transcript) != 1 || transcript[0].Speaker != "customer" || transcript[0].Text != "Do you have any botox openings?" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestHandleProviderEventDedupesRepeatedFingerprint(t *testing.T) {
	session, _, _, _ := newTestSession(t)
	event := `{"type":"response.audio_transcript.done","transcript":"We have a 2pm opening."}`
	session.HandleProviderEvent(context.Background(), []byte(event))
	session.HandleProviderEvent(context.Background(), []byte(event))
	if len(session.Transcript()) != 1 {
		t.Fatalf("expected deduped transcript, got %d entries", len(session.Transcript()))
	}
}

func TestHandleProviderEventSkipsJSONArtifact(t *testing.T) {
	session, _, _, _ := newTestSession(t)
	event, _ := json.Marshal(map[string]any{
		"type":       "response.audio_transcript.done",
		"transcript": `{"success": true, "event_id": "abc"}`,
	})
	session.HandleProviderEvent(context.Background(), event)
	if len(session.Transcript()) != 0 {
		t.Fatalf("expected the JSON tool artifact to be skipped, got %+v", session.Transcript())
	}
}

func TestHandleProviderEventConversationItemLifecycle(t *testing.T) {
	session, _, _, _ := newTestSession(t)

	created := `{"type":"conversation.item.created","item":{"id":"item-1","role":"user","status":"in_progress"}}`
	session.HandleProviderEvent(context.Background(), []byte(created))

	delta := `{"type":"conversation.item.delta","item_id":"item-1","delta":{"content":[{"type":"input_text","text":"Hi there"}]}}`
	session.HandleProviderEvent(context.Background(), []byte(delta))

	completed := `{"type":"conversation.item.completed","item_id":"item-1"}`
	session.HandleProviderEvent(context.Background(), []byte(completed))

	transcript := session.Transcript()
	if len(transcript) != 1 || transcript[0].Text != "Hi there" || transcript[0].Speaker != "customer" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
}

func TestHandleProviderEventFunctionCallDispatchesAndContinues(t *testing.T) {
	session, provider, _, _ := newTestSession(t)
	args, _ := json.Marshal(map[string]string{"date": "2026-07-30", "service_type": "botox"})
	event, _ := json.Marshal(map[string]any{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call-1",
		"name":      "check_availability",
		"arguments": string(args),
	})

	if err := session.HandleProviderEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 2 {
		t.Fatalf("expected function_call_output + response.create sent, got %d", len(provider.sent))
	}
	if len(session.FunctionCalls()) != 1 || session.FunctionCalls()[0] != "check_availability" {
		t.Fatalf("expected check_availability recorded, got %v", session.FunctionCalls())
	}
}

func TestHandleProviderEventBenignErrorNotSurfaced(t *testing.T) {
	session, provider, _, _ := newTestSession(t)
	event := `{"type":"error","error":{"code":"response_cancel_not_active","message":"no active response"}}`
	if err := session.HandleProviderEvent(context.Background(), []byte(event)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 0 {
		t.Fatalf("expected no provider commands sent for a benign error")
	}
}

func TestHandleClientFrameCommitRequestsBufferCommit(t *testing.T) {
	session, provider, _, _ := newTestSession(t)
	if err := session.HandleClientFrame(context.Background(), ClientMessage{Type: ClientFrameCommit}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("expected one provider command sent for commit")
	}
}

func TestHandleClientFrameInterruptSendsCancel(t *testing.T) {
	session, provider, _, _ := newTestSession(t)
	if err := session.HandleClientFrame(context.Background(), ClientMessage{Type: ClientFrameInterrupt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("expected a response.cancel command sent")
	}
}

func TestHandleClientFramePingSendsPong(t *testing.T) {
	session, _, client, _ := newTestSession(t)
	if err := session.HandleClientFrame(context.Background(), ClientMessage{Type: ClientFramePing}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.pongs != 1 {
		t.Fatalf("expected one pong sent, got %d", client.pongs)
	}
}

func TestFinalizeRunsExactlyOnceAndScores(t *testing.T) {
	session, _, _, st := newTestSession(t)
	session.HandleProviderEvent(context.Background(), []byte(`{"type":"input_audio_buffer.transcription.completed","transcript":"Hi, I need a facial."}`))

	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	session.Finalize(context.Background(), "conv-1", now)
	session.Finalize(context.Background(), "conv-1", now) // second call must be a no-op

	if len(st.appended) != 1 {
		t.Fatalf("expected exactly one finalize message appended, got %d", len(st.appended))
	}
	if st.status != store.ConversationCompleted {
		t.Fatalf("expected conversation marked completed, got %s", st.status)
	}
	if st.scoring == nil || st.scoring.SatisfactionScore != 8 {
		t.Fatalf("expected scoring to be recorded, got %+v", st.scoring)
	}
	if len(st.voiceDetails) != 1 {
		t.Fatalf("expected exactly one voice details record saved, got %d", len(st.voiceDetails))
	}
	if len(st.voiceDetails[0].TranscriptSegments) != 1 {
		t.Fatalf("expected the transcript to be persisted in voice details, got %+v", st.voiceDetails[0])
	}
}

func TestDispatchToolRescheduleFallsBackToLastAppointmentAnchorWhenIDOmitted(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	cal := calendarport.NewFake()
	eventID, err := cal.CreateEvent(context.Background(), calendarport.CreateEventInput{
		Start: now, End: now.Add(30 * time.Minute), ServiceType: "botox",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	clock := spaclock.New("UTC")
	bookingOrch := booking.NewOrchestrator(cal, clock)
	scorer := scoring.New(&llmport.Fake{}, nil)
	session := NewSession("call-1", &fakeVoiceStore{}, bookingOrch, scorer, clock, nil, &fakeProvider{}, &fakeClient{},
		store.Metadata{LastAppointment: &store.LastAppointment{CalendarEventID: eventID, Status: "scheduled"}})

	args, _ := json.Marshal(map[string]string{"new_start_time": clock.FormatISO(now.Add(time.Hour)), "service_type": "botox"})
	outcome, updated := session.dispatchTool(context.Background(), session.meta, "reschedule_appointment", args, now)

	if !outcome.Success {
		t.Fatalf("expected reschedule to succeed via the last_appointment anchor: %q", outcome.Error)
	}
	if updated.LastAppointment.Status != string(store.AppointmentRescheduled) {
		t.Fatalf("expected anchor status rescheduled, got %q", updated.LastAppointment.Status)
	}
}

func TestBackfillSlotSelectionRecoversVagueConfirmation(t *testing.T) {
	session, _, _, _ := newTestSession(t)

	base := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	slot := store.PresentedSlot{Index: 1, Start: base, StartTime: "2:00 PM", End: base.Add(30 * time.Minute), EndTime: "2:30 PM"}
	session.meta = store.Metadata{
		PendingSlotOffers: &store.PendingSlotOffers{
			ServiceType: "botox",
			Date:        "2026-07-30",
			OfferedAt:   base.Add(-time.Hour),
			ExpiresAt:   base.Add(3 * time.Hour),
			Slots:       []store.PresentedSlot{slot},
		},
	}
	session.transcript = []store.TranscriptSegment{
		{Speaker: "assistant", Text: "We have a 2:00 PM opening, want it?", Timestamp: base.Add(-time.Minute)},
		{Speaker: "customer", Text: "Yes, 2:00 PM works for me", Timestamp: base},
	}

	updated := session.backfillSlotSelection(session.meta)
	if updated.PendingSlotOffers == nil || updated.PendingSlotOffers.SelectedSlot == nil {
		t.Fatal("expected a slot selection to be backfilled from the transcript")
	}
}
