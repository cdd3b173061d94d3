package voicebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/auroraspa/receptionist/internal/booking"
	"github.com/auroraspa/receptionist/internal/scoring"
	"github.com/auroraspa/receptionist/internal/slotselect"
	"github.com/auroraspa/receptionist/internal/spaclock"
	"github.com/auroraspa/receptionist/internal/store"
	"github.com/auroraspa/receptionist/internal/turnorchestrator"
	"github.com/auroraspa/receptionist/pkg/logging"
)

var voiceTracer = otel.Tracer("receptionist.voicebridge")

var activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "receptionist",
	Subsystem: "voice",
	Name:      "active_sessions",
	Help:      "Voice sessions currently bridging a call to the realtime provider.",
})

func init() {
	prometheus.MustRegister(activeSessions)
}

// RegisterMetrics registers voice bridge metrics with a custom registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(activeSessions)
}

// ProviderSender is the abstract connection to the realtime LLM provider.
// The transport adapter (transport.go) implements this over a
// gorilla/websocket connection; tests substitute a recording fake.
type ProviderSender interface {
	Send(ctx context.Context, v any) error
}

// ClientSender is the abstract connection to the voice client.
type ClientSender interface {
	SendAudio(ctx context.Context, b64 string) error
	SendPong(ctx context.Context) error
}

// conversationStore narrows store.PGStore to what a voice session needs.
type conversationStore interface {
	AppendMessage(ctx context.Context, msg store.Message) error
	MutateMetadata(ctx context.Context, id string, fn func(store.Metadata) store.Metadata) error
	UpdateStatus(ctx context.Context, conversationID string, status store.ConversationStatus, completedAt *time.Time) error
	RecordScoring(ctx context.Context, conversationID string, satisfaction int, sentiment, outcome, summary string) error
	GetMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	SaveVoiceDetails(ctx context.Context, vd store.VoiceDetails) error
}

var _ conversationStore = (*store.PGStore)(nil)

type pendingItem struct {
	speaker string
	text    strings.Builder
}

// Session bridges one call: it owns the reconciliation state machine
// described in spec §4.5 and is transport-agnostic — HandleProviderEvent
// and HandleClientFrame accept already-read frames so they can be driven
// directly in tests.
type Session struct {
	id       string
	store    conversationStore
	booking  *booking.Orchestrator
	scorer   *scoring.Scorer
	clock    *spaclock.Clock
	logger   *logging.Logger
	provider ProviderSender
	client   ClientSender

	mu               sync.Mutex
	meta             store.Metadata
	pendingItems     map[string]*pendingItem
	customerBuffer   strings.Builder
	assistantBuffer  strings.Builder
	lastFingerprint  string
	awaitingResponse bool
	transcript       []store.TranscriptSegment
	functionCalls    []string

	finalizeOnce sync.Once
}

// NewSession constructs a voice bridge session seeded with the
// conversation's current metadata. It panics on a nil store, booking
// orchestrator, or scorer.
func NewSession(id string, st conversationStore, bookingOrch *booking.Orchestrator, scorer *scoring.Scorer, clock *spaclock.Clock, logger *logging.Logger, provider ProviderSender, client ClientSender, initialMeta store.Metadata) *Session {
	if st == nil {
		panic("voicebridge: store cannot be nil")
	}
	if bookingOrch == nil {
		panic("voicebridge: booking orchestrator cannot be nil")
	}
	if scorer == nil {
		panic("voicebridge: scorer cannot be nil")
	}
	if clock == nil {
		clock = spaclock.New("UTC")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Session{
		id:           id,
		store:        st,
		booking:      bookingOrch,
		scorer:       scorer,
		clock:        clock,
		logger:       logger,
		provider:     provider,
		client:       client,
		pendingItems: make(map[string]*pendingItem),
		meta:         initialMeta,
	}
}

// Start sends the session-configuration control message and the scripted
// greeting, per spec §4.5's session lifecycle.
func (s *Session) Start(ctx context.Context, greetingText string) error {
	activeSessions.Inc()
	tools := toolsForRealtimeProvider()
	if err := s.provider.Send(ctx, sessionUpdateCommand(tools)); err != nil {
		return fmt.Errorf("voicebridge: failed to send session config: %w", err)
	}
	if err := s.provider.Send(ctx, greetingCommand("Start the conversation by saying: "+greetingText)); err != nil {
		return fmt.Errorf("voicebridge: failed to send greeting: %w", err)
	}
	return nil
}

func toolsForRealtimeProvider() []map[string]any {
	decls := turnorchestrator.ToolDeclarations()
	out := make([]map[string]any, len(decls))
	for i, d := range decls {
		out[i] = map[string]any{
			"type":        "function",
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters,
		}
	}
	return out
}

// HandleProviderEvent dispatches one realtime-provider event per spec
// §4.5's event-to-action table. Unknown events are logged and ignored.
func (s *Session) HandleProviderEvent(ctx context.Context, raw []byte) error {
	var ev providerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.logger.Warn("voicebridge: malformed provider event", "error", err)
		return nil
	}

	switch {
	case ev.Type == "session.updated":
		s.logger.Info("voicebridge: session updated", "session_id", s.id)

	case ev.Type == "response.audio.delta":
		var delta string
		if err := json.Unmarshal(ev.Delta, &delta); err == nil && delta != "" && s.client != nil {
			return s.client.SendAudio(ctx, delta)
		}

	case strings.Contains(ev.Type, "transcription.delta"):
		s.mu.Lock()
		s.customerBuffer.WriteString(extractDeltaText(ev.Delta))
		s.mu.Unlock()

	case strings.Contains(ev.Type, "transcription.completed"):
		s.mu.Lock()
		text := ev.Transcript
		if text == "" {
			text = s.customerBuffer.String()
		}
		s.customerBuffer.Reset()
		s.mu.Unlock()
		s.appendTranscriptEntry(ctx, "customer", text)

	case ev.Type == "conversation.item.created":
		s.handleItemCreated(ctx, ev.Item)

	case ev.Type == "conversation.item.delta":
		s.handleItemDelta(ev.ItemID, ev.Delta)

	case ev.Type == "conversation.item.completed":
		s.finalizePendingItem(ctx, ev.ItemID)

	case strings.Contains(ev.Type, "audio_transcript.delta"), strings.Contains(ev.Type, "output_text.delta"):
		s.mu.Lock()
		s.assistantBuffer.WriteString(firstNonEmpty(extractDeltaText(ev.Delta), ev.Text))
		s.mu.Unlock()

	case strings.Contains(ev.Type, "audio_transcript.done"), strings.Contains(ev.Type, "output_text.done"), ev.Type == "response.text.done":
		s.mu.Lock()
		text := firstNonEmpty(ev.Transcript, ev.Text, s.assistantBuffer.String())
		s.assistantBuffer.Reset()
		s.mu.Unlock()
		s.appendTranscriptEntry(ctx, "assistant", text)

	case ev.Type == "response.function_call_arguments.done":
		return s.handleFunctionCall(ctx, ev)

	case ev.Type == "error":
		s.handleError(ev.Error)

	default:
		s.logger.Info("voicebridge: ignoring unmapped event", "event_type", ev.Type)
	}
	return nil
}

func extractDeltaText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		Transcript string `json:"transcript"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return firstNonEmpty(asObject.Transcript, asObject.Text)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Session) handleItemCreated(ctx context.Context, item *conversationItem) {
	if item == nil || item.ID == "" {
		return
	}
	speaker := speakerFromRole(item.Role)
	if speaker == "" {
		return
	}

	s.mu.Lock()
	pending, ok := s.pendingItems[item.ID]
	if !ok {
		pending = &pendingItem{speaker: speaker}
		s.pendingItems[item.ID] = pending
	}
	for _, part := range item.Content {
		if t := firstNonEmpty(part.Text, part.Transcript); t != "" {
			pending.text.WriteString(t)
		}
	}
	completed := item.Status == "completed"
	s.mu.Unlock()

	if completed {
		s.finalizePendingItem(ctx, item.ID)
	}
}

func (s *Session) handleItemDelta(itemID string, raw json.RawMessage) {
	if itemID == "" {
		return
	}
	var delta struct {
		Content []contentPart `json:"content"`
	}
	if err := json.Unmarshal(raw, &delta); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pendingItems[itemID]
	if !ok {
		return
	}
	for _, part := range delta.Content {
		if t := firstNonEmpty(part.Text, part.Transcript); t != "" {
			pending.text.WriteString(t)
		}
	}
}

func (s *Session) finalizePendingItem(ctx context.Context, itemID string) {
	if itemID == "" {
		return
	}
	s.mu.Lock()
	pending, ok := s.pendingItems[itemID]
	if ok {
		delete(s.pendingItems, itemID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.appendTranscriptEntry(ctx, pending.speaker, pending.text.String())
}

func speakerFromRole(role string) string {
	switch role {
	case "user":
		return "customer"
	case "assistant":
		return "assistant"
	default:
		return ""
	}
}

// appendTranscriptEntry applies the sanitation rules of spec §4.5: skip
// blank/whitespace-only text, skip JSON tool artifacts, and dedupe against
// the last committed fingerprint.
func (s *Session) appendTranscriptEntry(ctx context.Context, speaker, rawText string) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return
	}
	if looksLikeJSON(text) {
		return
	}

	s.mu.Lock()
	fingerprint := speaker + ":" + text
	if fingerprint == s.lastFingerprint {
		s.mu.Unlock()
		return
	}
	s.lastFingerprint = fingerprint
	s.transcript = append(s.transcript, store.TranscriptSegment{Speaker: speaker, Text: text, Timestamp: s.clock.Now()})
	awaiting := s.awaitingResponse
	if speaker == "customer" && awaiting {
		s.awaitingResponse = false
	}
	s.mu.Unlock()

	if speaker == "customer" && awaiting {
		if err := s.provider.Send(ctx, responseCreateCommand()); err != nil {
			s.logger.Warn("voicebridge: failed to request follow-up response", "error", err)
		}
	}
}

func looksLikeJSON(text string) bool {
	if len(text) == 0 {
		return false
	}
	first := text[0]
	last := text[len(text)-1]
	if first == '{' && last == '}' {
		var v map[string]any
		return json.Unmarshal([]byte(text), &v) == nil
	}
	if first == '[' && last == ']' {
		var v []any
		return json.Unmarshal([]byte(text), &v) == nil
	}
	return false
}

// handleFunctionCall dispatches a completed function call to the Booking
// Orchestrator and replies with a function_call_output item, then asks
// the provider to continue the response, per spec §4.5.
func (s *Session) handleFunctionCall(ctx context.Context, ev providerEvent) error {
	ctx, span := voiceTracer.Start(ctx, "voicebridge.function_call")
	defer span.End()

	s.mu.Lock()
	s.functionCalls = append(s.functionCalls, ev.Name)
	meta := s.meta
	s.mu.Unlock()

	if ev.Name == "book_appointment" {
		meta = s.backfillSlotSelection(meta)
	}

	outcome, updatedMeta := s.dispatchTool(ctx, meta, ev.Name, []byte(ev.Arguments), s.clock.Now())

	s.mu.Lock()
	s.meta = updatedMeta
	s.mu.Unlock()

	payload, _ := json.Marshal(outcome)
	if err := s.provider.Send(ctx, functionCallOutputCommand(ev.CallID, string(payload))); err != nil {
		return fmt.Errorf("voicebridge: failed to send function call output: %w", err)
	}
	return s.provider.Send(ctx, responseCreateCommand())
}

func (s *Session) dispatchTool(ctx context.Context, meta store.Metadata, name string, args []byte, now time.Time) (booking.Outcome, store.Metadata) {
	switch name {
	case "check_availability":
		var a struct {
			Date        string `json:"date"`
			ServiceType string `json:"service_type"`
			Limit       int    `json:"limit"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		return s.booking.CheckAvailability(ctx, meta, "voice_"+name, booking.CheckAvailabilityArgs{Date: a.Date, ServiceType: a.ServiceType, Limit: a.Limit}, now)

	case "book_appointment":
		var a struct {
			CustomerName  string `json:"customer_name"`
			CustomerPhone string `json:"customer_phone"`
			CustomerEmail string `json:"customer_email"`
			StartTime     string `json:"start_time"`
			ServiceType   string `json:"service_type"`
			Provider      string `json:"provider"`
			Notes         string `json:"notes"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		return s.booking.BookAppointment(ctx, meta, booking.BookAppointmentArgs{
			CustomerName: a.CustomerName, CustomerPhone: a.CustomerPhone, CustomerEmail: a.CustomerEmail,
			StartTime: a.StartTime, ServiceType: a.ServiceType, Provider: a.Provider, Notes: a.Notes,
		}, now)

	case "reschedule_appointment":
		var a struct {
			AppointmentID string `json:"appointment_id"`
			NewStartTime  string `json:"new_start_time"`
			ServiceType   string `json:"service_type"`
			Provider      string `json:"provider"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		return s.booking.RescheduleAppointment(ctx, meta, booking.RescheduleAppointmentArgs{
			AppointmentID: a.AppointmentID, NewStartTime: a.NewStartTime, ServiceType: a.ServiceType, Provider: a.Provider,
		}, now)

	case "cancel_appointment":
		var a struct {
			AppointmentID      string `json:"appointment_id"`
			CancellationReason string `json:"cancellation_reason"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return booking.Outcome{Success: false, Error: err.Error()}, meta
		}
		return s.booking.CancelAppointment(ctx, meta, booking.CancelAppointmentArgs{AppointmentID: a.AppointmentID, CancellationReason: a.CancellationReason})

	default:
		return booking.Outcome{Success: false, Error: fmt.Sprintf("unknown tool %q", name)}, meta
	}
}

// backfillSlotSelection implements spec §4.5's "vague confirmation"
// recovery: if no selection is captured yet, replay capture_selection
// against recent customer transcript entries, newest first, until one
// succeeds.
func (s *Session) backfillSlotSelection(meta store.Metadata) store.Metadata {
	if meta.PendingSlotOffers == nil || meta.PendingSlotOffers.SelectedSlot != nil {
		return meta
	}

	s.mu.Lock()
	entries := make([]store.TranscriptSegment, len(s.transcript))
	copy(entries, s.transcript)
	s.mu.Unlock()

	const maxLookback = 5
	scanned := 0
	for i := len(entries) - 1; i >= 0 && scanned < maxLookback; i-- {
		if entries[i].Speaker != "customer" {
			continue
		}
		scanned++
		if updated, ok := slotselect.CaptureSelection(meta, "", entries[i].Text, entries[i].Timestamp); ok {
			return updated
		}
	}
	return meta
}

func (s *Session) handleError(errObj *providerErrorObj) {
	if errObj == nil {
		return
	}
	if benignErrorCodes[errObj.Code] {
		s.logger.Info("voicebridge: benign provider error", "code", errObj.Code, "message", errObj.Message)
		return
	}
	s.logger.Error("voicebridge: provider error", "code", errObj.Code, "message", errObj.Message)
}

// HandleClientFrame implements the commit/interrupt protocol of spec §4.5.
func (s *Session) HandleClientFrame(ctx context.Context, frame ClientMessage) error {
	switch frame.Type {
	case ClientFrameAudio:
		var b64 string
		if err := json.Unmarshal(frame.Data, &b64); err != nil {
			return nil
		}
		return s.provider.Send(ctx, inputAudioAppendCommand(b64))

	case ClientFrameCommit:
		s.mu.Lock()
		s.awaitingResponse = true
		s.mu.Unlock()
		return s.provider.Send(ctx, inputAudioCommitCommand())

	case ClientFrameInterrupt:
		return s.provider.Send(ctx, responseCancelCommand())

	case ClientFrameEndSession:
		return nil

	case ClientFramePing:
		if s.client != nil {
			return s.client.SendPong(ctx)
		}
		return nil

	default:
		s.logger.Info("voicebridge: ignoring unknown client frame", "frame_type", frame.Type)
		return nil
	}
}

// Finalize runs the finalization routine of spec §4.5 exactly once, even
// under concurrent disconnect paths.
func (s *Session) Finalize(ctx context.Context, conversationID string, now time.Time) {
	s.finalizeOnce.Do(func() {
		activeSessions.Dec()
		s.doFinalize(ctx, conversationID, now)
	})
}

func (s *Session) doFinalize(ctx context.Context, conversationID string, now time.Time) {
	s.mu.Lock()
	for itemID := range s.pendingItems {
		pending := s.pendingItems[itemID]
		text := strings.TrimSpace(pending.text.String())
		if text != "" {
			s.transcript = append(s.transcript, store.TranscriptSegment{Speaker: pending.speaker, Text: text, Timestamp: now})
		}
	}
	s.pendingItems = make(map[string]*pendingItem)

	if text := strings.TrimSpace(s.customerBuffer.String()); text != "" {
		s.transcript = append(s.transcript, store.TranscriptSegment{Speaker: "customer", Text: text, Timestamp: now})
	}
	if text := strings.TrimSpace(s.assistantBuffer.String()); text != "" {
		s.transcript = append(s.transcript, store.TranscriptSegment{Speaker: "assistant", Text: text, Timestamp: now})
	}
	s.customerBuffer.Reset()
	s.assistantBuffer.Reset()

	transcript := make([]store.TranscriptSegment, len(s.transcript))
	copy(transcript, s.transcript)
	functionCalls := make([]string, len(s.functionCalls))
	copy(functionCalls, s.functionCalls)
	meta := s.meta
	s.mu.Unlock()

	summary := "Voice call with no spoken content."
	if len(transcript) > 0 {
		first := transcript[0].Text
		if len(first) > 100 {
			first = first[:100]
		}
		summary = fmt.Sprintf("Voice call starting with: %s...", first)
	}

	messageID := spaclock.NewID()
	if err := s.store.AppendMessage(ctx, store.Message{
		ID:             messageID,
		ConversationID: conversationID,
		Direction:      store.DirectionInbound,
		Content:        summary,
		SentAt:         now,
		Processed:      true,
	}); err != nil {
		s.logger.Error("voicebridge: failed to append finalize message", "error", err)
	}

	if err := s.store.SaveVoiceDetails(ctx, store.VoiceDetails{
		MessageID:          messageID,
		TranscriptSegments: transcript,
		FunctionCalls:      functionCalls,
	}); err != nil {
		s.logger.Error("voicebridge: failed to save voice details", "error", err)
	}

	if err := s.store.MutateMetadata(ctx, conversationID, func(store.Metadata) store.Metadata { return meta }); err != nil {
		s.logger.Error("voicebridge: failed to persist metadata on finalize", "error", err)
	}

	if err := s.store.UpdateStatus(ctx, conversationID, store.ConversationCompleted, &now); err != nil {
		s.logger.Error("voicebridge: failed to mark conversation completed", "error", err)
	}

	history, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("voicebridge: failed to load history for scoring", "error", err)
		history = nil
	}
	result := s.scorer.Score(ctx, store.ChannelVoice, history)
	if err := s.store.RecordScoring(ctx, conversationID, result.SatisfactionScore, result.Sentiment, result.Outcome, result.Summary); err != nil {
		s.logger.Error("voicebridge: failed to record scoring", "error", err)
	}
}

// Transcript returns a copy of the session's accumulated transcript.
func (s *Session) Transcript() []store.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.TranscriptSegment, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// FunctionCalls returns a copy of the function call names observed this
// session.
func (s *Session) FunctionCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.functionCalls))
	copy(out, s.functionCalls)
	return out
}
