package voicebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/auroraspa/receptionist/pkg/logging"
)

// clientUpgrader upgrades the inbound voice webhook request to a
// WebSocket. Origin checking is left to the caller's reverse proxy, like
// the teacher's webchat handler.
var clientUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClientConn implements ClientSender over a gorilla/websocket connection
// to the voice caller.
type wsClientConn struct {
	conn *websocket.Conn
}

// UpgradeClient upgrades an inbound HTTP request to the voice client
// WebSocket.
func UpgradeClient(w http.ResponseWriter, r *http.Request) (*wsClientConn, error) {
	conn, err := clientUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("voicebridge: failed to upgrade client connection: %w", err)
	}
	return &wsClientConn{conn: conn}, nil
}

func (c *wsClientConn) SendAudio(_ context.Context, b64 string) error {
	data, _ := json.Marshal(b64)
	return c.conn.WriteJSON(ServerMessage{Type: "audio", Data: data})
}

func (c *wsClientConn) SendPong(_ context.Context) error {
	return c.conn.WriteJSON(ServerMessage{Type: "pong"})
}

// ReadFrame blocks for the next client frame.
func (c *wsClientConn) ReadFrame() (ClientMessage, error) {
	var msg ClientMessage
	err := c.conn.ReadJSON(&msg)
	return msg, err
}

func (c *wsClientConn) Close() error {
	return c.conn.Close()
}

// wsProviderConn implements ProviderSender over a gorilla/websocket
// connection to the realtime LLM provider.
type wsProviderConn struct {
	conn *websocket.Conn
}

// DialProvider opens a connection to the realtime provider endpoint.
func DialProvider(ctx context.Context, url string, header http.Header) (*wsProviderConn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("voicebridge: failed to dial realtime provider: %w", err)
	}
	return &wsProviderConn{conn: conn}, nil
}

func (p *wsProviderConn) Send(_ context.Context, v any) error {
	return p.conn.WriteJSON(v)
}

// ReadEvent blocks for the next raw provider event.
func (p *wsProviderConn) ReadEvent() ([]byte, error) {
	_, data, err := p.conn.ReadMessage()
	return data, err
}

func (p *wsProviderConn) Close() error {
	return p.conn.Close()
}

// Pump runs the bidirectional relay loop for one call: it reads client
// frames and provider events concurrently until either side closes or ctx
// is cancelled, then finalizes exactly once. Intended to be invoked from
// the voice webhook handler in internal/httpapi.
func Pump(ctx context.Context, session *Session, conversationID string, client *wsClientConn, provider *wsProviderConn, logger *logging.Logger, now func() time.Time) {
	if logger == nil {
		logger = logging.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			raw, err := provider.ReadEvent()
			if err != nil {
				return
			}
			if err := session.HandleProviderEvent(ctx, raw); err != nil {
				logger.Warn("voicebridge: provider event handling failed", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			session.Finalize(ctx, conversationID, now())
			return
		case <-done:
			session.Finalize(ctx, conversationID, now())
			return
		default:
		}

		frame, err := client.ReadFrame()
		if err != nil {
			session.Finalize(ctx, conversationID, now())
			return
		}
		if err := session.HandleClientFrame(ctx, frame); err != nil {
			logger.Warn("voicebridge: client frame handling failed", "error", err)
		}
		if frame.Type == ClientFrameEndSession {
			session.Finalize(ctx, conversationID, now())
			return
		}
	}
}
