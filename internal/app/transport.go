package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/websocket"

	"github.com/chatdeck/chatdeck/internal/chat"
	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/platform/id"
	"github.com/chatdeck/chatdeck/internal/session"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	maxMessageContentRunes = 2000
)

// Client to server frame types.
const (
	frameTypeConnect     = "connect"
	frameTypeSubscribe   = "subscribe"
	frameTypeSendChat    = "send.chat"
	frameTypeSendPrivate = "send.private"
	frameTypeSendTyping  = "send.typing"
	frameTypePing        = "ping"
	frameTypeDisconnect  = "disconnect"
)

// Server to client frame types.
const (
	frameTypeConnected  = "connected"
	frameTypeSubscribed = "subscribed"
	frameTypeMessage    = "message"
	frameTypeError      = "error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type connectPayload struct {
	Headers map[string]string `json:"headers"`
}

type connectedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type subscribePayload struct {
	Destination string `json:"destination"`
}

type subscribedPayload struct {
	Destination string `json:"destination"`
}

type sendChatPayload struct {
	Content string `json:"content"`
	RoomID  string `json:"roomId,omitempty"`
}

type sendPrivatePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type sendTypingPayload struct {
	ReceiverID string `json:"receiverId,omitempty"`
}

type messageEnvelope struct {
	Destination string     `json:"destination"`
	Event       chat.Event `json:"event"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// wsPeer serializes frame writes onto one connection.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func handleWSConn(conn *websocket.Conn, hub *hub, sessions *sessionFactory) {
	defer func() {
		_ = conn.Close()
	}()

	connectionID, err := id.NewID()
	if err != nil {
		log.Printf("ws: mint connection id: %v", err)
		return
	}

	decoder := json.NewDecoder(conn)
	peer := newWSPeer(json.NewEncoder(conn))
	handler := sessions.newHandler(connectionID)

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}
	defer func() {
		hub.remove(peer)
		handler.Disconnect(ctx)
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case frameTypeConnect:
			if !handleConnectFrame(ctx, handler, peer, frame) {
				return
			}
		case frameTypeSubscribe:
			handleSubscribeFrame(handler, hub, peer, frame)
		case frameTypeSendChat:
			handleSendChatFrame(ctx, handler, peer, frame)
		case frameTypeSendPrivate:
			handleSendPrivateFrame(ctx, handler, peer, frame)
		case frameTypeSendTyping:
			handleSendTypingFrame(handler, frame)
		case frameTypePing:
			if err := handler.Ping(); err != nil {
				log.Printf("ws %s: ping dropped: %v", connectionID, err)
			}
		case frameTypeDisconnect:
			handler.Disconnect(ctx)
			return
		default:
			// Unknown commands are no-ops.
			log.Printf("ws %s: ignoring frame type %q", connectionID, frame.Type)
		}
	}
}

// handleConnectFrame authenticates the connection. A rejected CONNECT
// closes the socket without an error payload; returning false ends the
// read loop.
func handleConnectFrame(ctx context.Context, handler *session.Handler, peer *wsPeer, frame wsFrame) bool {
	var payload connectPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("ws %s: invalid connect payload: %v", handler.ConnectionID(), err)
			return false
		}
	}
	identity, err := handler.Connect(ctx, payload.Headers)
	if err != nil {
		log.Printf("ws %s: connect rejected: %v", handler.ConnectionID(), err)
		return false
	}
	_ = peer.writeFrame(wsFrame{
		Type:      frameTypeConnected,
		RequestID: frame.RequestID,
		Payload: mustJSON(connectedPayload{
			UserID:   identity.UserID,
			Username: identity.Username,
		}),
	})
	return true
}

func handleSubscribeFrame(handler *session.Handler, hub *hub, peer *wsPeer, frame wsFrame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Destination == "" {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "destination is required")
		return
	}
	destination, err := handler.Subscribe(payload.Destination)
	if err != nil {
		log.Printf("ws %s: subscribe to %q dropped: %v", handler.ConnectionID(), payload.Destination, err)
		return
	}
	hub.subscribe(destination, peer)
	_ = peer.writeFrame(wsFrame{
		Type:      frameTypeSubscribed,
		RequestID: frame.RequestID,
		Payload:   mustJSON(subscribedPayload{Destination: destination}),
	})
}

func handleSendChatFrame(ctx context.Context, handler *session.Handler, peer *wsPeer, frame wsFrame) {
	var payload sendChatPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid send payload")
		return
	}
	if !validContent(peer, frame.RequestID, payload.Content) {
		return
	}
	if err := handler.SendChat(ctx, payload.Content, payload.RoomID); err != nil {
		// Unauthenticated sends are swallowed; the sender gets nothing.
		log.Printf("ws %s: chat send dropped: %v", handler.ConnectionID(), err)
	}
}

func handleSendPrivateFrame(ctx context.Context, handler *session.Handler, peer *wsPeer, frame wsFrame) {
	var payload sendPrivatePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "invalid send payload")
		return
	}
	if !validContent(peer, frame.RequestID, payload.Content) {
		return
	}
	err := handler.SendPrivate(ctx, payload.ReceiverID, payload.Content)
	if err == nil {
		return
	}
	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) && domainErr.Code == platformerrors.CodeMissingReceiver {
		_ = writeWSError(peer, frame.RequestID, domainErr.Code.WireCode(), "receiverId is required")
		return
	}
	log.Printf("ws %s: private send dropped: %v", handler.ConnectionID(), err)
}

func handleSendTypingFrame(handler *session.Handler, frame wsFrame) {
	var payload sendTypingPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			log.Printf("ws %s: invalid typing payload: %v", handler.ConnectionID(), err)
			return
		}
	}
	if err := handler.Typing(payload.ReceiverID); err != nil {
		log.Printf("ws %s: typing dropped: %v", handler.ConnectionID(), err)
	}
}

func validContent(peer *wsPeer, requestID, content string) bool {
	if content == "" {
		_ = writeWSError(peer, requestID, "INVALID_ARGUMENT", "content is required")
		return false
	}
	if utf8.RuneCountInString(content) > maxMessageContentRunes {
		_ = writeWSError(peer, requestID, "INVALID_ARGUMENT", "content must be at most 2000 characters")
		return false
	}
	return true
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      frameTypeError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   message,
				Retryable: false,
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
