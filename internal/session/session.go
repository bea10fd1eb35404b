// Package session drives the per-connection lifecycle: a connection is
// born unauthenticated, may authenticate exactly through CONNECT, and
// ends closed. Identity is bound once in the registry and every later
// operation reads it from there, never from client payloads.
package session

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/chatdeck/chatdeck/internal/chat"
	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/platform/timeouts"
	"github.com/chatdeck/chatdeck/internal/presence"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/router"
	"github.com/chatdeck/chatdeck/internal/token"
)

// ErrAuthRejected indicates CONNECT carried missing or invalid
// credentials. The transport closes the connection without a payload.
var ErrAuthRejected = platformerrors.New(platformerrors.CodeAuthRejected, "authentication rejected")

// ErrNotAuthenticated indicates a command arrived before a successful
// CONNECT. The transport swallows the command; the sender gets no
// error frame.
var ErrNotAuthenticated = platformerrors.New(platformerrors.CodeNotAuthenticated, "connection not authenticated")

// ErrClosed indicates the session already ended.
var ErrClosed = platformerrors.New(platformerrors.CodeSessionClosed, "session closed")

// AuthorizationHeader carries the bearer token on CONNECT.
const AuthorizationHeader = "Authorization"

// TokenVerifier checks a bearer token and resolves the identity it
// names. Satisfied by the token service.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (registry.Identity, error)
}

// Handler owns one connection's session state. Safe for concurrent use;
// the transport may run reads and shutdown on different goroutines.
type Handler struct {
	connectionID string
	registry     *registry.Registry
	tokens       TokenVerifier
	router       *router.Router
	presence     *presence.Broadcaster

	mu     sync.Mutex
	closed bool
}

// NewHandler binds a session handler to a transport connection id.
func NewHandler(connectionID string, reg *registry.Registry, tokens TokenVerifier, rt *router.Router, pres *presence.Broadcaster) *Handler {
	return &Handler{
		connectionID: connectionID,
		registry:     reg,
		tokens:       tokens,
		router:       rt,
		presence:     pres,
	}
}

// ConnectionID returns the transport connection id this session owns.
func (h *Handler) ConnectionID() string {
	return h.connectionID
}

// Connect authenticates the connection from the Authorization header.
// A repeated CONNECT re-verifies and overwrites the bound identity. On
// rejection the caller must close the connection; no identity is bound
// and no announcement goes out.
func (h *Handler) Connect(ctx context.Context, headers map[string]string) (registry.Identity, error) {
	if h.isClosed() {
		return registry.Identity{}, ErrClosed
	}
	raw, ok := token.BearerToken(headers[AuthorizationHeader])
	if !ok {
		return registry.Identity{}, ErrAuthRejected
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.TokenVerify)
	defer cancel()
	identity, err := h.tokens.Verify(ctx, raw)
	if err != nil {
		log.Printf("session %s: connect rejected: %v", h.connectionID, err)
		return registry.Identity{}, platformerrors.Wrap(platformerrors.CodeAuthRejected, "authentication rejected", err)
	}
	previous, hadPrevious := h.registry.Lookup(h.connectionID)
	wasOnline := h.registry.IsOnline(identity.UserID)
	h.registry.Authenticate(h.connectionID, identity)
	if !wasOnline {
		h.presence.PublishJoin(ctx, identity)
	}
	// A re-auth that rebinds the connection to a different user may
	// take the previous user's last connection away.
	if hadPrevious && previous.Identity.UserID != identity.UserID {
		h.presence.PublishLeave(ctx, previous.Identity)
	}
	return identity, nil
}

// Identity returns the bound identity, or ErrNotAuthenticated before a
// successful CONNECT.
func (h *Handler) Identity() (registry.Identity, error) {
	record, ok := h.registry.Lookup(h.connectionID)
	if !ok {
		return registry.Identity{}, ErrNotAuthenticated
	}
	return record.Identity, nil
}

// Subscribe records interest in a destination. The user-queue shorthand
// "/user/queue/private" canonicalizes to the caller's own queue so a
// client never subscribes to another user's.
func (h *Handler) Subscribe(destination string) (string, error) {
	identity, err := h.Identity()
	if err != nil {
		return "", err
	}
	destination = canonicalDestination(destination, identity.UserID)
	if !h.registry.AddSubscription(h.connectionID, destination) {
		return "", ErrNotAuthenticated
	}
	return destination, nil
}

// SendChat broadcasts a public message under the bound identity.
func (h *Handler) SendChat(ctx context.Context, content, roomID string) error {
	identity, err := h.Identity()
	if err != nil {
		return err
	}
	h.router.BroadcastChat(ctx, identity, content, roomID)
	return nil
}

// SendPrivate delivers a private message under the bound identity.
func (h *Handler) SendPrivate(ctx context.Context, receiverID, content string) error {
	identity, err := h.Identity()
	if err != nil {
		return err
	}
	return h.router.SendPrivate(ctx, identity, receiverID, content)
}

// Typing publishes a typing indicator under the bound identity.
func (h *Handler) Typing(receiverID string) error {
	identity, err := h.Identity()
	if err != nil {
		return err
	}
	h.router.TypingNotification(identity, receiverID)
	return nil
}

// Ping answers a liveness probe.
func (h *Handler) Ping() error {
	if _, err := h.Identity(); err != nil {
		return err
	}
	h.router.Ping()
	return nil
}

// Disconnect ends the session. Idempotent: the second and later calls
// do nothing. A LEAVE goes out only when this was the user's last live
// connection.
func (h *Handler) Disconnect(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	record, ok := h.registry.Remove(h.connectionID)
	if !ok {
		return
	}
	h.presence.PublishLeave(ctx, record.Identity)
}

func (h *Handler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// canonicalDestination rewrites the user-queue shorthand to the
// caller's fully qualified queue. Other destinations pass through.
func canonicalDestination(destination, userID string) string {
	if destination == "/user/queue/private" {
		return chat.PrivateQueue(userID)
	}
	if strings.HasPrefix(destination, "/user/") && strings.HasSuffix(destination, "/queue/private") {
		// Clients may only subscribe to their own queue.
		return chat.PrivateQueue(userID)
	}
	return destination
}
