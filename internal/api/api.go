// Package api exposes the REST surface for accounts, message history,
// rooms, and presence snapshots. Responses share one envelope:
// {"success": bool, "message": string, "data": ...}.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/storage"
)

// OnlineSnapshot reads the distinct authenticated users. Satisfied by
// the presence broadcaster.
type OnlineSnapshot interface {
	OnlineUsers() []registry.Identity
}

// Deps carries the collaborators the REST surface needs.
type Deps struct {
	Tokens   TokenService
	Users    storage.UserStore
	Messages storage.MessageStore
	Rooms    storage.RoomStore
	Presence OnlineSnapshot
}

// NewHandler builds the REST routes under /api/.
func NewHandler(deps Deps) http.Handler {
	h := handlers{deps: deps}
	auth := h.requireAuth

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("GET /api/auth/me", auth(h.handleMe))

	mux.HandleFunc("GET /api/messages/room/{roomID}", auth(h.handleRoomHistory))
	mux.HandleFunc("GET /api/messages/private/{userID}", auth(h.handlePrivateHistory))
	mux.HandleFunc("POST /api/messages/{messageID}/read", auth(h.handleMarkRead))
	mux.HandleFunc("POST /api/messages/read-all/{userID}", auth(h.handleMarkPairRead))
	mux.HandleFunc("GET /api/messages/unread/{userID}", auth(h.handleUnreadCount))
	mux.HandleFunc("GET /api/conversations", auth(h.handleConversations))

	mux.HandleFunc("GET /api/users/online", auth(h.handleOnlineUsers))
	mux.HandleFunc("GET /api/users/search", auth(h.handleSearchUsers))
	mux.HandleFunc("PUT /api/users/profile", auth(h.handleUpdateProfile))

	mux.HandleFunc("GET /api/rooms", auth(h.handleListRooms))
	mux.HandleFunc("POST /api/rooms", auth(h.handleCreateRoom))

	return mux
}

type handlers struct {
	deps Deps
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// writeDomainError maps a domain error onto an HTTP status. Unknown
// errors become a 500 with a generic message so internals stay inside.
func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *platformerrors.Error
	if !errors.As(err, &domainErr) {
		log.Printf("api: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch domainErr.Code.WireCode() {
	case "UNAUTHENTICATED":
		writeError(w, http.StatusUnauthorized, domainErr.Message)
	case "FORBIDDEN":
		writeError(w, http.StatusForbidden, domainErr.Message)
	case "NOT_FOUND":
		writeError(w, http.StatusNotFound, domainErr.Message)
	case "ALREADY_EXISTS":
		writeError(w, http.StatusConflict, domainErr.Message)
	case "INVALID_ARGUMENT":
		writeError(w, http.StatusBadRequest, domainErr.Message)
	case "UNAVAILABLE":
		writeError(w, http.StatusServiceUnavailable, domainErr.Message)
	default:
		log.Printf("api: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
