package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

func pageParams(r *http.Request) (limit, offset int) {
	query := r.URL.Query()
	limit, _ = strconv.Atoi(query.Get("limit"))
	offset, _ = strconv.Atoi(query.Get("offset"))
	return limit, offset
}

func (h handlers) handleRoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(r.PathValue("roomID"))
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "room id is required")
		return
	}
	limit, offset := pageParams(r)
	events, err := h.deps.Messages.RoomMessages(r.Context(), roomID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "ok", events)
}

func (h handlers) handlePrivateHistory(w http.ResponseWriter, r *http.Request) {
	otherID := strings.TrimSpace(r.PathValue("userID"))
	if otherID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	identity := callerIdentity(r)
	limit, offset := pageParams(r)
	events, err := h.deps.Messages.PairMessages(r.Context(), identity.UserID, otherID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "ok", events)
}

func (h handlers) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	messageID := strings.TrimSpace(r.PathValue("messageID"))
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "message id is required")
		return
	}
	if err := h.deps.Messages.MarkRead(r.Context(), messageID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "marked read", nil)
}

func (h handlers) handleMarkPairRead(w http.ResponseWriter, r *http.Request) {
	otherID := strings.TrimSpace(r.PathValue("userID"))
	if otherID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	identity := callerIdentity(r)
	changed, err := h.deps.Messages.MarkPairRead(r.Context(), identity.UserID, otherID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "marked read", map[string]int64{"updated": changed})
}

func (h handlers) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	otherID := strings.TrimSpace(r.PathValue("userID"))
	if otherID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	identity := callerIdentity(r)
	count, err := h.deps.Messages.UnreadCount(r.Context(), identity.UserID, otherID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "ok", map[string]int64{"count": count})
}

type conversationView struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Online        bool   `json:"online"`
	LastMessage   string `json:"lastMessage"`
	LastMessageAt string `json:"lastMessageAt"`
	UnreadCount   int64  `json:"unreadCount"`
}

func (h handlers) handleConversations(w http.ResponseWriter, r *http.Request) {
	identity := callerIdentity(r)
	conversations, err := h.deps.Messages.RecentConversations(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]conversationView, 0, len(conversations))
	for _, c := range conversations {
		views = append(views, conversationView{
			UserID:        c.OtherUserID,
			Username:      c.OtherUsername,
			Online:        c.OtherOnline,
			LastMessage:   c.LastMessage,
			LastMessageAt: c.LastMessageAt.UTC().Format(time.RFC3339),
			UnreadCount:   c.UnreadCount,
		})
	}
	writeData(w, http.StatusOK, "ok", views)
}
