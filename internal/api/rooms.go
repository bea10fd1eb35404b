package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/chatdeck/chatdeck/internal/storage"
)

type roomView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty"`
	Private     bool   `json:"private"`
	CreatedAt   string `json:"createdAt"`
}

func roomViewOf(room storage.Room) roomView {
	return roomView{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatedBy:   room.CreatedBy,
		Private:     room.Private,
		CreatedAt:   room.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h handlers) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.deps.Rooms.PublicRooms(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]roomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, roomViewOf(room))
	}
	writeData(w, http.StatusOK, "ok", views)
}

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private,omitempty"`
}

func (h handlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "room name is required")
		return
	}
	identity := callerIdentity(r)
	room := storage.Room{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   identity.UserID,
		Private:     req.Private,
	}
	created, err := h.deps.Rooms.CreateRoom(r.Context(), room)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "room created", roomViewOf(created))
}
