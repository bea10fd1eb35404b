package api

import (
	"net/http"
	"strings"
)

type onlineUserView struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (h handlers) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	identities := h.deps.Presence.OnlineUsers()
	views := make([]onlineUserView, 0, len(identities))
	for _, identity := range identities {
		views = append(views, onlineUserView{UserID: identity.UserID, Username: identity.Username})
	}
	writeData(w, http.StatusOK, "ok", views)
}

func (h handlers) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	users, err := h.deps.Users.SearchUsers(r.Context(), query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]userProfile, 0, len(users))
	for _, u := range users {
		view := profileOf(u)
		// Search results hide contact details.
		view.Email = ""
		views = append(views, view)
	}
	writeData(w, http.StatusOK, "ok", views)
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

func (h handlers) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	identity := callerIdentity(r)
	account, err := h.deps.Users.UserByID(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.FirstName != nil {
		account.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		account.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.AvatarURL != nil {
		account.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}
	if err := h.deps.Users.UpdateProfile(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "profile updated", profileOf(account))
}
