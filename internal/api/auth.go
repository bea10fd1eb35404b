package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/chatdeck/chatdeck/internal/platform/id"
	"github.com/chatdeck/chatdeck/internal/platform/timeouts"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/token"
	"github.com/chatdeck/chatdeck/internal/user"
)

// TokenService covers the token operations the REST surface needs.
// Satisfied by the token service.
type TokenService interface {
	Issue(u user.User) (string, error)
	IssueRefresh(u user.User) (string, error)
	Verify(ctx context.Context, tokenString string) (registry.Identity, error)
	VerifyRefresh(ctx context.Context, tokenString string) (user.User, error)
}

type identityContextKey struct{}

// requireAuth verifies the bearer token and stores the resolved
// identity on the request context.
func (h handlers) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := token.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.TokenVerify)
		identity, err := h.deps.Tokens.Verify(ctx, raw)
		cancel()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityContextKey{}, identity)))
	}
}

func callerIdentity(r *http.Request) registry.Identity {
	identity, _ := r.Context().Value(identityContextKey{}).(registry.Identity)
	return identity
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userProfile `json:"user"`
}

type userProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Online    bool   `json:"online"`
	LastSeen  string `json:"lastSeen,omitempty"`
}

func profileOf(u user.User) userProfile {
	p := userProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		AvatarURL: u.AvatarURL,
		Online:    u.Online,
	}
	if !u.LastSeen.IsZero() {
		p.LastSeen = u.LastSeen.UTC().Format(time.RFC3339)
	}
	return p
}

func (h handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := user.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := id.NewID()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	account := user.User{
		ID:           userID,
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Roles:        []string{user.RoleUser},
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.deps.Users.CreateUser(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeAuthResponse(w, http.StatusCreated, "registered", account)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.deps.Users.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.VerifyPassword(req.Password, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.writeAuthResponse(w, http.StatusOK, "authenticated", account)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.TokenVerify)
	account, err := h.deps.Tokens.VerifyRefresh(ctx, req.RefreshToken)
	cancel()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	h.writeAuthResponse(w, http.StatusOK, "refreshed", account)
}

func (h handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := callerIdentity(r)
	account, err := h.deps.Users.UserByID(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, "ok", profileOf(account))
}

func (h handlers) writeAuthResponse(w http.ResponseWriter, status int, message string, account user.User) {
	access, err := h.deps.Tokens.Issue(account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	refresh, err := h.deps.Tokens.IssueRefresh(account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, status, message, authResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         profileOf(account),
	})
}
