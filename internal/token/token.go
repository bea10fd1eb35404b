// Package token issues and verifies the bearer credentials carried by
// CONNECT frames and REST requests. Tokens are HMAC-SHA256 JWTs whose
// subject is resolved against the user store at verification time, so
// deleted accounts fail verification even with a well-formed token.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/user"
)

// Verification failures. ErrExpired, ErrMalformed, and ErrInvalid are
// properties of the token itself; ErrUnknownSubject means the token
// parsed but its subject no longer resolves to an account.
var (
	ErrExpired        = platformerrors.New(platformerrors.CodeTokenExpired, "token expired")
	ErrMalformed      = platformerrors.New(platformerrors.CodeTokenMalformed, "token malformed")
	ErrInvalid        = platformerrors.New(platformerrors.CodeAuthRejected, "token invalid")
	ErrUnknownSubject = platformerrors.New(platformerrors.CodeUnknownSubject, "token subject unknown")
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// UserSource resolves a token subject to an account record.
type UserSource interface {
	UserByID(ctx context.Context, userID string) (user.User, error)
}

// Config holds signing inputs.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims is the chatdeck JWT claim set.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens.
type Service struct {
	config Config
	users  UserSource
}

// NewService builds a token service. The user source is required so
// verification can reject unknown subjects.
func NewService(config Config, users UserSource) (*Service, error) {
	if strings.TrimSpace(config.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if users == nil {
		return nil, errors.New("user source is required")
	}
	// Zero means "use the default"; negative TTLs are honored so tests
	// can mint already-expired tokens.
	if config.AccessTTL == 0 {
		config.AccessTTL = 24 * time.Hour
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if strings.TrimSpace(config.Issuer) == "" {
		config.Issuer = "chatdeck"
	}
	return &Service{config: config, users: users}, nil
}

// Issue signs a fresh access token for the user.
func (s *Service) Issue(u user.User) (string, error) {
	return s.sign(u, typeAccess, s.config.AccessTTL)
}

// IssueRefresh signs a refresh token for the user.
func (s *Service) IssueRefresh(u user.User) (string, error) {
	return s.sign(u, typeRefresh, s.config.RefreshTTL)
}

func (s *Service) sign(u user.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    u.ID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates an access token and resolves its subject to a live
// identity. The identity is bound to the connection once at CONNECT;
// it is never re-derived from message payloads afterwards.
func (s *Service) Verify(ctx context.Context, tokenString string) (registry.Identity, error) {
	u, err := s.verify(ctx, tokenString, typeAccess)
	if err != nil {
		return registry.Identity{}, err
	}
	return registry.Identity{UserID: u.ID, Username: u.Username, Roles: u.Roles}, nil
}

// VerifyRefresh validates a refresh token and returns the account it
// belongs to.
func (s *Service) VerifyRefresh(ctx context.Context, tokenString string) (user.User, error) {
	return s.verify(ctx, tokenString, typeRefresh)
}

func (s *Service) verify(ctx context.Context, tokenString string, wantType string) (user.User, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return user.User{}, ErrMalformed
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return user.User{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return user.User{}, ErrMalformed
		default:
			return user.User{}, ErrInvalid
		}
	}
	if !parsed.Valid || claims.TokenType != wantType {
		return user.User{}, ErrInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return user.User{}, ErrInvalid
	}

	u, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		return user.User{}, ErrUnknownSubject
	}
	if u.Username != claims.Subject {
		return user.User{}, ErrUnknownSubject
	}
	return u, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <t>"
// header value. The bool is false when the header is absent or the
// scheme is not Bearer.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	value := strings.TrimSpace(header[len(prefix):])
	if value == "" {
		return "", false
	}
	return value, true
}
