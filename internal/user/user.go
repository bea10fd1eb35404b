// Package user holds the account record and credential helpers shared
// by the token service, storage, and the REST surface.
package user

import (
	"strings"
	"time"
)

// RoleUser is the default role granted at registration.
const RoleUser = "USER"

// User is one account. Online and LastSeen are best-effort projections
// written by the presence publisher; live presence comes from the
// connection registry.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	AvatarURL    string
	PasswordHash string
	Online       bool
	LastSeen     time.Time
	CreatedAt    time.Time
	Roles        []string
}

// Validate reports whether the record carries the minimum identity
// fields storage requires.
func (u User) Validate() bool {
	return strings.TrimSpace(u.ID) != "" && strings.TrimSpace(u.Username) != ""
}
