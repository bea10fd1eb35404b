// Package storage declares the persistence contracts the chat core
// consumes. The session layer treats these as external collaborators:
// persistence failures are downgraded to logged warnings on the hot
// path and never block delivery.
package storage

import (
	"context"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = platformerrors.New(platformerrors.CodeNotFound, "record not found")

// ErrAlreadyExists indicates a unique constraint was violated.
var ErrAlreadyExists = platformerrors.New(platformerrors.CodeAlreadyExists, "record already exists")

// MessageStore persists the durable subset of chat events.
type MessageStore interface {
	// SaveMessage stores the event and returns the durable id it
	// assigned.
	SaveMessage(ctx context.Context, event chat.Event) (string, error)
	// RoomMessages returns a room's messages in chronological order.
	RoomMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Event, error)
	// PairMessages returns the private messages exchanged between two
	// users, either direction, in chronological order.
	PairMessages(ctx context.Context, userA, userB string, limit, offset int) ([]chat.Event, error)
	// MarkRead flags one message as read.
	MarkRead(ctx context.Context, messageID string) error
	// MarkPairRead flags every message from otherID to userID as read
	// and returns how many changed.
	MarkPairRead(ctx context.Context, userID, otherID string) (int64, error)
	// UnreadCount counts unread messages sent by otherID to userID.
	UnreadCount(ctx context.Context, userID, otherID string) (int64, error)
	// RecentConversations summarizes the user's private threads, most
	// recent first.
	RecentConversations(ctx context.Context, userID string) ([]Conversation, error)
}

// Conversation is one private thread summary.
type Conversation struct {
	OtherUserID   string
	OtherUsername string
	OtherOnline   bool
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int64
}

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) error
	UserByID(ctx context.Context, userID string) (user.User, error)
	UserByUsername(ctx context.Context, username string) (user.User, error)
	SearchUsers(ctx context.Context, query string) ([]user.User, error)
	UpdateProfile(ctx context.Context, u user.User) error
	// SetOnline writes the best-effort presence projection. The
	// connection registry stays the source of truth.
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
}

// Room is a public or private chat room.
type Room struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	Private     bool
	CreatedAt   time.Time
}

// RoomStore persists rooms.
type RoomStore interface {
	// PublicRooms lists public rooms, seeding the defaults when none
	// exist yet.
	PublicRooms(ctx context.Context) ([]Room, error)
	// CreateRoom inserts a room, assigning an id when the caller left
	// it empty, and returns the stored record.
	CreateRoom(ctx context.Context, room Room) (Room, error)
}
