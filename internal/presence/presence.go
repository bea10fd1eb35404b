// Package presence derives and announces user availability from the
// connection registry. The registry is the single source of truth; the
// user store only carries a best-effort projection for offline readers.
package presence

import (
	"context"
	"log"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	"github.com/chatdeck/chatdeck/internal/platform/timeouts"
	"github.com/chatdeck/chatdeck/internal/registry"
)

// OnlineProjector mirrors the online flag into durable storage for
// readers that cannot reach the registry. Satisfied by the user store.
type OnlineProjector interface {
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error
}

// Broadcaster publishes join and leave announcements to the broadcast
// topic and mirrors the online flag into the user store.
type Broadcaster struct {
	registry  *registry.Registry
	publisher chat.Publisher
	users     OnlineProjector
	now       func() time.Time
}

// NewBroadcaster wires a presence broadcaster. users may be nil when no
// persistent projection is wanted.
func NewBroadcaster(reg *registry.Registry, publisher chat.Publisher, users OnlineProjector) *Broadcaster {
	return &Broadcaster{
		registry:  reg,
		publisher: publisher,
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PublishJoin announces identity coming online. Authentication of a
// second connection for an already-online user still announces: clients
// treat repeated JOIN events as idempotent.
func (b *Broadcaster) PublishJoin(ctx context.Context, identity registry.Identity) {
	now := b.now()
	b.publisher.Publish(chat.BroadcastTopic, chat.Event{
		Kind:       chat.KindJoin,
		SenderID:   identity.UserID,
		SenderName: identity.Username,
		Content:    identity.Username + " joined the chat!",
		RoomID:     chat.DefaultRoom,
		Timestamp:  now,
	})
	b.project(ctx, identity.UserID, true, now)
}

// PublishLeave announces identity going offline. The caller must only
// invoke it once the user's last connection is gone; a user with other
// live connections stays online.
func (b *Broadcaster) PublishLeave(ctx context.Context, identity registry.Identity) {
	if b.registry.IsOnline(identity.UserID) {
		return
	}
	now := b.now()
	b.publisher.Publish(chat.BroadcastTopic, chat.Event{
		Kind:       chat.KindLeave,
		SenderID:   identity.UserID,
		SenderName: identity.Username,
		Content:    identity.Username + " left the chat!",
		RoomID:     chat.DefaultRoom,
		Timestamp:  now,
	})
	b.project(ctx, identity.UserID, false, now)
}

// OnlineUsers snapshots the distinct authenticated users, one entry per
// user regardless of connection count.
func (b *Broadcaster) OnlineUsers() []registry.Identity {
	return b.registry.OnlineUsers()
}

// project mirrors the online flag into the user store. Failures are
// logged, never surfaced: the registry already holds the truth.
func (b *Broadcaster) project(ctx context.Context, userID string, online bool, at time.Time) {
	if b.users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.StoreCall)
	defer cancel()
	if err := b.users.SetOnline(ctx, userID, online, at); err != nil {
		log.Printf("presence: project online=%t for %s: %v", online, userID, err)
	}
}
