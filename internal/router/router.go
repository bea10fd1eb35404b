// Package router resolves chat events to destinations and fans them out
// through the transport publisher. Delivery comes first: persistence
// runs under a timeout and its failures are logged, never returned to
// the hot path.
package router

import (
	"context"
	"log"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	platformerrors "github.com/chatdeck/chatdeck/internal/platform/errors"
	"github.com/chatdeck/chatdeck/internal/platform/timeouts"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/storage"
)

// ErrMissingReceiver rejects a private send that names no receiver.
var ErrMissingReceiver = platformerrors.New(platformerrors.CodeMissingReceiver, "private message requires a receiver")

// Router publishes chat traffic. Sender identity always comes from the
// registry record of the sending connection, never from the payload.
type Router struct {
	publisher chat.Publisher
	messages  storage.MessageStore
	now       func() time.Time
}

// New wires a router. messages may be nil to disable persistence.
func New(publisher chat.Publisher, messages storage.MessageStore) *Router {
	return &Router{
		publisher: publisher,
		messages:  messages,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// BroadcastChat publishes a public message to the broadcast topic and
// persists it asynchronously. Every live connection receives it,
// including the sender's own.
func (r *Router) BroadcastChat(ctx context.Context, sender registry.Identity, content, roomID string) {
	if roomID == "" {
		roomID = chat.DefaultRoom
	}
	event := chat.Event{
		Kind:       chat.KindChat,
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		Content:    content,
		RoomID:     roomID,
		Timestamp:  r.now(),
	}
	r.publisher.Publish(chat.BroadcastTopic, event)
	r.persistAsync(event)
}

// SendPrivate persists a private message and publishes it to the
// receiver's queue and to the sender's own queue, so every open tab of
// both parties converges. Persistence failure still delivers; the
// event then carries no durable id.
func (r *Router) SendPrivate(ctx context.Context, sender registry.Identity, receiverID, content string) error {
	if receiverID == "" {
		return ErrMissingReceiver
	}
	event := chat.Event{
		Kind:       chat.KindChat,
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		Content:    content,
		ReceiverID: receiverID,
		Timestamp:  r.now(),
	}
	event.ID = r.persist(ctx, event)
	r.publisher.Publish(chat.PrivateQueue(receiverID), event)
	if receiverID != sender.UserID {
		r.publisher.Publish(chat.PrivateQueue(sender.UserID), event)
	}
	return nil
}

// TypingNotification publishes an ephemeral typing indicator. Typing
// events are never persisted.
func (r *Router) TypingNotification(sender registry.Identity, receiverID string) {
	event := chat.Event{
		Kind:       chat.KindTyping,
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		Content:    sender.Username + " is typing...",
		ReceiverID: receiverID,
		Timestamp:  r.now(),
	}
	if receiverID != "" {
		r.publisher.Publish(chat.PrivateQueue(receiverID), event)
		return
	}
	r.publisher.Publish(chat.BroadcastTopic, event)
}

// Ping answers a liveness probe on the ping topic.
func (r *Router) Ping() {
	r.publisher.Publish(chat.PingTopic, chat.Event{
		Kind:      chat.KindChat,
		Content:   "pong - " + r.now().Format(time.RFC3339),
		Timestamp: r.now(),
	})
}

// persist stores the event under the hot-path budget and returns the
// durable id, or "" when the store is absent or failing.
func (r *Router) persist(ctx context.Context, event chat.Event) string {
	if r.messages == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.StoreCall)
	defer cancel()
	id, err := r.messages.SaveMessage(ctx, event)
	if err != nil {
		log.Printf("router: persist message from %s: %v", event.SenderID, err)
		return ""
	}
	return id
}

func (r *Router) persistAsync(event chat.Event) {
	if r.messages == nil {
		return
	}
	go r.persist(context.Background(), event)
}
