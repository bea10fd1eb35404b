// Package chat defines the chat event model and the destination naming
// shared by the router, the presence publisher, storage, and the
// transport hub.
package chat

import "time"

// Kind classifies a chat event on the wire and in storage.
type Kind string

const (
	// KindChat is a user-authored message, public or private.
	KindChat Kind = "CHAT"
	// KindJoin announces a user coming online.
	KindJoin Kind = "JOIN"
	// KindLeave announces a user going offline.
	KindLeave Kind = "LEAVE"
	// KindTyping is an ephemeral typing indicator. Never persisted.
	KindTyping Kind = "TYPING"
)

// DefaultRoom is the room public messages land in when the client does
// not name one.
const DefaultRoom = "general"

// BroadcastTopic is the shared destination every connection may receive
// public chat, typing, join, and leave events on.
const BroadcastTopic = "/topic/public"

// PingTopic receives liveness probe responses.
const PingTopic = "/topic/ping"

// PrivateQueue returns the per-user destination only that user's live
// connections receive.
func PrivateQueue(userID string) string {
	return "/user/" + userID + "/queue/private"
}

// Event is one chat event. Events are ephemeral; the CHAT subset that
// is persisted gets a durable ID assigned by the message store.
type Event struct {
	ID         string    `json:"id,omitempty"`
	Kind       Kind      `json:"type"`
	SenderID   string    `json:"senderId,omitempty"`
	SenderName string    `json:"sender,omitempty"`
	Content    string    `json:"content,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
	RoomID     string    `json:"roomId,omitempty"`
	Read       bool      `json:"read,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Private reports whether the event targets a single user instead of
// the broadcast topic.
func (e Event) Private() bool {
	return e.ReceiverID != ""
}

// Publisher delivers an event to every live connection currently
// subscribed to a destination. Implemented by the transport hub.
type Publisher interface {
	Publish(destination string, event Event)
}
