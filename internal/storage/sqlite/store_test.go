package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	"github.com/chatdeck/chatdeck/internal/storage"
	"github.com/chatdeck/chatdeck/internal/user"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func createTestUser(t *testing.T, store *Store, userID, username string) {
	t.Helper()
	err := store.CreateUser(context.Background(), user.User{
		ID:        userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

func saveTestMessage(t *testing.T, store *Store, event chat.Event) string {
	t.Helper()
	messageID, err := store.SaveMessage(context.Background(), event)
	if err != nil {
		t.Fatalf("save message: %v", err)
	}
	return messageID
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSaveAndQueryRoomMessages(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, content := range []string{"first", "second", "third"} {
		saveTestMessage(t, store, chat.Event{
			Kind:       chat.KindChat,
			SenderID:   "u1",
			SenderName: "ana",
			Content:    content,
			RoomID:     "general",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
	}
	// A private message must not appear in room history.
	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u1", ReceiverID: "u2",
		Content: "psst", RoomID: "general", Timestamp: base,
	})

	events, err := store.RoomMessages(context.Background(), "general", 10, 0)
	if err != nil {
		t.Fatalf("room messages: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Content != "first" || events[2].Content != "third" {
		t.Fatalf("expected chronological order, got %q..%q", events[0].Content, events[2].Content)
	}
	if events[0].ID == "" {
		t.Fatal("expected durable id assigned")
	}

	limited, err := store.RoomMessages(context.Background(), "general", 2, 0)
	if err != nil {
		t.Fatalf("room messages limited: %v", err)
	}
	if len(limited) != 2 || limited[1].Content != "third" {
		t.Fatalf("expected newest two messages, got %+v", limited)
	}
}

func TestPairMessagesBothDirections(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u1", ReceiverID: "u2", Content: "hi bo", Timestamp: base,
	})
	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u2", ReceiverID: "u1", Content: "hi ana", Timestamp: base.Add(time.Second),
	})
	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u1", ReceiverID: "u3", Content: "other thread", Timestamp: base,
	})

	events, err := store.PairMessages(context.Background(), "u1", "u2", 10, 0)
	if err != nil {
		t.Fatalf("pair messages: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Content != "hi bo" || events[1].Content != "hi ana" {
		t.Fatalf("expected chronological pair thread, got %+v", events)
	}

	swapped, err := store.PairMessages(context.Background(), "u2", "u1", 10, 0)
	if err != nil {
		t.Fatalf("pair messages swapped: %v", err)
	}
	if len(swapped) != 2 {
		t.Fatalf("expected symmetric pair query, got %d events", len(swapped))
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().UTC()

	first := saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u2", ReceiverID: "u1", Content: "one", Timestamp: base,
	})
	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u2", ReceiverID: "u1", Content: "two", Timestamp: base.Add(time.Second),
	})

	count, err := store.UnreadCount(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}

	if err := store.MarkRead(context.Background(), first); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = store.UnreadCount(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Fatalf("unread after mark = %d, want 1", count)
	}

	if err := store.MarkRead(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	changed, err := store.MarkPairRead(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("mark pair read: %v", err)
	}
	if changed != 1 {
		t.Fatalf("pair read changed = %d, want 1", changed)
	}
	count, _ = store.UnreadCount(context.Background(), "u1", "u2")
	if count != 0 {
		t.Fatalf("unread after pair read = %d, want 0", count)
	}
}

func TestRecentConversations(t *testing.T) {
	store := openTestStore(t)
	createTestUser(t, store, "u1", "ana")
	createTestUser(t, store, "u2", "bo")
	createTestUser(t, store, "u3", "cy")
	base := time.Now().UTC().Truncate(time.Millisecond)

	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u2", ReceiverID: "u1", Content: "old thread", Timestamp: base,
	})
	saveTestMessage(t, store, chat.Event{
		Kind: chat.KindChat, SenderID: "u1", ReceiverID: "u3", Content: "newer thread", Timestamp: base.Add(time.Minute),
	})

	conversations, err := store.RecentConversations(context.Background(), "u1")
	if err != nil {
		t.Fatalf("recent conversations: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("got %d conversations, want 2", len(conversations))
	}
	if conversations[0].OtherUsername != "cy" {
		t.Fatalf("expected most recent thread first, got %q", conversations[0].OtherUsername)
	}
	if conversations[1].OtherUsername != "bo" || conversations[1].UnreadCount != 1 {
		t.Fatalf("expected unread count 1 from bo, got %+v", conversations[1])
	}
	if conversations[1].LastMessage != "old thread" {
		t.Fatalf("last message = %q, want old thread", conversations[1].LastMessage)
	}
}

func TestUserLifecycle(t *testing.T) {
	store := openTestStore(t)
	createTestUser(t, store, "u1", "ana")

	if err := store.CreateUser(context.Background(), user.User{
		ID: "u9", Username: "ana", CreatedAt: time.Now().UTC(),
	}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate username, got %v", err)
	}

	u, err := store.UserByUsername(context.Background(), "ana")
	if err != nil {
		t.Fatalf("user by username: %v", err)
	}
	if u.ID != "u1" {
		t.Fatalf("user id = %q, want u1", u.ID)
	}
	if len(u.Roles) != 1 || u.Roles[0] != user.RoleUser {
		t.Fatalf("roles = %v, want default USER", u.Roles)
	}

	if _, err := store.UserByID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	u.FirstName = "Ana"
	u.AvatarURL = "https://example.com/a.png"
	if err := store.UpdateProfile(context.Background(), u); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	updated, err := store.UserByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("user by id: %v", err)
	}
	if updated.FirstName != "Ana" || updated.AvatarURL != "https://example.com/a.png" {
		t.Fatalf("profile not updated: %+v", updated)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := store.SetOnline(context.Background(), "u1", true, now); err != nil {
		t.Fatalf("set online: %v", err)
	}
	online, _ := store.UserByID(context.Background(), "u1")
	if !online.Online || !online.LastSeen.Equal(now) {
		t.Fatalf("expected online projection written, got %+v", online)
	}
}

func TestSearchUsers(t *testing.T) {
	store := openTestStore(t)
	createTestUser(t, store, "u1", "ana")
	createTestUser(t, store, "u2", "anatole")
	createTestUser(t, store, "u3", "bo")

	users, err := store.SearchUsers(context.Background(), "ANA")
	if err != nil {
		t.Fatalf("search users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].Username != "ana" || users[1].Username != "anatole" {
		t.Fatalf("unexpected search order: %+v", users)
	}
}

func TestPublicRoomsSeedsDefaults(t *testing.T) {
	store := openTestStore(t)

	rooms, err := store.PublicRooms(context.Background())
	if err != nil {
		t.Fatalf("public rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2 seeded defaults", len(rooms))
	}
	if rooms[0].Name != "general" || rooms[1].Name != "random" {
		t.Fatalf("unexpected default rooms: %+v", rooms)
	}

	// Second call must not reseed.
	again, err := store.PublicRooms(context.Background())
	if err != nil {
		t.Fatalf("public rooms again: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("expected stable room list, got %d", len(again))
	}

	if _, err := store.CreateRoom(context.Background(), storage.Room{Name: "general"}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate room, got %v", err)
	}

	created, err := store.CreateRoom(context.Background(), storage.Room{Name: "gaming", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned, got %+v", created)
	}
}
