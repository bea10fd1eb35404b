package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/storage"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []published
}

type published struct {
	destination string
	event       chat.Event
}

func (p *capturePublisher) Publish(destination string, event chat.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{destination, event})
}

func (p *capturePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeMessageStore struct {
	mu    sync.Mutex
	saved []chat.Event
	err   error
	done  chan struct{}
}

func (s *fakeMessageStore) SaveMessage(_ context.Context, event chat.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		defer close(s.done)
	}
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, event)
	return "m1", nil
}

func (s *fakeMessageStore) RoomMessages(context.Context, string, int, int) ([]chat.Event, error) {
	return nil, nil
}

func (s *fakeMessageStore) PairMessages(context.Context, string, string, int, int) ([]chat.Event, error) {
	return nil, nil
}

func (s *fakeMessageStore) MarkRead(context.Context, string) error { return nil }

func (s *fakeMessageStore) MarkPairRead(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (s *fakeMessageStore) UnreadCount(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (s *fakeMessageStore) RecentConversations(context.Context, string) ([]storage.Conversation, error) {
	return nil, nil
}

func (s *fakeMessageStore) savedEvents() []chat.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Event(nil), s.saved...)
}

var ana = registry.Identity{UserID: "u1", Username: "ana"}

func TestBroadcastChatPublishesAndPersists(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeMessageStore{done: make(chan struct{})}
	r := New(pub, store)

	r.BroadcastChat(context.Background(), ana, "hello", "")

	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("got %d published events, want 1", len(events))
	}
	if events[0].destination != chat.BroadcastTopic {
		t.Fatalf("destination = %q, want %q", events[0].destination, chat.BroadcastTopic)
	}
	e := events[0].event
	if e.SenderID != "u1" || e.SenderName != "ana" || e.RoomID != chat.DefaultRoom {
		t.Fatalf("unexpected event: %+v", e)
	}

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async persist")
	}
	saved := store.savedEvents()
	if len(saved) != 1 || saved[0].Content != "hello" {
		t.Fatalf("unexpected persisted events: %+v", saved)
	}
}

func TestSendPrivateFansOutToBothParties(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeMessageStore{}
	r := New(pub, store)

	if err := r.SendPrivate(context.Background(), ana, "u2", "psst"); err != nil {
		t.Fatalf("send private: %v", err)
	}

	events := pub.all()
	if len(events) != 2 {
		t.Fatalf("got %d published events, want 2", len(events))
	}
	if events[0].destination != chat.PrivateQueue("u2") {
		t.Fatalf("first destination = %q, want receiver queue", events[0].destination)
	}
	if events[1].destination != chat.PrivateQueue("u1") {
		t.Fatalf("second destination = %q, want sender queue", events[1].destination)
	}
	for _, p := range events {
		if p.event.ID != "m1" {
			t.Fatalf("expected durable id on delivered event, got %+v", p.event)
		}
	}
}

func TestSendPrivateToSelfDeliversOnce(t *testing.T) {
	pub := &capturePublisher{}
	r := New(pub, &fakeMessageStore{})

	if err := r.SendPrivate(context.Background(), ana, "u1", "note to self"); err != nil {
		t.Fatalf("send private: %v", err)
	}
	if len(pub.all()) != 1 {
		t.Fatal("self-addressed message must not be delivered twice")
	}
}

func TestSendPrivateRequiresReceiver(t *testing.T) {
	pub := &capturePublisher{}
	r := New(pub, &fakeMessageStore{})

	if err := r.SendPrivate(context.Background(), ana, "", "psst"); !errors.Is(err, ErrMissingReceiver) {
		t.Fatalf("expected ErrMissingReceiver, got %v", err)
	}
	if len(pub.all()) != 0 {
		t.Fatal("rejected send must not publish")
	}
}

func TestSendPrivateDeliversWhenPersistFails(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeMessageStore{err: errors.New("db down")}
	r := New(pub, store)

	if err := r.SendPrivate(context.Background(), ana, "u2", "psst"); err != nil {
		t.Fatalf("send private: %v", err)
	}
	events := pub.all()
	if len(events) != 2 {
		t.Fatalf("got %d published events, want delivery despite store failure", len(events))
	}
	if events[0].event.ID != "" {
		t.Fatal("undurable event must carry no id")
	}
}

func TestTypingNotificationRouting(t *testing.T) {
	pub := &capturePublisher{}
	store := &fakeMessageStore{}
	r := New(pub, store)

	r.TypingNotification(ana, "")
	r.TypingNotification(ana, "u2")

	events := pub.all()
	if len(events) != 2 {
		t.Fatalf("got %d published events, want 2", len(events))
	}
	if events[0].destination != chat.BroadcastTopic {
		t.Fatalf("public typing destination = %q", events[0].destination)
	}
	if events[1].destination != chat.PrivateQueue("u2") {
		t.Fatalf("private typing destination = %q", events[1].destination)
	}
	if events[0].event.Content != "ana is typing..." {
		t.Fatalf("typing content = %q", events[0].event.Content)
	}
	if len(store.savedEvents()) != 0 {
		t.Fatal("typing indicators must never be persisted")
	}
}

func TestPing(t *testing.T) {
	pub := &capturePublisher{}
	r := New(pub, nil)

	r.Ping()

	events := pub.all()
	if len(events) != 1 || events[0].destination != chat.PingTopic {
		t.Fatalf("unexpected ping publish: %+v", events)
	}
	content := events[0].event.Content
	if !strings.HasPrefix(content, "pong - ") {
		t.Fatalf("ping content = %q", content)
	}
	if _, err := time.Parse(time.RFC3339, strings.TrimPrefix(content, "pong - ")); err != nil {
		t.Fatalf("ping timestamp not RFC3339: %v", err)
	}
}
