package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chatdeck/chatdeck/internal/chat"
	"github.com/chatdeck/chatdeck/internal/registry"
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

type fakeUserStore struct {
	mu     sync.Mutex
	online map[string]bool
	err    error
}

func (s *fakeUserStore) SetOnline(_ context.Context, userID string, online bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.online == nil {
		s.online = map[string]bool{}
	}
	s.online[userID] = online
	return nil
}

func (s *fakeUserStore) onlineFor(userID string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.online[userID]
	return v, ok
}

func TestPublishJoinAnnouncesAndProjects(t *testing.T) {
	reg := registry.New()
	pub := &capturePublisher{}
	users := &fakeUserStore{}
	b := NewBroadcaster(reg, pub, users)

	identity := registry.Identity{UserID: "u1", Username: "ana"}
	reg.Authenticate("c1", identity)
	b.PublishJoin(context.Background(), identity)

	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].destination != chat.BroadcastTopic {
		t.Fatalf("destination = %q, want %q", events[0].destination, chat.BroadcastTopic)
	}
	e := events[0].event
	if e.Kind != chat.KindJoin || e.SenderID != "u1" || e.Content != "ana joined the chat!" {
		t.Fatalf("unexpected join event: %+v", e)
	}
	if online, ok := users.onlineFor("u1"); !ok || !online {
		t.Fatal("expected online projection written")
	}
}

func TestPublishLeaveSkippedWhileStillConnected(t *testing.T) {
	reg := registry.New()
	pub := &capturePublisher{}
	b := NewBroadcaster(reg, pub, nil)

	identity := registry.Identity{UserID: "u1", Username: "ana"}
	reg.Authenticate("c1", identity)
	reg.Authenticate("c2", identity)

	reg.Remove("c1")
	b.PublishLeave(context.Background(), identity)
	if len(pub.all()) != 0 {
		t.Fatal("user with a live connection must not be announced offline")
	}

	reg.Remove("c2")
	b.PublishLeave(context.Background(), identity)
	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 leave", len(events))
	}
	e := events[0].event
	if e.Kind != chat.KindLeave || e.Content != "ana left the chat!" {
		t.Fatalf("unexpected leave event: %+v", e)
	}
}

func TestProjectionFailureDoesNotBlockAnnouncement(t *testing.T) {
	reg := registry.New()
	pub := &capturePublisher{}
	users := &fakeUserStore{err: errors.New("db down")}
	b := NewBroadcaster(reg, pub, users)

	identity := registry.Identity{UserID: "u1", Username: "ana"}
	reg.Authenticate("c1", identity)
	b.PublishJoin(context.Background(), identity)

	if len(pub.all()) != 1 {
		t.Fatal("join must publish even when the store fails")
	}
}

func TestOnlineUsersDeduplicated(t *testing.T) {
	reg := registry.New()
	b := NewBroadcaster(reg, &capturePublisher{}, nil)

	reg.Authenticate("c1", registry.Identity{UserID: "u1", Username: "ana"})
	reg.Authenticate("c2", registry.Identity{UserID: "u1", Username: "ana"})
	reg.Authenticate("c3", registry.Identity{UserID: "u2", Username: "bo"})

	online := b.OnlineUsers()
	if len(online) != 2 {
		t.Fatalf("got %d online users, want 2", len(online))
	}
	if online[0].UserID != "u1" || online[1].UserID != "u2" {
		t.Fatalf("unexpected online snapshot: %+v", online)
	}
}
