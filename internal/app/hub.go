package app

import (
	"sync"

	"github.com/chatdeck/chatdeck/internal/chat"
)

// hub fans chat events out to the live peers subscribed to each
// destination. It implements chat.Publisher for the router and the
// presence broadcaster.
type hub struct {
	mu            sync.Mutex
	subscribers   map[string]map[*wsPeer]struct{}
	subscriptions map[*wsPeer]map[string]struct{}
}

func newHub() *hub {
	return &hub{
		subscribers:   make(map[string]map[*wsPeer]struct{}),
		subscriptions: make(map[*wsPeer]map[string]struct{}),
	}
}

func (h *hub) subscribe(destination string, peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.subscribers[destination]
	if !ok {
		peers = make(map[*wsPeer]struct{})
		h.subscribers[destination] = peers
	}
	peers[peer] = struct{}{}

	destinations, ok := h.subscriptions[peer]
	if !ok {
		destinations = make(map[string]struct{})
		h.subscriptions[peer] = destinations
	}
	destinations[destination] = struct{}{}
}

// remove drops every subscription the peer holds. Idempotent.
func (h *hub) remove(peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for destination := range h.subscriptions[peer] {
		peers := h.subscribers[destination]
		delete(peers, peer)
		if len(peers) == 0 {
			delete(h.subscribers, destination)
		}
	}
	delete(h.subscriptions, peer)
}

// Publish delivers the event to every peer subscribed to destination.
// Write failures are the peer's problem; the read loop notices the dead
// connection and tears it down.
func (h *hub) Publish(destination string, event chat.Event) {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.subscribers[destination]))
	for peer := range h.subscribers[destination] {
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	frame := wsFrame{
		Type:    frameTypeMessage,
		Payload: mustJSON(messageEnvelope{Destination: destination, Event: event}),
	}
	for _, peer := range peers {
		_ = peer.writeFrame(frame)
	}
}
