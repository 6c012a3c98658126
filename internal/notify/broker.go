package notify

import (
	"sync"
	"time"
)

// Event is pushed to a user's websocket feed when request activity
// concerns them.
type Event struct {
	Type      string    `json:"type"` // request_submitted, request_decided
	RequestID string    `json:"requestId"`
	BookID    string    `json:"bookId"`
	BookTitle string    `json:"bookTitle"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// Broker fans request activity out to per-user subscribers. Delivery is
// best effort: a subscriber that cannot keep up loses events rather than
// blocking the exchange workflow.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{} // userID -> subscriber channels
}

// NewBroker creates a new broker
func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers a feed for userID. The returned cancel func must be
// called when the consumer goes away.
func (b *Broker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[chan Event]struct{}{}
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, userID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of userID
func (b *Broker) Publish(userID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
