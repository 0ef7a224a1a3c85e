package httpapi

import (
	"sync"

	"github.com/google/uuid"

	"github.com/MindFlowInteractive/quest-api-sub002/internal/game"
)

// subscriberBuffer bounds the per-subscriber event queue. A subscriber that
// falls this far behind starts losing events rather than stalling the
// session.
const subscriberBuffer = 32

// eventHub fans session events out to any number of websocket subscribers.
// One hub serves all sessions; the session's BroadcastFn feeds it.
type eventHub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan game.SessionEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[uuid.UUID]map[chan game.SessionEvent]struct{})}
}

// broadcaster returns a BroadcastFunc bound to one session.
func (h *eventHub) broadcaster(sessionID uuid.UUID) game.BroadcastFunc {
	return func(ev game.SessionEvent) {
		h.publish(sessionID, ev)
	}
}

func (h *eventHub) publish(sessionID uuid.UUID, ev game.SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}

// subscribe registers a new listener for a session. The returned cancel must
// be called exactly once; it closes the channel.
func (h *eventHub) subscribe(sessionID uuid.UUID) (<-chan game.SessionEvent, func()) {
	ch := make(chan game.SessionEvent, subscriberBuffer)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan game.SessionEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}
