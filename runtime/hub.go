package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/observability"
)

// Hub routes envelopes between connections attached to the same room.
//
// It provides best-effort in-process fan-out with no delivery guarantees,
// durability, or retries. Hub is not a message broker.
//
// Rooms exist only while someone is subscribed: the first Subscribe for a
// room creates it, closing the last Subscription tears it down.
//
// Hub is safe for concurrent use by multiple goroutines.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	buffer int
	log    *slog.Logger
}

type room struct {
	subs map[*Subscription]struct{}
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe attaches a new consumer to a room, creating the room on the fly
// if it does not exist yet.
func (h *Hub) Subscribe(roomID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{subs: make(map[*Subscription]struct{})}
		h.rooms[roomID] = r
		observability.ActiveRooms.Inc()
		h.log.Debug("Room channel created", "room", roomID)
	}

	sub := &Subscription{
		hub:    h,
		roomID: roomID,
		ch:     make(chan domain.Envelope, h.buffer),
		done:   make(chan struct{}),
	}
	r.subs[sub] = struct{}{}
	return sub
}

// Publish delivers an envelope to every subscriber of the room and returns
// how many of them received it. A subscriber whose buffer is full is skipped
// and its missed counter incremented, so one stalled reader never blocks
// the rest of the room.
func (h *Hub) Publish(roomID string, env domain.Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return 0
	}

	observability.EnvelopesPublished.Inc()
	delivered := 0
	for sub := range r.subs {
		select {
		case sub.ch <- env:
			delivered++
		default:
			sub.missed.Add(1)
			observability.EnvelopesDropped.Inc()
			h.log.Warn("Subscriber buffer full, envelope dropped", "room", roomID)
		}
	}
	return delivered
}

// Rooms reports how many rooms currently have at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Subscribers reports how many consumers are attached to a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return 0
	}
	return len(r.subs)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[sub.roomID]
	if !ok {
		return
	}
	delete(r.subs, sub)

	// Last one out removes the room entry entirely
	if len(r.subs) == 0 {
		delete(h.rooms, sub.roomID)
		observability.ActiveRooms.Dec()
		h.log.Debug("Room channel torn down", "room", sub.roomID)
	}
}

// Subscription is one consumer's view of a room. Envelopes published while
// its buffer is full are counted, not queued; the gap surfaces as a LagError
// on the next receive.
type Subscription struct {
	hub    *Hub
	roomID string
	ch     chan domain.Envelope
	missed atomic.Uint64
	done   chan struct{}
	once   sync.Once
}

// C exposes the raw delivery channel for callers that select across
// several sources. Such callers should check Lagged themselves.
func (s *Subscription) C() <-chan domain.Envelope { return s.ch }

// Lagged returns how many envelopes were dropped since the last call
// and resets the counter.
func (s *Subscription) Lagged() uint64 { return s.missed.Swap(0) }

// Next blocks until an envelope arrives, the context is cancelled, or the
// subscription is closed. A gap caused by a full buffer is reported as a
// *LagError before any further envelopes are handed out.
func (s *Subscription) Next(ctx context.Context) (domain.Envelope, error) {
	if missed := s.missed.Swap(0); missed > 0 {
		return domain.Envelope{}, &LagError{Missed: missed}
	}
	select {
	case env := <-s.ch:
		return env, nil
	case <-s.done:
		return domain.Envelope{}, errors.ErrSubscriptionClosed
	case <-ctx.Done():
		return domain.Envelope{}, ctx.Err()
	}
}

// Close detaches the subscription from its room. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.done)
	})
}

// LagError reports that a subscriber fell behind and missed envelopes.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d envelopes missed", e.Missed)
}

func (e *LagError) Unwrap() error { return errors.ErrSubscriberLagged }
