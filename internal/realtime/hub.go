package realtime

import (
	"context"
	"log/slog"
	"sync"
)

const defaultHubBuffer = 64

// Hub is the in-process change feed. Events are routed by the row's user id.
// A subscriber that falls behind is disconnected so that it resubscribes and
// backfills instead of silently missing changes.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]*subscription
	nextID int
	buffer int
	closed bool
	logger *slog.Logger
}

type subscription struct {
	ch   chan Event
	stop func() bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		subs:   make(map[string]map[int]*subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscription for userID that ends when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	id := h.nextID
	h.nextID++
	sub := &subscription{ch: make(chan Event, h.buffer)}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]*subscription)
	}
	h.subs[userID][id] = sub
	sub.stop = context.AfterFunc(ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.removeLocked(userID, id)
	})
	return sub.ch, nil
}

// Publish delivers e to the subscriptions of the row's user. It never blocks.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	userID := e.Row.UserID
	for id, sub := range h.subs[userID] {
		select {
		case sub.ch <- e:
		default:
			h.logger.Warn("realtime subscriber overflow, disconnecting", "user_id", userID, "subscription", id)
			sub.stop()
			h.removeLocked(userID, id)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Disconnect ends every subscription of userID, as a dropped connection would.
func (h *Hub) Disconnect(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs[userID] {
		sub.stop()
		h.removeLocked(userID, id)
	}
}

// Close ends all subscriptions and rejects further use.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for userID, subs := range h.subs {
		for id, sub := range subs {
			sub.stop()
			h.removeLocked(userID, id)
		}
	}
	return nil
}

func (h *Hub) removeLocked(userID string, id int) {
	subs := h.subs[userID]
	sub, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.subs, userID)
	}
	close(sub.ch)
}
