package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-pepper/internal/log"
)

// Hub owns a set of subscribers and publishes messages to all of them.
// Only the Run goroutine mutates the set.
type Hub struct {
	name string
	log  *slog.Logger

	subs    map[*Subscriber]struct{}
	publish chan Message
	join    chan *Subscriber
	leave   chan *Subscriber
	done    chan struct{}

	// replay holds the last replaySize messages, sent to new subscribers.
	replay     []Message
	replaySize int

	mu      sync.RWMutex // guards subs for Subscribers
	running atomic.Bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithReplay makes the hub send the last n messages to every new subscriber.
func WithReplay(n int) Option {
	return func(h *Hub) { h.replaySize = n }
}

// New creates a hub. Call Run before subscribing.
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:    name,
		log:     log.Component("hub").With("hub", name),
		subs:    make(map[*Subscriber]struct{}),
		publish: make(chan Message, 256),
		join:    make(chan *Subscriber),
		leave:   make(chan *Subscriber),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run dispatches messages until ctx is done, then disconnects every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				h.drop(s)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			for _, msg := range h.replay {
				s.send <- msg
			}
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.log.Debug("subscriber joined", "subscribers", n, "replayed", len(h.replay))

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				h.drop(s)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.log.Debug("subscriber left", "subscribers", n)

		case msg := <-h.publish:
			h.remember(msg)
			h.mu.Lock()
			for s := range h.subs {
				select {
				case s.send <- msg:
				default:
					h.drop(s)
					h.log.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes s; h.mu must be held.
func (h *Hub) drop(s *Subscriber) {
	delete(h.subs, s)
	close(s.send)
}

func (h *Hub) remember(msg Message) {
	if h.replaySize <= 0 {
		return
	}
	h.replay = append(h.replay, msg)
	if over := len(h.replay) - h.replaySize; over > 0 {
		h.replay = append(h.replay[:0:0], h.replay[over:]...)
	}
}

// Publish queues msg for every subscriber. It never blocks; when the queue
// is full the message is dropped.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		h.log.Warn("publish queue full, dropping message")
	}
}

// PublishJSON encodes v and publishes it as a text frame.
func (h *Hub) PublishJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(Text(data))
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
