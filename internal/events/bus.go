package events

import (
	"sync"

	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/google/uuid"
)

var logg = logger.New()

// Kind identifies an invalidation signal.
type Kind string

const (
	PostUpdated  Kind = "post_updated"
	CommentAdded Kind = "comment_added"
	// PostLiked is published after a confirmed post like; nothing listens to it yet.
	PostLiked Kind = "post_liked"
)

// Event is the payload carried by every kind.
type Event struct {
	PostID string
}

type Handler func(Event)

// Handle identifies one subscription; pass it back to Unsubscribe.
type Handle struct {
	id   uuid.UUID
	kind Kind
}

func (h Handle) Kind() Kind { return h.kind }

type subscription struct {
	id uuid.UUID
	fn Handler
}

// Bus is an in-process publish/subscribe channel. Create one per application
// with New and Close it on shutdown.
type Bus struct {
	mu     sync.Mutex
	subs   map[Kind][]subscription
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers fn for kind. Handlers run in registration order.
func (b *Bus) Subscribe(kind Kind, fn Handler) Handle {
	h := Handle{id: uuid.New(), kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		logg.Debug("events", "Subscribe on closed bus ignored for "+string(kind))
		return h
	}
	b.subs[kind] = append(b.subs[kind], subscription{id: h.id, fn: fn})
	return h
}

// Unsubscribe removes the subscription; it reports whether it was registered.
func (b *Bus) Unsubscribe(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[h.kind]
	for i, s := range list {
		if s.id != h.id {
			continue
		}
		next := make([]subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		b.subs[h.kind] = next
		return true
	}
	return false
}

// Mount subscribes for the lifetime of a component. The returned function
// must be called when the component goes away.
func (b *Bus) Mount(kind Kind, fn Handler) (unmount func()) {
	h := b.Subscribe(kind, fn)
	var once sync.Once
	return func() {
		once.Do(func() { b.Unsubscribe(h) })
	}
}

// Publish calls every handler registered for kind at the time of the call,
// synchronously and in registration order.
func (b *Bus) Publish(kind Kind, ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	snapshot := b.subs[kind]
	b.mu.Unlock()

	logg.Debug("events", "Publishing "+string(kind)+" for post "+ev.PostID)
	for _, s := range snapshot {
		s.fn(ev)
	}
}

// Count returns the number of handlers registered for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}

// Close drops every subscription; later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Kind][]subscription)
	logg.Info("events", "Event bus closed")
}
