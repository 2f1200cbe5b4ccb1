// Package engine applies like and comment actions locally before the server
// confirms them, then reconciles local state with what the server returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/notify"
	"github.com/EllysonAlves/follower/internal/scheduler"
)

var logg = logger.New()

var (
	// ErrInFlight is returned when the same target already has an action running.
	// The action is dropped, not queued.
	ErrInFlight = errors.New("action already in flight for this target")
	// ErrEmptyText rejects blank comments and replies before any remote call.
	ErrEmptyText = fmt.Errorf("text is required: %w", api.ErrValidation)
	// ErrUnknownTarget means the post, comment or reply is not in the local state.
	ErrUnknownTarget = errors.New("target not found in local state")
)

// Remote is the part of the API the engine calls.
type Remote interface {
	GetPost(ctx context.Context, postID string) (models.RawPost, error)
	DeletePost(ctx context.Context, postID string) error
	LikePost(ctx context.Context, postID string) error
	UnlikePost(ctx context.Context, postID string) error
	CreateComment(ctx context.Context, c models.CreateComment) error
	DeleteComment(ctx context.Context, commentID string) error
	LikeComment(ctx context.Context, commentID string) error
	UnlikeComment(ctx context.Context, commentID string) error
	CreateReply(ctx context.Context, r models.CreateReply) error
	DeleteReply(ctx context.Context, replyID string) error
}

// PostHolder is a post collection the engine can mutate: the shared feed
// store or a per-screen copy.
type PostHolder interface {
	Post(id string) (models.Post, bool)
	SetLikeState(postID string, likesCount int, liked bool)
	SetCommentsCount(postID string, count int)
	Remove(postID string) bool
}

// Expecter receives the state a delayed re-fetch should observe.
type Expecter interface {
	Expect(postID string, pred scheduler.Predicate)
}

type Options struct {
	// UserID is sent as the author of new comments.
	UserID string
	// Feed gets comments_count updates after comment changes. Optional.
	Feed PostHolder
	// Expecter is told which comments_count to wait for. Optional.
	Expecter Expecter
}

type Engine struct {
	remote   Remote
	bus      *events.Bus
	notifier notify.Notifier
	opts     Options
	pending  *pendingSet
	mu       sync.RWMutex
}

func New(remote Remote, bus *events.Bus, notifier notify.Notifier, opts Options) *Engine {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Engine{
		remote:   remote,
		bus:      bus,
		notifier: notifier,
		opts:     opts,
		pending:  newPendingSet(),
	}
}

// SetUserID changes the author used for new comments, e.g. after login.
func (e *Engine) SetUserID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.UserID = id
}

func (e *Engine) userID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts.UserID
}

// InFlight reports whether an action for key is running. Keys look like
// "post:<id>", "comment:<id>", "reply:<id>" and "submit:<post id>".
func (e *Engine) InFlight(key string) bool {
	return e.pending.has(key)
}

func (e *Engine) publish(kind events.Kind, postID string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(kind, events.Event{PostID: postID})
}

// pendingSet is the set of targets with an action in flight.
type pendingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{ids: make(map[string]struct{})}
}

// acquire checks and inserts key in one step.
func (p *pendingSet) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.ids[key]; busy {
		return false
	}
	p.ids[key] = struct{}{}
	return true
}

func (p *pendingSet) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.ids, key)
}

func (p *pendingSet) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[key]
	return ok
}
