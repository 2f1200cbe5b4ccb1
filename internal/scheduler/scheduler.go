// Package scheduler re-fetches the feed some time after an invalidation event.
//
// The backend does not make a just-written like or comment visible to reads
// right away, so an immediate refresh would often bring back stale counters.
// Waiting a fixed delay hides most of that lag; an optional predicate lets a
// caller ask for bounded retries until the expected state shows up.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/models"
)

var logg = logger.New()

// DefaultDelay is the wait between an invalidation event and the re-fetch.
const DefaultDelay = 1000 * time.Millisecond

// Target is the collection being kept fresh.
type Target interface {
	Refresh(ctx context.Context) error
	Post(id string) (models.Post, bool)
}

// Predicate reports whether the refreshed state is the one expected.
type Predicate func(p models.Post, found bool) bool

type Options struct {
	// Delay before the first re-fetch. Zero means DefaultDelay.
	Delay time.Duration
	// MaxAttempts bounds re-fetches per event when a predicate is registered.
	// 1 (the default) means a single blind re-fetch.
	MaxAttempts int
	// MaxBackoff caps the doubling wait between attempts.
	MaxBackoff time.Duration
}

type Scheduler struct {
	target Target
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	timers       map[int]*time.Timer
	nextID       int
	expectations map[string]Predicate
	stopped      bool
	unmount      []func()
	wg           sync.WaitGroup
}

// New creates a scheduler and subscribes it to post_updated and comment_added.
func New(bus *events.Bus, target Target, opts Options) *Scheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 8 * opts.Delay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		target:       target,
		opts:         opts,
		ctx:          ctx,
		cancel:       cancel,
		timers:       make(map[int]*time.Timer),
		expectations: make(map[string]Predicate),
	}

	onEvent := func(ev events.Event) { s.Schedule(ev.PostID) }
	if bus != nil {
		s.unmount = append(s.unmount,
			bus.Mount(events.PostUpdated, onEvent),
			bus.Mount(events.CommentAdded, onEvent),
		)
	}
	return s
}

// Expect registers the state a later re-fetch of postID should observe.
// It is consumed by the first re-fetch that satisfies it or gives up.
func (s *Scheduler) Expect(postID string, pred Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectations[postID] = pred
}

// Schedule queues one re-fetch after the configured delay.
func (s *Scheduler) Schedule(postID string) {
	s.schedule(postID, 1, s.opts.Delay)
}

func (s *Scheduler) schedule(postID string, attempt int, wait time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(wait, func() {
		defer s.wg.Done()
		s.run(id, postID, attempt)
	})
	logg.Debug("scheduler", fmt.Sprintf("Re-fetch for post %s scheduled in %v (attempt %d)", postID, wait, attempt))
}

func (s *Scheduler) run(id int, postID string, attempt int) {
	s.mu.Lock()
	delete(s.timers, id)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	if err := s.target.Refresh(s.ctx); err != nil {
		logg.Error("scheduler", "Delayed re-fetch failed for post "+postID, err)
	}

	s.mu.Lock()
	pred, ok := s.expectations[postID]
	s.mu.Unlock()
	if !ok {
		return
	}

	post, found := s.target.Post(postID)
	if pred(post, found) {
		s.clearExpectation(postID)
		return
	}
	if attempt >= s.opts.MaxAttempts {
		s.clearExpectation(postID)
		logg.Warn("scheduler", fmt.Sprintf("Post %s still stale after %d re-fetches", postID, attempt), nil)
		return
	}
	s.schedule(postID, attempt+1, s.backoff(attempt))
}

func (s *Scheduler) clearExpectation(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expectations, postID)
}

// backoff doubles the delay for every attempt already made, capped at MaxBackoff.
func (s *Scheduler) backoff(attempt int) time.Duration {
	d := s.opts.Delay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= s.opts.MaxBackoff {
			return s.opts.MaxBackoff
		}
	}
	return d
}

// Pending returns the number of re-fetches waiting for their timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Wait blocks until every scheduled re-fetch, retries included, has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop unsubscribes from the bus, cancels pending timers and waits for a
// running re-fetch to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	unmount := s.unmount
	s.unmount = nil
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, fn := range unmount {
		fn()
	}
	s.cancel()
	s.wg.Wait()
	logg.Info("scheduler", "Scheduler stopped")
}
