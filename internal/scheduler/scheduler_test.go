package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/models"
)

// fakeTarget counts refreshes and serves a scripted like count per refresh.
type fakeTarget struct {
	mu        sync.Mutex
	refreshes []time.Time
	counts    []int // LikesCount visible after the n-th refresh; last value repeats
	fail      bool
}

func (f *fakeTarget) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, time.Now())
	if f.fail {
		return errors.New("refresh failed")
	}
	return nil
}

func (f *fakeTarget) Post(id string) (models.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.counts) == 0 {
		return models.Post{}, false
	}
	i := len(f.refreshes) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f.counts) {
		i = len(f.counts) - 1
	}
	return models.Post{ID: id, LikesCount: f.counts[i]}, true
}

func (f *fakeTarget) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshes)
}

func TestEventTriggersOneDelayedRefresh(t *testing.T) {
	bus := events.New()
	target := &fakeTarget{}
	s := New(bus, target, Options{Delay: 30 * time.Millisecond})
	defer s.Stop()

	start := time.Now()
	bus.Publish(events.CommentAdded, events.Event{PostID: "p1"})

	if target.Refreshes() != 0 {
		t.Fatalf("refresh must not run immediately")
	}
	if s.Pending() != 1 {
		t.Fatalf("expected 1 pending re-fetch, got %d", s.Pending())
	}

	s.Wait()

	if got := target.Refreshes(); got != 1 {
		t.Fatalf("expected exactly 1 refresh, got %d", got)
	}
	if elapsed := target.refreshes[0].Sub(start); elapsed < 30*time.Millisecond {
		t.Fatalf("refresh ran after %v, before the delay", elapsed)
	}
}

func TestPostUpdatedAlsoTriggersAndPostLikedDoesNot(t *testing.T) {
	bus := events.New()
	target := &fakeTarget{}
	s := New(bus, target, Options{Delay: 5 * time.Millisecond})
	defer s.Stop()

	bus.Publish(events.PostUpdated, events.Event{PostID: "p1"})
	bus.Publish(events.PostLiked, events.Event{PostID: "p1"})
	s.Wait()

	if got := target.Refreshes(); got != 1 {
		t.Fatalf("expected 1 refresh, got %d", got)
	}
}

func TestEachEventSchedulesItsOwnRefresh(t *testing.T) {
	bus := events.New()
	target := &fakeTarget{}
	s := New(bus, target, Options{Delay: 5 * time.Millisecond})
	defer s.Stop()

	bus.Publish(events.CommentAdded, events.Event{PostID: "p1"})
	bus.Publish(events.CommentAdded, events.Event{PostID: "p2"})
	s.Wait()

	if got := target.Refreshes(); got != 2 {
		t.Fatalf("expected 2 refreshes, got %d", got)
	}
}

func TestExpectationRetriesUntilSatisfied(t *testing.T) {
	target := &fakeTarget{counts: []int{5, 5, 6}}
	s := New(nil, target, Options{Delay: 2 * time.Millisecond, MaxAttempts: 5, MaxBackoff: 10 * time.Millisecond})
	defer s.Stop()

	s.Expect("p1", func(p models.Post, found bool) bool { return found && p.LikesCount == 6 })
	s.Schedule("p1")
	s.Wait()

	if got := target.Refreshes(); got != 3 {
		t.Fatalf("expected 3 refreshes until the count matched, got %d", got)
	}
}

func TestExpectationGivesUpAfterMaxAttempts(t *testing.T) {
	target := &fakeTarget{counts: []int{5}}
	s := New(nil, target, Options{Delay: 2 * time.Millisecond, MaxAttempts: 3, MaxBackoff: 5 * time.Millisecond})
	defer s.Stop()

	s.Expect("p1", func(p models.Post, found bool) bool { return p.LikesCount == 6 })
	s.Schedule("p1")
	s.Wait()

	if got := target.Refreshes(); got != 3 {
		t.Fatalf("expected 3 bounded refreshes, got %d", got)
	}

	// expectation is consumed; a new event refreshes once
	s.Schedule("p1")
	s.Wait()
	if got := target.Refreshes(); got != 4 {
		t.Fatalf("expected a single extra refresh, got %d", got)
	}
}

func TestSingleAttemptByDefault(t *testing.T) {
	target := &fakeTarget{counts: []int{5}}
	s := New(nil, target, Options{Delay: 2 * time.Millisecond})
	defer s.Stop()

	s.Expect("p1", func(models.Post, bool) bool { return false })
	s.Schedule("p1")
	s.Wait()

	if got := target.Refreshes(); got != 1 {
		t.Fatalf("default options must refresh once, got %d", got)
	}
}

func TestRefreshErrorIsTolerated(t *testing.T) {
	target := &fakeTarget{fail: true}
	s := New(nil, target, Options{Delay: 2 * time.Millisecond})
	defer s.Stop()

	s.Schedule("p1")
	s.Wait()
	if target.Refreshes() != 1 {
		t.Fatalf("expected the failed refresh to be attempted once")
	}
}

func TestStopCancelsPendingAndUnsubscribes(t *testing.T) {
	bus := events.New()
	target := &fakeTarget{}
	s := New(bus, target, Options{Delay: time.Hour})

	bus.Publish(events.CommentAdded, events.Event{PostID: "p1"})
	if s.Pending() != 1 {
		t.Fatalf("expected pending timer")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	if s.Pending() != 0 || target.Refreshes() != 0 {
		t.Fatalf("pending refresh survived Stop")
	}
	if bus.Count(events.CommentAdded) != 0 || bus.Count(events.PostUpdated) != 0 {
		t.Fatalf("scheduler still subscribed after Stop")
	}

	s.Schedule("p1")
	if s.Pending() != 0 {
		t.Fatalf("stopped scheduler accepted new work")
	}
	s.Stop()
}

func TestBackoffIsCapped(t *testing.T) {
	s := New(nil, &fakeTarget{}, Options{Delay: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond})
	defer s.Stop()

	if got := s.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("backoff(1) = %v", got)
	}
	if got := s.backoff(3); got != 300*time.Millisecond {
		t.Fatalf("backoff(3) = %v, want cap", got)
	}
}
