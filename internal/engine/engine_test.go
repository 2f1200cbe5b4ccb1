package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/notify"
	"github.com/EllysonAlves/follower/internal/scheduler"
	"github.com/EllysonAlves/follower/internal/store"
)

func intp(n int) *int    { return &n }
func boolp(b bool) *bool { return &b }

func rawPost(id string, likes int, liked bool) models.RawPost {
	return models.RawPost{
		ID:              models.ID(id),
		UserID:          "u2",
		Caption:         "post " + id,
		LikesCount:      intp(likes),
		LikedByAuthUser: boolp(liked),
		CommentsCount:   intp(0),
	}
}

type fixture struct {
	mock     *api.MockAPI
	bus      *events.Bus
	feed     *store.Store
	notices  *notify.Recorder
	engine   *Engine
	liked    int
	likedMux sync.Mutex
}

func newFixture(t *testing.T, posts ...models.RawPost) *fixture {
	t.Helper()
	f := &fixture{
		mock:    api.NewMock("u1"),
		bus:     events.New(),
		notices: &notify.Recorder{},
	}
	for _, p := range posts {
		f.mock.AddPost(p)
	}
	f.feed = store.New(f.mock.ListPosts)
	if err := f.feed.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	f.bus.Subscribe(events.PostLiked, func(events.Event) {
		f.likedMux.Lock()
		f.liked++
		f.likedMux.Unlock()
	})
	f.engine = New(f.mock, f.bus, f.notices, Options{UserID: "u1", Feed: f.feed})
	return f
}

func (f *fixture) postLikedEvents() int {
	f.likedMux.Lock()
	defer f.likedMux.Unlock()
	return f.liked
}

func assertLikeState(t *testing.T, h PostHolder, id string, count int, liked bool) {
	t.Helper()
	p, ok := h.Post(id)
	if !ok {
		t.Fatalf("post %s missing", id)
	}
	if p.LikesCount != count || p.LikedByCurrentUser != liked {
		t.Fatalf("post %s = {%d,%v}, want {%d,%v}", id, p.LikesCount, p.LikedByCurrentUser, count, liked)
	}
}

func TestTogglePostLikeRoundTrip(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	ctx := context.Background()

	if err := f.engine.TogglePostLike(ctx, f.feed, "p1"); err != nil {
		t.Fatalf("like: %v", err)
	}
	assertLikeState(t, f.feed, "p1", 6, true)
	if n, ok := f.notices.Last(); !ok || n.Severity != notify.Success {
		t.Fatalf("expected success notice, got %+v", n)
	}
	if f.postLikedEvents() != 1 {
		t.Fatalf("expected 1 post_liked event, got %d", f.postLikedEvents())
	}

	if err := f.engine.TogglePostLike(ctx, f.feed, "p1"); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	assertLikeState(t, f.feed, "p1", 5, false)
	if f.mock.Calls("LikePost") != 1 || f.mock.Calls("UnlikePost") != 1 {
		t.Fatalf("unexpected remote calls: like=%d unlike=%d", f.mock.Calls("LikePost"), f.mock.Calls("UnlikePost"))
	}
	if len(f.notices.Notices()) != 2 {
		t.Fatalf("expected one notice per toggle, got %d", len(f.notices.Notices()))
	}
}

func TestTogglePostLikeDropsTapWhileInFlight(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false), rawPost("p2", 1, false))
	entered := make(chan struct{})
	release := make(chan struct{})
	f.mock.Hook = func(ctx context.Context, method, id string) error {
		if method == "LikePost" && id == "p1" {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.engine.TogglePostLike(context.Background(), f.feed, "p1") }()
	<-entered

	// speculative state is visible while the request is pending
	assertLikeState(t, f.feed, "p1", 6, true)
	if !f.engine.InFlight("post:p1") {
		t.Fatalf("expected p1 to be in flight")
	}

	if err := f.engine.TogglePostLike(context.Background(), f.feed, "p1"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second tap: got %v, want ErrInFlight", err)
	}
	assertLikeState(t, f.feed, "p1", 6, true)

	// other targets are independent
	if err := f.engine.TogglePostLike(context.Background(), f.feed, "p2"); err != nil {
		t.Fatalf("p2 like: %v", err)
	}
	assertLikeState(t, f.feed, "p2", 2, true)

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("p1 like: %v", err)
	}
	if f.mock.Calls("LikePost") != 2 {
		t.Fatalf("expected 2 LikePost calls (p1, p2), got %d", f.mock.Calls("LikePost"))
	}
	assertLikeState(t, f.feed, "p1", 6, true)
	if f.engine.InFlight("post:p1") {
		t.Fatalf("guard not released")
	}
}

func TestTogglePostLikeConflictReconciles(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	// liked from another device after our last read
	f.mock.SetPostLikes("p1", 6, true)

	err := f.engine.TogglePostLike(context.Background(), f.feed, "p1")
	if !api.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	assertLikeState(t, f.feed, "p1", 6, true)

	notices := f.notices.Notices()
	if len(notices) != 1 || notices[0].Severity != notify.Info {
		t.Fatalf("expected a single info notice, got %+v", notices)
	}
	if f.postLikedEvents() != 0 {
		t.Fatalf("conflict must not publish post_liked")
	}
}

func TestTogglePostLikeServerErrorTakesServerState(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	f.mock.Hook = func(ctx context.Context, method, id string) error {
		if method == "LikePost" {
			return &api.Error{Status: http.StatusInternalServerError}
		}
		return nil
	}

	if err := f.engine.TogglePostLike(context.Background(), f.feed, "p1"); err == nil {
		t.Fatalf("expected error")
	}
	assertLikeState(t, f.feed, "p1", 5, false)
	if n, _ := f.notices.Last(); n.Severity != notify.Error {
		t.Fatalf("expected error notice, got %+v", n)
	}
	if f.mock.Calls("GetPost") != 1 {
		t.Fatalf("expected one reconciling fetch, got %d", f.mock.Calls("GetPost"))
	}
}

func TestTogglePostLikeOfflineRevertsLocally(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	f.mock.Hook = func(ctx context.Context, method, id string) error {
		return fmt.Errorf("dial tcp: %w", api.ErrNetwork)
	}

	err := f.engine.TogglePostLike(context.Background(), f.feed, "p1")
	if !errors.Is(err, api.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	assertLikeState(t, f.feed, "p1", 5, false)

	notices := f.notices.Notices()
	if len(notices) != 1 || notices[0].Severity != notify.Error {
		t.Fatalf("expected a single error notice, got %+v", notices)
	}
}

func TestUnlikeNeverGoesNegative(t *testing.T) {
	f := newFixture(t, rawPost("p1", 0, true))
	if err := f.engine.TogglePostLike(context.Background(), f.feed, "p1"); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	assertLikeState(t, f.feed, "p1", 0, false)
}

func TestToggleUnknownPost(t *testing.T) {
	f := newFixture(t)
	err := f.engine.TogglePostLike(context.Background(), f.feed, "missing")
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
	if f.mock.Calls("LikePost") != 0 || f.mock.Calls("GetPost") != 0 {
		t.Fatalf("unknown target must not call the server")
	}
	notices := f.notices.Notices()
	if len(notices) != 1 || notices[0].Severity != notify.Warning {
		t.Fatalf("expected a single warning notice, got %+v", notices)
	}
}

func TestPerScreenCopiesAreIndependent(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	profile := store.New(f.mock.ListPosts)
	if err := profile.Refresh(context.Background()); err != nil {
		t.Fatalf("profile refresh: %v", err)
	}

	if err := f.engine.TogglePostLike(context.Background(), profile, "p1"); err != nil {
		t.Fatalf("like: %v", err)
	}
	assertLikeState(t, profile, "p1", 6, true)
	assertLikeState(t, f.feed, "p1", 5, false)
}

func TestNextLikeState(t *testing.T) {
	cases := []struct {
		count     int
		liked     bool
		wantCount int
		wantLiked bool
	}{
		{5, false, 6, true},
		{6, true, 5, false},
		{0, true, 0, false},
		{0, false, 1, true},
	}
	for _, c := range cases {
		n, l := nextLikeState(c.count, c.liked)
		if n != c.wantCount || l != c.wantLiked {
			t.Fatalf("nextLikeState(%d,%v) = (%d,%v)", c.count, c.liked, n, l)
		}
	}
}

func TestDeletePostRemovesFromHolder(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false), rawPost("p2", 0, false))
	updated := 0
	f.bus.Subscribe(events.PostUpdated, func(events.Event) { updated++ })

	if err := f.engine.DeletePost(context.Background(), f.feed, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := f.feed.Post("p1"); ok {
		t.Fatalf("p1 still in feed")
	}
	if f.feed.Len() != 1 || updated != 1 {
		t.Fatalf("len=%d updated=%d", f.feed.Len(), updated)
	}
}

func TestDeletePostFailureKeepsPost(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	f.mock.Hook = func(ctx context.Context, method, id string) error {
		if method == "DeletePost" {
			return &api.Error{Status: http.StatusForbidden, Message: "not your post"}
		}
		return nil
	}
	if err := f.engine.DeletePost(context.Background(), f.feed, "p1"); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := f.feed.Post("p1"); !ok {
		t.Fatalf("post removed despite failure")
	}
	if n, _ := f.notices.Last(); n.Message != "not your post" {
		t.Fatalf("expected server message in notice, got %q", n.Message)
	}
}

func TestLikeDoesNotScheduleFeedRefresh(t *testing.T) {
	f := newFixture(t, rawPost("p1", 5, false))
	s := scheduler.New(f.bus, f.feed, scheduler.Options{Delay: 5 * time.Millisecond})
	defer s.Stop()

	if err := f.engine.TogglePostLike(context.Background(), f.feed, "p1"); err != nil {
		t.Fatalf("like: %v", err)
	}
	// post_liked does not invalidate the feed
	if s.Pending() != 0 {
		t.Fatalf("like must not schedule a re-fetch")
	}
	assertLikeState(t, f.feed, "p1", 6, true)
}
