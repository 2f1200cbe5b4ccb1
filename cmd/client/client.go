package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/engine"
	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/follow"
	config "github.com/EllysonAlves/follower/internal/init"
	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/middleware"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/notify"
	"github.com/EllysonAlves/follower/internal/scheduler"
	"github.com/EllysonAlves/follower/internal/store"
)

var logg = logger.New()

// ErrNoUserID means login succeeded but neither the response nor the token
// names the user.
var ErrNoUserID = errors.New("login response carries no user id")

// App wires the feed store, the invalidation bus, the delayed re-fetch and
// the mutation engine for one signed-in user.
type App struct {
	cfg      *config.Config
	api      api.Interface
	notifier notify.Notifier
	userID   string

	bus    *events.Bus
	feed   *store.Store
	sched  *scheduler.Scheduler
	engine *engine.Engine
	follow *follow.Service
}

// New builds the components in dependency order.
func New(cfg *config.Config, remote api.Interface, notifier notify.Notifier, userID string) *App {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	a := &App{cfg: cfg, api: remote, notifier: notifier, userID: userID}

	a.bus = events.New()
	a.feed = store.New(remote.ListPosts)
	a.sched = scheduler.New(a.bus, a.feed, scheduler.Options{
		Delay:       cfg.RefreshDelay,
		MaxAttempts: cfg.VerifyAttempts,
		MaxBackoff:  cfg.VerifyBackoffMax,
	})
	a.engine = engine.New(remote, a.bus, notifier, engine.Options{
		UserID:   userID,
		Feed:     a.feed,
		Expecter: a.sched,
	})
	a.follow = follow.New(remote, notifier, userID)
	return a
}

func (a *App) Feed() *store.Store     { return a.feed }
func (a *App) Bus() *events.Bus       { return a.bus }
func (a *App) Engine() *engine.Engine { return a.engine }

// Close tears the components down in reverse order.
func (a *App) Close() {
	a.sched.Stop()
	a.bus.Close()
	logg.Info("client", "Client closed")
}

// Run executes one mode and returns when it is done or ctx is cancelled.
func (a *App) Run(ctx context.Context, mode string) error {
	switch mode {
	case "feed":
		return a.showFeed(ctx)
	case "watch":
		return a.watch(ctx)
	case "like":
		return a.like(ctx)
	case "comment":
		return a.comment(ctx, "")
	case "reply":
		if a.cfg.ParentID == "" {
			return fmt.Errorf("reply needs PARENT_ID: %w", api.ErrValidation)
		}
		return a.comment(ctx, a.cfg.ParentID)
	case "follow":
		if a.cfg.TargetID == "" {
			return fmt.Errorf("follow needs TARGET_ID: %w", api.ErrValidation)
		}
		now, err := a.follow.Toggle(ctx, a.cfg.TargetID)
		if err != nil {
			return err
		}
		logg.Info("client", fmt.Sprintf("Following user %s: %v", a.cfg.TargetID, now))
		return nil
	case "followers":
		return a.followers(ctx)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func (a *App) showFeed(ctx context.Context) error {
	if err := a.feed.Refresh(ctx); err != nil {
		return err
	}
	for _, p := range a.feed.Posts() {
		logPost(p)
	}
	return nil
}

func (a *App) like(ctx context.Context) error {
	if a.cfg.TargetID == "" {
		return fmt.Errorf("like needs TARGET_ID: %w", api.ErrValidation)
	}
	if err := a.feed.Refresh(ctx); err != nil {
		return err
	}
	if err := a.engine.TogglePostLike(ctx, a.feed, a.cfg.TargetID); err != nil {
		return err
	}
	if p, ok := a.feed.Post(a.cfg.TargetID); ok {
		logPost(p)
	}
	return nil
}

// comment posts TEXT on TARGET_ID, or as a reply to parentID, then waits
// for the delayed feed re-fetch so the updated counter is visible.
func (a *App) comment(ctx context.Context, parentID string) error {
	if a.cfg.TargetID == "" {
		return fmt.Errorf("comment needs TARGET_ID: %w", api.ErrValidation)
	}
	th := engine.NewThread(a.api, a.cfg.TargetID)
	if err := th.Load(ctx); err != nil {
		return err
	}

	draft := engine.NewDraft(a.cfg.Text)
	var err error
	if parentID == "" {
		err = a.engine.AddComment(ctx, th, draft)
	} else {
		err = a.engine.AddReply(ctx, th, parentID, draft)
	}
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		a.sched.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p, ok := a.feed.Post(a.cfg.TargetID); ok {
		logPost(p)
	}
	return nil
}

func (a *App) followers(ctx context.Context) error {
	id := a.cfg.TargetID
	if id == "" {
		id = a.userID
	}
	users, err := a.follow.Followers(ctx, id)
	if err != nil {
		return err
	}
	for _, u := range users {
		logg.Info("client", "Follower "+u.ID.String()+" @"+u.Username)
	}
	return nil
}

// watch keeps the feed fresh until ctx is cancelled. Invalidation events
// refresh it through the scheduler; WatchInterval adds a periodic refresh.
func (a *App) watch(ctx context.Context) error {
	unsubscribe := a.feed.Subscribe(func(posts []models.Post) {
		logg.Info("client", fmt.Sprintf("Feed changed: %d posts", len(posts)))
	})
	defer unsubscribe()

	var retry int
	for {
		wait := a.cfg.WatchInterval
		if err := a.feed.Refresh(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			wait = time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			retry++
		} else {
			retry = 0
		}

		if a.cfg.WatchInterval <= 0 && retry == 0 {
			<-ctx.Done()
			break
		}
		if !waitWithContext(ctx, wait) {
			break
		}
	}
	logg.Info("client", "Watch stopped")
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func logPost(p models.Post) {
	logg.Info("client", fmt.Sprintf("Post %s by @%s: %d likes (liked: %v), %d comments",
		p.ID, p.Author.Username, p.LikesCount, p.LikedByCurrentUser, p.CommentsCount))
}

// Authenticate makes sure tokens holds a usable bearer token and returns the
// user id it belongs to. A configured token wins; otherwise it logs in.
func Authenticate(ctx context.Context, cfg *config.Config, remote api.Interface, tokens middleware.TokenStore) (string, error) {
	token, _ := tokens.Token()
	if token == "" && cfg.APIToken != "" {
		token = cfg.APIToken
		if err := tokens.SetToken(token); err != nil {
			return "", err
		}
	}

	if token != "" && !middleware.TokenExpired(token, time.Now()) {
		if id, ok := middleware.UserIDFromToken(token); ok {
			return id, nil
		}
	}

	if cfg.APILogin == "" {
		if token == "" {
			return "", errors.New("no API_TOKEN and no API_LOGIN configured")
		}
		return "", errors.New("token carries no usable user id and no API_LOGIN is configured")
	}

	resp, err := remote.Login(ctx, cfg.APILogin, cfg.APIPassword)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.User != nil && resp.User.ID != "" {
		return resp.User.ID.String(), nil
	}
	if id, ok := middleware.UserIDFromToken(resp.Token); ok {
		return id, nil
	}
	return "", ErrNoUserID
}
