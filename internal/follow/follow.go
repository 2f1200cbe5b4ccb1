// Package follow manages the current user's follow relationships.
package follow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/EllysonAlves/follower/internal/api"
	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/notify"
)

var logg = logger.New()

// ErrInFlight is returned when a follow change for the same user is running.
var ErrInFlight = errors.New("follow change already in flight")

// ErrSelf rejects following yourself before any remote call.
var ErrSelf = fmt.Errorf("cannot follow yourself: %w", api.ErrValidation)

type Remote interface {
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	Followers(ctx context.Context, userID string) ([]models.User, error)
	Following(ctx context.Context, userID string) ([]models.User, error)
	FollowStatus(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	remote   Remote
	notifier notify.Notifier
	me       string

	mu      sync.Mutex
	pending map[string]struct{}
}

func New(remote Remote, notifier notify.Notifier, currentUserID string) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{
		remote:   remote,
		notifier: notifier,
		me:       currentUserID,
		pending:  make(map[string]struct{}),
	}
}

func (s *Service) acquire(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[userID]; busy {
		return false
	}
	s.pending[userID] = struct{}{}
	return true
}

func (s *Service) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
}

func (s *Service) Follow(ctx context.Context, userID string) error {
	return s.change(ctx, userID, true)
}

func (s *Service) Unfollow(ctx context.Context, userID string) error {
	return s.change(ctx, userID, false)
}

func (s *Service) change(ctx context.Context, userID string, follow bool) error {
	if userID == s.me {
		return ErrSelf
	}
	if !s.acquire(userID) {
		return ErrInFlight
	}
	defer s.release(userID)

	var err error
	if follow {
		err = s.remote.Follow(ctx, userID)
	} else {
		err = s.remote.Unfollow(ctx, userID)
	}
	if err != nil {
		logg.Error("follow", "Follow change failed for user "+userID, err)
		conflict := "You already follow this user"
		if !follow {
			conflict = "You no longer follow this user"
		}
		s.notifier.Notify(notify.ForError(err, conflict, "Could not update the follow"))
		return err
	}

	msg := "You are now following this user"
	if !follow {
		msg = "You unfollowed this user"
	}
	s.notifier.Notify(notify.New(notify.Success, msg))
	return nil
}

// Toggle follows or unfollows userID depending on the current status and
// returns the new status.
func (s *Service) Toggle(ctx context.Context, userID string) (bool, error) {
	following, err := s.IsFollowing(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := s.change(ctx, userID, !following); err != nil {
		if api.IsConflict(err) {
			return !following, err
		}
		return following, err
	}
	return !following, nil
}

// IsFollowing asks the status endpoint and falls back to scanning the
// target's followers for the current user.
func (s *Service) IsFollowing(ctx context.Context, userID string) (bool, error) {
	ok, err := s.remote.FollowStatus(ctx, userID)
	if err == nil {
		return ok, nil
	}
	logg.Warn("follow", "Follow status unavailable, scanning followers of "+userID, err)

	followers, ferr := s.remote.Followers(ctx, userID)
	if ferr != nil {
		return false, fmt.Errorf("follow status for %s: %w", userID, ferr)
	}
	for _, u := range followers {
		if u.ID.String() == s.me {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Followers(ctx context.Context, userID string) ([]models.User, error) {
	users, err := s.remote.Followers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("followers of %s: %w", userID, err)
	}
	return users, nil
}

func (s *Service) Following(ctx context.Context, userID string) ([]models.User, error) {
	users, err := s.remote.Following(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("following of %s: %w", userID, err)
	}
	return users, nil
}
