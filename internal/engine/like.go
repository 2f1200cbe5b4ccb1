package engine

import (
	"context"
	"fmt"

	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/normalize"
	"github.com/EllysonAlves/follower/internal/notify"
)

// likeTarget describes one likeable entity and where its state lives.
type likeTarget struct {
	key  string
	noun string

	read      func() (count int, liked bool, ok bool)
	apply     func(count int, liked bool)
	like      func(ctx context.Context) error
	unlike    func(ctx context.Context) error
	reconcile func(ctx context.Context) error
	onSuccess func()
}

// nextLikeState flips the flag and moves the counter by one. The counter
// never goes below zero even if the server sent a stale value.
func nextLikeState(count int, liked bool) (int, bool) {
	if liked {
		if count > 0 {
			count--
		}
		return count, false
	}
	return count + 1, true
}

func (e *Engine) toggle(ctx context.Context, t likeTarget) error {
	if !e.pending.acquire(t.key) {
		logg.Debug("engine", "Dropped like tap, request in flight for "+t.key)
		return ErrInFlight
	}
	defer e.pending.release(t.key)

	count, liked, ok := t.read()
	if !ok {
		e.notifier.Notify(notify.New(notify.Warning, "This "+t.noun+" is no longer available"))
		return fmt.Errorf("%s: %w", t.key, ErrUnknownTarget)
	}

	nextCount, nextLiked := nextLikeState(count, liked)
	t.apply(nextCount, nextLiked)

	call := t.like
	if liked {
		call = t.unlike
	}
	err := call(ctx)

	if err == nil {
		if rerr := t.reconcile(ctx); rerr != nil {
			// the server accepted the change, so the speculative value stands
			logg.Warn("engine", "Re-fetch after like failed for "+t.key, rerr)
		}
		if t.onSuccess != nil {
			t.onSuccess()
		}
		msg := "You liked this " + t.noun
		if liked {
			msg = "You removed your like from this " + t.noun
		}
		e.notifier.Notify(notify.New(notify.Success, msg))
		return nil
	}

	logg.Error("engine", "Like request failed for "+t.key, err)
	if rerr := t.reconcile(ctx); rerr != nil {
		logg.Error("engine", "Re-fetch after failed like failed, reverting locally for "+t.key, rerr)
		t.apply(count, liked)
	}

	conflict := "You already liked this " + t.noun
	if liked {
		conflict = "Your like on this " + t.noun + " was already removed"
	}
	e.notifier.Notify(notify.ForError(err, conflict, "Could not update the like on this "+t.noun))
	return err
}

// TogglePostLike likes or unlikes a post held by holder.
func (e *Engine) TogglePostLike(ctx context.Context, holder PostHolder, postID string) error {
	return e.toggle(ctx, likeTarget{
		key:  "post:" + postID,
		noun: "post",
		read: func() (int, bool, bool) {
			p, ok := holder.Post(postID)
			return p.LikesCount, p.LikedByCurrentUser, ok
		},
		apply: func(count int, liked bool) {
			holder.SetLikeState(postID, count, liked)
		},
		like:   func(ctx context.Context) error { return e.remote.LikePost(ctx, postID) },
		unlike: func(ctx context.Context) error { return e.remote.UnlikePost(ctx, postID) },
		reconcile: func(ctx context.Context) error {
			raw, err := e.remote.GetPost(ctx, postID)
			if err != nil {
				return err
			}
			p, ok := normalize.Post(raw)
			if !ok {
				return fmt.Errorf("post %s: %w", postID, ErrUnknownTarget)
			}
			holder.SetLikeState(postID, p.LikesCount, p.LikedByCurrentUser)
			return nil
		},
		onSuccess: func() { e.publish(events.PostLiked, postID) },
	})
}

// ToggleCommentLike likes or unlikes a comment in th.
func (e *Engine) ToggleCommentLike(ctx context.Context, th *Thread, commentID string) error {
	return e.toggle(ctx, likeTarget{
		key:  "comment:" + commentID,
		noun: "comment",
		read: func() (int, bool, bool) {
			c, ok := th.Comment(commentID)
			return c.LikesCount, c.LikedByCurrentUser, ok
		},
		apply: func(count int, liked bool) {
			th.setCommentLike(commentID, count, liked)
		},
		like:      func(ctx context.Context) error { return e.remote.LikeComment(ctx, commentID) },
		unlike:    func(ctx context.Context) error { return e.remote.UnlikeComment(ctx, commentID) },
		reconcile: th.Load,
	})
}

// ToggleReplyLike likes or unlikes a reply. The backend has no reply-like
// endpoint; replies go through the comment one with the reply id.
func (e *Engine) ToggleReplyLike(ctx context.Context, th *Thread, commentID, replyID string) error {
	return e.toggle(ctx, likeTarget{
		key:  "reply:" + replyID,
		noun: "reply",
		read: func() (int, bool, bool) {
			r, ok := th.Reply(commentID, replyID)
			return r.LikesCount, r.LikedByCurrentUser, ok
		},
		apply: func(count int, liked bool) {
			th.setReplyLike(commentID, replyID, count, liked)
		},
		like:      func(ctx context.Context) error { return e.remote.LikeComment(ctx, replyID) },
		unlike:    func(ctx context.Context) error { return e.remote.UnlikeComment(ctx, replyID) },
		reconcile: th.Load,
	})
}
