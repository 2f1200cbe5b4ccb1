package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/EllysonAlves/follower/internal/events"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/notify"
)

// Draft is the text a user is typing for a comment or reply.
type Draft struct {
	mu   sync.Mutex
	text string
}

func NewDraft(text string) *Draft { return &Draft{text: text} }

func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Draft) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

func (d *Draft) Clear() { d.Set("") }

// AddComment posts the draft as a comment on the thread's post.
// A blank draft returns ErrEmptyText without calling the server.
func (e *Engine) AddComment(ctx context.Context, th *Thread, d *Draft) error {
	text := strings.TrimSpace(d.Text())
	if text == "" {
		return ErrEmptyText
	}
	return e.submit(ctx, th, d, "comment", func(ctx context.Context) error {
		return e.remote.CreateComment(ctx, models.CreateComment{
			UserID: e.userID(),
			PostID: th.PostID(),
			Text:   text,
		})
	})
}

// AddReply posts the draft as a reply to commentID.
func (e *Engine) AddReply(ctx context.Context, th *Thread, commentID string, d *Draft) error {
	text := strings.TrimSpace(d.Text())
	if text == "" {
		return ErrEmptyText
	}
	return e.submit(ctx, th, d, "reply", func(ctx context.Context) error {
		return e.remote.CreateReply(ctx, models.CreateReply{CommentID: commentID, Text: text})
	})
}

func (e *Engine) submit(ctx context.Context, th *Thread, d *Draft, noun string, create func(context.Context) error) error {
	key := "submit:" + th.PostID()
	if !e.pending.acquire(key) {
		return ErrInFlight
	}
	defer e.pending.release(key)

	if err := create(ctx); err != nil {
		logg.Error("engine", "Create "+noun+" failed for post "+th.PostID(), err)
		e.notifier.Notify(notify.ForError(err, "This "+noun+" was already posted", "Could not add the "+noun))
		return err
	}

	d.Clear()
	e.notifier.Notify(notify.New(notify.Success, "Your "+noun+" was added"))
	e.afterCommentChange(ctx, th, events.CommentAdded)
	return nil
}

// DeleteComment removes a comment and reloads the thread.
func (e *Engine) DeleteComment(ctx context.Context, th *Thread, commentID string) error {
	return e.remove(ctx, th, "comment", "comment:"+commentID, func(ctx context.Context) error {
		return e.remote.DeleteComment(ctx, commentID)
	})
}

// DeleteReply removes a reply and reloads the thread.
func (e *Engine) DeleteReply(ctx context.Context, th *Thread, replyID string) error {
	return e.remove(ctx, th, "reply", "reply:"+replyID, func(ctx context.Context) error {
		return e.remote.DeleteReply(ctx, replyID)
	})
}

func (e *Engine) remove(ctx context.Context, th *Thread, noun, key string, del func(context.Context) error) error {
	if !e.pending.acquire(key) {
		return ErrInFlight
	}
	defer e.pending.release(key)

	if err := del(ctx); err != nil {
		logg.Error("engine", "Delete "+noun+" failed", err)
		e.notifier.Notify(notify.ForError(err, "This "+noun+" was already deleted", "Could not delete the "+noun))
		return err
	}
	e.notifier.Notify(notify.New(notify.Success, "The "+noun+" was deleted"))
	e.afterCommentChange(ctx, th, events.PostUpdated)
	return nil
}

// afterCommentChange reloads the thread, copies its comments_count into the
// feed and publishes one invalidation event for other screens.
func (e *Engine) afterCommentChange(ctx context.Context, th *Thread, kind events.Kind) {
	postID := th.PostID()
	if err := th.Load(ctx); err != nil {
		logg.Warn("engine", "Reload after comment change failed for post "+postID, err)
	} else {
		count := th.Post().CommentsCount
		if e.opts.Feed != nil {
			e.opts.Feed.SetCommentsCount(postID, count)
		}
		if e.opts.Expecter != nil {
			e.opts.Expecter.Expect(postID, func(p models.Post, found bool) bool {
				if !found {
					return true
				}
				if kind == events.CommentAdded {
					return p.CommentsCount >= count
				}
				return p.CommentsCount <= count
			})
		}
	}
	e.publish(kind, postID)
}

// DeletePost deletes a post and drops it from holder.
func (e *Engine) DeletePost(ctx context.Context, holder PostHolder, postID string) error {
	key := "post:" + postID
	if !e.pending.acquire(key) {
		return ErrInFlight
	}
	defer e.pending.release(key)

	if err := e.remote.DeletePost(ctx, postID); err != nil {
		logg.Error("engine", "Delete post failed for "+postID, err)
		e.notifier.Notify(notify.ForError(err, "This post was already deleted", "Could not delete the post"))
		return err
	}
	holder.Remove(postID)
	if e.opts.Feed != nil && e.opts.Feed != holder {
		e.opts.Feed.Remove(postID)
	}
	e.notifier.Notify(notify.New(notify.Success, "The post was deleted"))
	e.publish(events.PostUpdated, postID)
	return nil
}
