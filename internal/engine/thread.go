package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/normalize"
)

// PostFetcher loads one post with its nested comments and replies.
type PostFetcher interface {
	GetPost(ctx context.Context, postID string) (models.RawPost, error)
}

// Thread is the post detail state of one screen: a post with its comments
// and replies. It is a private copy and is not kept in sync with the feed.
type Thread struct {
	postID string
	remote PostFetcher

	mu     sync.Mutex
	post   models.Post
	loaded bool
}

func NewThread(remote PostFetcher, postID string) *Thread {
	return &Thread{postID: postID, remote: remote}
}

func (t *Thread) PostID() string { return t.postID }

// Load replaces the local state with the server's current version.
func (t *Thread) Load(ctx context.Context) error {
	raw, err := t.remote.GetPost(ctx, t.postID)
	if err != nil {
		return fmt.Errorf("load post %s: %w", t.postID, err)
	}
	p, ok := normalize.Post(raw)
	if !ok {
		return fmt.Errorf("load post %s: %w", t.postID, ErrUnknownTarget)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.post = p
	t.loaded = true
	return nil
}

func (t *Thread) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *Thread) Post() models.Post {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.post.Clone()
}

func (t *Thread) Comments() []models.Comment {
	return t.Post().Comments
}

func (t *Thread) Comment(id string) (models.Comment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.commentIndex(id); i >= 0 {
		return t.post.Comments[i].Clone(), true
	}
	return models.Comment{}, false
}

func (t *Thread) Reply(commentID, replyID string) (models.Reply, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ci := t.commentIndex(commentID)
	if ci < 0 {
		return models.Reply{}, false
	}
	for _, r := range t.post.Comments[ci].Replies {
		if r.ID == replyID {
			return r, true
		}
	}
	return models.Reply{}, false
}

func (t *Thread) setCommentLike(id string, count int, liked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.commentIndex(id); i >= 0 {
		t.post.Comments[i].LikesCount = count
		t.post.Comments[i].LikedByCurrentUser = liked
	}
}

func (t *Thread) setReplyLike(commentID, replyID string, count int, liked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ci := t.commentIndex(commentID)
	if ci < 0 {
		return
	}
	replies := t.post.Comments[ci].Replies
	for i := range replies {
		if replies[i].ID == replyID {
			replies[i].LikesCount = count
			replies[i].LikedByCurrentUser = liked
			return
		}
	}
}

func (t *Thread) commentIndex(id string) int {
	for i, c := range t.post.Comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}
