package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/models"
	"github.com/EllysonAlves/follower/internal/normalize"
)

var logg = logger.New()

// FetchFunc loads the raw collection a Store tracks.
type FetchFunc func(ctx context.Context) ([]models.RawPost, error)

// Listener receives a snapshot after every change.
type Listener func(posts []models.Post)

// StoreInterface is what screens and the mutation engine use.
type StoreInterface interface {
	Posts() []models.Post
	Post(id string) (models.Post, bool)
	Refresh(ctx context.Context) error
	Replace(posts []models.Post)
	SetLikeState(postID string, likesCount int, liked bool)
	SetCommentsCount(postID string, count int)
	Remove(postID string) bool
	Subscribe(fn Listener) (unsubscribe func())
}

var _ StoreInterface = (*Store)(nil)

// Store holds an ordered post collection. The feed owns one shared instance;
// profile and user screens create their own with a different FetchFunc and
// are never reconciled with the feed.
type Store struct {
	fetch FetchFunc

	mu        sync.Mutex
	posts     []models.Post
	index     map[string]int
	loading   bool
	refreshes int
	listeners map[int]Listener
	order     []int
	nextID    int
}

func New(fetch FetchFunc) *Store {
	return &Store{
		fetch:     fetch,
		index:     make(map[string]int),
		listeners: make(map[int]Listener),
	}
}

// Posts returns a copy of the current collection.
func (s *Store) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Post(id string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return models.Post{}, false
	}
	return s.posts[i].Clone(), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Refreshes reports how many fetches Refresh has completed successfully.
func (s *Store) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Refresh fetches, normalizes and replaces the whole collection. On error the
// previous collection is kept.
func (s *Store) Refresh(ctx context.Context) error {
	if s.fetch == nil {
		return errors.New("store has no fetch function")
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	raw, err := s.fetch(ctx)

	s.mu.Lock()
	s.loading = false
	if err == nil {
		s.refreshes++
	}
	s.mu.Unlock()

	if err != nil {
		logg.Error("store", "Failed to refresh posts", err)
		return fmt.Errorf("refresh posts: %w", err)
	}

	posts := normalize.Posts(raw)
	s.Replace(posts)
	logg.Debug("store", fmt.Sprintf("Refreshed %d posts (%d received)", len(posts), len(raw)))
	return nil
}

// Replace swaps the whole collection. Duplicate ids keep their first position.
func (s *Store) Replace(posts []models.Post) {
	s.mu.Lock()
	next := make([]models.Post, 0, len(posts))
	index := make(map[string]int, len(posts))
	for _, p := range posts {
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = len(next)
		next = append(next, p.Clone())
	}
	s.posts = next
	s.index = index
	s.mu.Unlock()

	s.notify()
}

// SetLikeState overwrites likes_count and liked_by_current_user of one post.
// Unknown ids are ignored.
func (s *Store) SetLikeState(postID string, likesCount int, liked bool) {
	s.update(postID, func(p *models.Post) {
		p.LikesCount = likesCount
		p.LikedByCurrentUser = liked
	})
}

// SetCommentsCount overwrites comments_count of one post. Unknown ids are ignored.
func (s *Store) SetCommentsCount(postID string, count int) {
	s.update(postID, func(p *models.Post) {
		p.CommentsCount = count
	})
}

// Remove deletes one post after an explicit delete; it reports whether the id was present.
func (s *Store) Remove(postID string) bool {
	s.mu.Lock()
	i, ok := s.index[postID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	next := make([]models.Post, 0, len(s.posts)-1)
	next = append(next, s.posts[:i]...)
	next = append(next, s.posts[i+1:]...)
	s.posts = next
	s.index = make(map[string]int, len(next))
	for j, p := range next {
		s.index[p.ID] = j
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) update(postID string, fn func(p *models.Post)) {
	s.mu.Lock()
	i, ok := s.index[postID]
	if !ok {
		s.mu.Unlock()
		logg.Debug("store", "Update ignored, post not tracked: "+postID)
		return
	}
	fn(&s.posts[i])
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	s.mu.Lock()
	if len(s.order) == 0 {
		s.mu.Unlock()
		return
	}
	fns := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (s *Store) snapshotLocked() []models.Post {
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}
