package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/EllysonAlves/follower/internal/models"
)

// Hook runs at the start of every MockAPI call. A non-nil error is returned
// to the caller instead of executing the call; blocking in the hook keeps the
// call in flight.
type Hook func(ctx context.Context, method, id string) error

// MockAPI is an in-memory backend for tests. Likes and comments are applied
// immediately, so every read after a write is consistent.
type MockAPI struct {
	mu sync.Mutex

	posts       []*models.RawPost
	follows     map[string]map[string]bool // follower -> followee
	users       map[string]models.User
	CurrentUser string
	Token       string
	Hook        Hook

	calls  map[string]int
	nextID int
}

// NewMock initializes an empty mock backend acting as currentUser.
func NewMock(currentUser string) *MockAPI {
	return &MockAPI{
		follows:     make(map[string]map[string]bool),
		users:       make(map[string]models.User),
		CurrentUser: currentUser,
		Token:       "mock-token",
		calls:       make(map[string]int),
	}
}

// AddPost seeds a post; counters and flags are stored as given.
func (m *MockAPI) AddPost(p models.RawPost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.posts = append(m.posts, &cp)
}

func (m *MockAPI) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID.String()] = u
}

// Calls returns how many times method was invoked, including failed calls.
func (m *MockAPI) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Snapshot returns the stored raw post.
func (m *MockAPI) Snapshot(postID string) (models.RawPost, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPost(postID)
	if p == nil {
		return models.RawPost{}, false
	}
	return clonePost(p), true
}

// SetPostLikes overwrites server-side like state, e.g. to simulate another device.
func (m *MockAPI) SetPostLikes(postID string, count int, liked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.findPost(postID); p != nil {
		p.LikesCount = &count
		p.LikedByAuthUser = &liked
	}
}

func (m *MockAPI) enter(ctx context.Context, method, id string) error {
	m.mu.Lock()
	m.calls[method]++
	hook := m.Hook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, method, id); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// --- Auth ---

func (m *MockAPI) Login(ctx context.Context, login, password string) (*models.AuthResponse, error) {
	if err := m.enter(ctx, "Login", login); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[m.CurrentUser]
	if !ok {
		u = models.User{ID: models.ID(m.CurrentUser), Username: login}
	}
	return &models.AuthResponse{Status: http.StatusOK, Token: m.Token, User: &u}, nil
}

func (m *MockAPI) Logout(ctx context.Context) error {
	return m.enter(ctx, "Logout", "")
}

// --- Posts ---

func (m *MockAPI) ListPosts(ctx context.Context) ([]models.RawPost, error) {
	if err := m.enter(ctx, "ListPosts", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RawPost, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, clonePost(p))
	}
	return out, nil
}

func (m *MockAPI) GetPost(ctx context.Context, postID string) (models.RawPost, error) {
	if err := m.enter(ctx, "GetPost", postID); err != nil {
		return models.RawPost{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPost(postID)
	if p == nil {
		return models.RawPost{}, notFound("post")
	}
	return clonePost(p), nil
}

func (m *MockAPI) PostsByUser(ctx context.Context, userID string) ([]models.RawPost, error) {
	if err := m.enter(ctx, "PostsByUser", userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RawPost
	for _, p := range m.posts {
		if p.UserID.String() == userID {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (m *MockAPI) DeletePost(ctx context.Context, postID string) error {
	if err := m.enter(ctx, "DeletePost", postID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.posts {
		if p.ID.String() == postID {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return notFound("post")
}

func (m *MockAPI) LikePost(ctx context.Context, postID string) error {
	return m.togglePost(ctx, "LikePost", postID, true)
}

func (m *MockAPI) UnlikePost(ctx context.Context, postID string) error {
	return m.togglePost(ctx, "UnlikePost", postID, false)
}

func (m *MockAPI) togglePost(ctx context.Context, method, postID string, like bool) error {
	if err := m.enter(ctx, method, postID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPost(postID)
	if p == nil {
		return notFound("post")
	}
	likes, liked := deref(p.LikesCount), derefBool(p.LikedByAuthUser)
	next, err := applyLike(likes, liked, like)
	if err != nil {
		return err
	}
	p.LikesCount, p.LikedByAuthUser = &next, &like
	return nil
}

// --- Comments and replies ---

func (m *MockAPI) CreateComment(ctx context.Context, body models.CreateComment) error {
	if err := m.enter(ctx, "CreateComment", body.PostID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findPost(body.PostID)
	if p == nil {
		return notFound("post")
	}
	m.nextID++
	p.Comments = append(p.Comments, models.RawComment{
		ID:     models.ID(fmt.Sprintf("c%d", m.nextID)),
		PostID: p.ID,
		UserID: models.ID(body.UserID),
		Text:   body.Text,
	})
	n := deref(p.CommentsCount) + 1
	p.CommentsCount = &n
	return nil
}

func (m *MockAPI) DeleteComment(ctx context.Context, commentID string) error {
	if err := m.enter(ctx, "DeleteComment", commentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		for i, c := range p.Comments {
			if c.ID.String() == commentID {
				p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
				n := deref(p.CommentsCount) - 1
				if n < 0 {
					n = 0
				}
				p.CommentsCount = &n
				return nil
			}
		}
	}
	return notFound("comment")
}

func (m *MockAPI) CreateReply(ctx context.Context, body models.CreateReply) error {
	if err := m.enter(ctx, "CreateReply", body.CommentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findComment(body.CommentID)
	if c == nil {
		return notFound("comment")
	}
	m.nextID++
	c.Replies = append(c.Replies, models.RawReply{
		ID:        models.ID(fmt.Sprintf("r%d", m.nextID)),
		CommentID: c.ID,
		UserID:    models.ID(m.CurrentUser),
		Text:      body.Text,
	})
	return nil
}

func (m *MockAPI) DeleteReply(ctx context.Context, replyID string) error {
	if err := m.enter(ctx, "DeleteReply", replyID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		for ci := range p.Comments {
			c := &p.Comments[ci]
			for i, r := range c.Replies {
				if r.ID.String() == replyID {
					c.Replies = append(c.Replies[:i], c.Replies[i+1:]...)
					return nil
				}
			}
		}
	}
	return notFound("reply")
}

func (m *MockAPI) LikeComment(ctx context.Context, commentID string) error {
	return m.toggleComment(ctx, "LikeComment", commentID, true)
}

func (m *MockAPI) UnlikeComment(ctx context.Context, commentID string) error {
	return m.toggleComment(ctx, "UnlikeComment", commentID, false)
}

// toggleComment serves comments and replies through the same endpoint.
func (m *MockAPI) toggleComment(ctx context.Context, method, id string, like bool) error {
	if err := m.enter(ctx, method, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.findComment(id); c != nil {
		next, err := applyLike(deref(c.LikesCount), derefBool(c.LikedByAuthUser), like)
		if err != nil {
			return err
		}
		c.LikesCount, c.LikedByAuthUser = &next, &like
		return nil
	}
	if r := m.findReply(id); r != nil {
		next, err := applyLike(deref(r.LikesCount), derefBool(r.LikedByAuthUser), like)
		if err != nil {
			return err
		}
		r.LikesCount, r.LikedByAuthUser = &next, &like
		return nil
	}
	return notFound("comment")
}

// --- Follow graph ---

func (m *MockAPI) Follow(ctx context.Context, userID string) error {
	if err := m.enter(ctx, "Follow", userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.follows[m.CurrentUser] == nil {
		m.follows[m.CurrentUser] = make(map[string]bool)
	}
	if m.follows[m.CurrentUser][userID] {
		return &Error{Status: http.StatusConflict, Message: "already following"}
	}
	m.follows[m.CurrentUser][userID] = true
	return nil
}

func (m *MockAPI) Unfollow(ctx context.Context, userID string) error {
	if err := m.enter(ctx, "Unfollow", userID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.follows[m.CurrentUser][userID] {
		return notFound("follow")
	}
	delete(m.follows[m.CurrentUser], userID)
	return nil
}

// SetFollow seeds an edge follower -> followee.
func (m *MockAPI) SetFollow(follower, followee string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.follows[follower] == nil {
		m.follows[follower] = make(map[string]bool)
	}
	m.follows[follower][followee] = true
}

func (m *MockAPI) Followers(ctx context.Context, userID string) ([]models.User, error) {
	if err := m.enter(ctx, "Followers", userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for follower, set := range m.follows {
		if set[userID] {
			out = append(out, m.user(follower))
		}
	}
	return out, nil
}

func (m *MockAPI) Following(ctx context.Context, userID string) ([]models.User, error) {
	if err := m.enter(ctx, "Following", userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for followee := range m.follows[userID] {
		out = append(out, m.user(followee))
	}
	return out, nil
}

func (m *MockAPI) FollowStatus(ctx context.Context, userID string) (bool, error) {
	if err := m.enter(ctx, "FollowStatus", userID); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follows[m.CurrentUser][userID], nil
}

// --- helpers ---

func (m *MockAPI) user(id string) models.User {
	if u, ok := m.users[id]; ok {
		return u
	}
	return models.User{ID: models.ID(id), Username: "user" + id}
}

func (m *MockAPI) findPost(id string) *models.RawPost {
	for _, p := range m.posts {
		if p.ID.String() == id {
			return p
		}
	}
	return nil
}

func (m *MockAPI) findComment(id string) *models.RawComment {
	for _, p := range m.posts {
		for i := range p.Comments {
			if p.Comments[i].ID.String() == id {
				return &p.Comments[i]
			}
		}
	}
	return nil
}

func (m *MockAPI) findReply(id string) *models.RawReply {
	for _, p := range m.posts {
		for ci := range p.Comments {
			for ri := range p.Comments[ci].Replies {
				if p.Comments[ci].Replies[ri].ID.String() == id {
					return &p.Comments[ci].Replies[ri]
				}
			}
		}
	}
	return nil
}

func applyLike(count int, liked, like bool) (int, error) {
	if liked == like {
		return count, &Error{Status: http.StatusConflict, Message: "already applied"}
	}
	if like {
		return count + 1, nil
	}
	if count > 0 {
		count--
	}
	return count, nil
}

func clonePost(p *models.RawPost) models.RawPost {
	cp := *p
	cp.LikesCount = copyInt(p.LikesCount)
	cp.CommentsCount = copyInt(p.CommentsCount)
	cp.LikedByAuthUser = copyBool(p.LikedByAuthUser)
	if p.Comments != nil {
		cp.Comments = make([]models.RawComment, len(p.Comments))
		for i, c := range p.Comments {
			c.LikesCount = copyInt(c.LikesCount)
			c.LikedByAuthUser = copyBool(c.LikedByAuthUser)
			if c.Replies != nil {
				replies := make([]models.RawReply, len(c.Replies))
				for j, r := range c.Replies {
					r.LikesCount = copyInt(r.LikesCount)
					r.LikedByAuthUser = copyBool(r.LikedByAuthUser)
					replies[j] = r
				}
				c.Replies = replies
			}
			cp.Comments[i] = c
		}
	}
	return cp
}

func copyInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func notFound(what string) error {
	return &Error{Status: http.StatusNotFound, Message: what + " not found"}
}

// ---------------------------------------------
// MockAPIFail fails every call as if the device were offline.
type MockAPIFail struct{}

func offline(method string) error {
	return fmt.Errorf("mock %s: %w", method, ErrNetwork)
}

func (MockAPIFail) Login(context.Context, string, string) (*models.AuthResponse, error) {
	return nil, offline("login")
}
func (MockAPIFail) Logout(context.Context) error { return offline("logout") }
func (MockAPIFail) ListPosts(context.Context) ([]models.RawPost, error) {
	return nil, offline("list posts")
}
func (MockAPIFail) GetPost(context.Context, string) (models.RawPost, error) {
	return models.RawPost{}, offline("get post")
}
func (MockAPIFail) PostsByUser(context.Context, string) ([]models.RawPost, error) {
	return nil, offline("posts by user")
}
func (MockAPIFail) DeletePost(context.Context, string) error { return offline("delete post") }
func (MockAPIFail) LikePost(context.Context, string) error   { return offline("like post") }
func (MockAPIFail) UnlikePost(context.Context, string) error { return offline("unlike post") }
func (MockAPIFail) CreateComment(context.Context, models.CreateComment) error {
	return offline("create comment")
}
func (MockAPIFail) DeleteComment(context.Context, string) error { return offline("delete comment") }
func (MockAPIFail) LikeComment(context.Context, string) error   { return offline("like comment") }
func (MockAPIFail) UnlikeComment(context.Context, string) error { return offline("unlike comment") }
func (MockAPIFail) CreateReply(context.Context, models.CreateReply) error {
	return offline("create reply")
}
func (MockAPIFail) DeleteReply(context.Context, string) error { return offline("delete reply") }
func (MockAPIFail) Follow(context.Context, string) error      { return offline("follow") }
func (MockAPIFail) Unfollow(context.Context, string) error    { return offline("unfollow") }
func (MockAPIFail) Followers(context.Context, string) ([]models.User, error) {
	return nil, offline("followers")
}
func (MockAPIFail) Following(context.Context, string) ([]models.User, error) {
	return nil, offline("following")
}
func (MockAPIFail) FollowStatus(context.Context, string) (bool, error) {
	return false, offline("follow status")
}
