package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/middleware"
	"github.com/EllysonAlves/follower/internal/models"
)

var logg = logger.New()

// Interface is the remote service contract consumed by the client core.
type Interface interface {
	Login(ctx context.Context, login, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context) error

	ListPosts(ctx context.Context) ([]models.RawPost, error)
	GetPost(ctx context.Context, postID string) (models.RawPost, error)
	PostsByUser(ctx context.Context, userID string) ([]models.RawPost, error)
	DeletePost(ctx context.Context, postID string) error
	LikePost(ctx context.Context, postID string) error
	UnlikePost(ctx context.Context, postID string) error

	CreateComment(ctx context.Context, c models.CreateComment) error
	DeleteComment(ctx context.Context, commentID string) error
	// LikeComment and UnlikeComment also serve replies, keyed by the reply id.
	LikeComment(ctx context.Context, commentID string) error
	UnlikeComment(ctx context.Context, commentID string) error

	CreateReply(ctx context.Context, r models.CreateReply) error
	DeleteReply(ctx context.Context, replyID string) error

	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	Followers(ctx context.Context, userID string) ([]models.User, error)
	Following(ctx context.Context, userID string) ([]models.User, error)
	FollowStatus(ctx context.Context, userID string) (bool, error)
}

// Client talks JSON over HTTP to the follower backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  middleware.TokenStore
	now     func() time.Time
}

// New creates a Client. A zero timeout means 10s; a nil TokenStore means an in-memory one.
func New(baseURL string, timeout time.Duration, tokens middleware.TokenStore) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if tokens == nil {
		tokens = middleware.NewMemoryTokenStore("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: &middleware.BearerTransport{Tokens: tokens},
		},
		tokens: tokens,
		now:    time.Now,
	}
}

// envelope is the {status, message, data} wrapper some endpoints use.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message  string `json:"message"`
	Error    string `json:"error"`
	Messages struct {
		Error string `json:"error"`
	} `json:"messages"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logg.Error("api", "Request failed without response: "+method+" "+path, err)
		return networkError(method+" "+path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(method+" "+path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: errorMessage(data)}
		logg.Debug("api", fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decode(data, out)
}

// decode unwraps {"data": ...} when present, otherwise decodes the body as is.
func decode(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			trimmed = env.Data
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	switch {
	case body.Messages.Error != "":
		return body.Messages.Error
	case body.Message != "":
		return body.Message
	default:
		return body.Error
	}
}

// --- Auth ---

func (c *Client) Login(ctx context.Context, login, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/user/login", map[string]string{
		"login":    login,
		"password": password,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return nil, fmt.Errorf("login: store token: %w", err)
	}
	logg.Info("api", "Logged in")
	return &resp, nil
}

// Logout clears the stored token even when the remote call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/user/logout", nil, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// --- Posts ---

func (c *Client) ListPosts(ctx context.Context) ([]models.RawPost, error) {
	// t busts intermediate caches so refreshes see fresh counters.
	path := "/api/posts?t=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	return c.listPosts(ctx, path)
}

// listPosts decodes each element on its own; an element that does not fit
// RawPost is skipped instead of failing the whole list.
func (c *Client) listPosts(ctx context.Context, path string) ([]models.RawPost, error) {
	var items []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	posts := make([]models.RawPost, 0, len(items))
	for _, item := range items {
		var p models.RawPost
		if err := json.Unmarshal(item, &p); err != nil {
			logg.Debug("api", "Skipped malformed post record: "+err.Error())
			continue
		}
		posts = append(posts, p)
	}
	if dropped := len(items) - len(posts); dropped > 0 {
		logg.Debug("api", fmt.Sprintf("%s: dropped %d of %d post records", path, dropped, len(items)))
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (models.RawPost, error) {
	var post models.RawPost
	err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID), nil, &post)
	return post, err
}

func (c *Client) PostsByUser(ctx context.Context, userID string) ([]models.RawPost, error) {
	return c.listPosts(ctx, "/api/posts/user/"+url.PathEscape(userID))
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(postID), nil, nil)
}

func (c *Client) LikePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/api/post/like", map[string]string{"post_id": postID}, nil)
}

func (c *Client) UnlikePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/api/post/unlike", map[string]string{"post_id": postID}, nil)
}

// --- Comments and replies ---

func (c *Client) CreateComment(ctx context.Context, body models.CreateComment) error {
	return c.do(ctx, http.MethodPost, "/api/comments/create", body, nil)
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/delete/"+url.PathEscape(commentID), nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodPost, "/api/comment/like", map[string]string{"comment_id": commentID}, nil)
}

func (c *Client) UnlikeComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodPost, "/api/comment/unlike", map[string]string{"comment_id": commentID}, nil)
}

func (c *Client) CreateReply(ctx context.Context, body models.CreateReply) error {
	return c.do(ctx, http.MethodPost, "/api/replies/create", body, nil)
}

func (c *Client) DeleteReply(ctx context.Context, replyID string) error {
	return c.do(ctx, http.MethodDelete, "/api/replies/delete/"+url.PathEscape(replyID), nil, nil)
}

// --- Follow graph ---

func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/user/follow/"+url.PathEscape(userID), nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/user/unfollow/"+url.PathEscape(userID), nil, nil)
}

func (c *Client) Followers(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/user/followers/"+url.PathEscape(userID), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Following(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/user/following/"+url.PathEscape(userID), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) FollowStatus(ctx context.Context, userID string) (bool, error) {
	var status struct {
		IsFollowing bool `json:"isFollowing"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/user/follow-status/"+url.PathEscape(userID), nil, &status); err != nil {
		return false, err
	}
	return status.IsFollowing, nil
}
