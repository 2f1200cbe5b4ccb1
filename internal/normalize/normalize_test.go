package normalize

import (
	"encoding/json"
	"testing"

	"github.com/EllysonAlves/follower/internal/models"
)

func decodePosts(t *testing.T, body string) []models.RawPost {
	t.Helper()
	var raw []models.RawPost
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return raw
}

func TestPostsDefaultsMissingFields(t *testing.T) {
	raw := decodePosts(t, `[
		{"id": "p1", "user_id": 3, "caption": "sunset"},
		{"id": 2, "likes_count": null, "comments_count": null, "liked_by_auth_user": null, "comments": null}
	]`)

	posts := Posts(raw)
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	for _, p := range posts {
		if p.LikesCount != 0 || p.CommentsCount != 0 || p.LikedByCurrentUser {
			t.Fatalf("counters not defaulted: %+v", p)
		}
		if p.Comments == nil {
			t.Fatalf("comments must be an empty sequence, got nil for %s", p.ID)
		}
	}
	if posts[1].ID != "2" {
		t.Fatalf("numeric id not converted: %q", posts[1].ID)
	}
}

func TestPostsDropsRecordsWithoutID(t *testing.T) {
	raw := decodePosts(t, `[{"id":"p1"},{"caption":"no id"},{"id":"  "},{"id":"p2"}]`)

	posts := Posts(raw)
	if len(posts) != 2 || len(raw) != 4 {
		t.Fatalf("expected 2 of 4 records to survive, got %d of %d", len(posts), len(raw))
	}
	if posts[0].ID != "p1" || posts[1].ID != "p2" {
		t.Fatalf("order not preserved: %+v", posts)
	}
}

func TestPostCounterInvariants(t *testing.T) {
	raw := decodePosts(t, `[{"id":"p1","likes_count":-3,"comments_count":-1,"is_liked":true}]`)

	p := Posts(raw)[0]
	if p.LikesCount != 0 || p.CommentsCount != 0 {
		t.Fatalf("negative counters must clamp to 0: %+v", p)
	}
	if !p.LikedByCurrentUser {
		t.Fatalf("is_liked should be honoured when liked_by_auth_user is absent")
	}
}

func TestCommentsCountResolution(t *testing.T) {
	raw := decodePosts(t, `[
		{"id":"explicit","comments_count":7,"comments":[{"id":"c1"}]},
		{"id":"derived","comments":[{"id":"c1"},{"id":"c2"}]}
	]`)

	posts := Posts(raw)
	if posts[0].CommentsCount != 7 || len(posts[0].Comments) != 1 {
		t.Fatalf("explicit count must win and may diverge from bodies: %+v", posts[0])
	}
	if posts[1].CommentsCount != 2 {
		t.Fatalf("expected count derived from bodies, got %d", posts[1].CommentsCount)
	}
}

func TestNestedCommentsAndReplies(t *testing.T) {
	raw := decodePosts(t, `[{
		"id":"p1",
		"user":{"id":9,"username":"ana","avatar":"a.png"},
		"created_at":"2025-03-01 10:20:30",
		"comments":[
			{"id":"c1","post_id":"p1","username":"bia","text":"nice","likes_count":2,"liked_by_auth_user":true,
			 "replies":[{"id":"r1","comment_id":"c1","text":"thanks"},{"text":"no id"}]},
			{"text":"comment without id"}
		]
	}]`)

	p := Posts(raw)[0]
	if p.Author.ID != "9" || p.Author.Username != "ana" || p.Author.Avatar != "a.png" {
		t.Fatalf("author not taken from nested user: %+v", p.Author)
	}
	if p.Created.IsZero() || p.Created.Hour() != 10 {
		t.Fatalf("timestamp not parsed: %v", p.Created)
	}
	if len(p.Comments) != 1 {
		t.Fatalf("expected 1 valid comment, got %d", len(p.Comments))
	}
	c := p.Comments[0]
	if c.Author.Username != "bia" || c.LikesCount != 2 || !c.LikedByCurrentUser {
		t.Fatalf("comment not normalized: %+v", c)
	}
	if len(c.Replies) != 1 || c.Replies[0].ID != "r1" || c.Replies[0].LikesCount != 0 {
		t.Fatalf("replies not normalized: %+v", c.Replies)
	}
}

func TestCommentRepliesNeverNil(t *testing.T) {
	c, ok := Comment(models.RawComment{ID: "c1"})
	if !ok {
		t.Fatalf("expected comment to be accepted")
	}
	if c.Replies == nil {
		t.Fatalf("replies must be an empty sequence")
	}
}

func TestUnparsableTimestampIsZero(t *testing.T) {
	p, _ := Post(models.RawPost{ID: "p1", CreatedAt: "yesterday"})
	if !p.Created.IsZero() {
		t.Fatalf("expected zero time, got %v", p.Created)
	}
}
