// Package normalize turns partial server records into canonical models.
//
// Every ingestion point (feed refresh, single post fetch, per-user listing)
// goes through this package so that counters, flags and nested sequences
// always have a value.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/EllysonAlves/follower/internal/logger"
	"github.com/EllysonAlves/follower/internal/models"
)

var logg = logger.New()

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Posts normalizes a collection. Records without an identifier are dropped,
// so len(result) < len(raw) whenever malformed records were received.
func Posts(raw []models.RawPost) []models.Post {
	out := make([]models.Post, 0, len(raw))
	for _, r := range raw {
		p, ok := Post(r)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	if dropped := len(raw) - len(out); dropped > 0 {
		logg.Debug("normalize", "Dropped posts without id: "+strconv.Itoa(dropped))
	}
	return out
}

// Post normalizes one record; ok is false when the record has no id.
func Post(r models.RawPost) (models.Post, bool) {
	id := strings.TrimSpace(r.ID.String())
	if id == "" {
		return models.Post{}, false
	}

	comments := Comments(r.Comments)

	// comments_count wins when the server sends it; otherwise fall back to
	// whatever bodies came along (zero when none did).
	commentsCount := len(comments)
	if r.CommentsCount != nil {
		commentsCount = nonNegative(*r.CommentsCount)
	}

	return models.Post{
		ID:                 id,
		UserID:             r.UserID.String(),
		Author:             author(r.User, r.UserID, r.Username, r.Avatar),
		Photo:              r.Photo,
		Caption:            r.Caption,
		Created:            parseTime(r.CreatedAt),
		LikesCount:         count(r.LikesCount),
		LikedByCurrentUser: liked(r.LikedByAuthUser, r.IsLiked),
		CommentsCount:      commentsCount,
		Comments:           comments,
	}, true
}

func Comments(raw []models.RawComment) []models.Comment {
	out := make([]models.Comment, 0, len(raw))
	for _, r := range raw {
		if c, ok := Comment(r); ok {
			out = append(out, c)
		}
	}
	return out
}

func Comment(r models.RawComment) (models.Comment, bool) {
	id := strings.TrimSpace(r.ID.String())
	if id == "" {
		return models.Comment{}, false
	}
	replies := make([]models.Reply, 0, len(r.Replies))
	for _, rr := range r.Replies {
		if reply, ok := Reply(rr); ok {
			replies = append(replies, reply)
		}
	}
	return models.Comment{
		ID:                 id,
		PostID:             r.PostID.String(),
		Author:             author(r.User, r.UserID, r.Username, r.Avatar),
		Text:               r.Text,
		Created:            parseTime(r.CreatedAt),
		LikesCount:         count(r.LikesCount),
		LikedByCurrentUser: liked(r.LikedByAuthUser, r.IsLiked),
		Replies:            replies,
	}, true
}

func Reply(r models.RawReply) (models.Reply, bool) {
	id := strings.TrimSpace(r.ID.String())
	if id == "" {
		return models.Reply{}, false
	}
	return models.Reply{
		ID:                 id,
		CommentID:          r.CommentID.String(),
		Author:             author(r.User, r.UserID, r.Username, r.Avatar),
		Text:               r.Text,
		Created:            parseTime(r.CreatedAt),
		LikesCount:         count(r.LikesCount),
		LikedByCurrentUser: liked(r.LikedByAuthUser, nil),
	}, true
}

func author(u *models.RawUser, userID models.ID, username string, avatar *string) models.Author {
	a := models.Author{ID: userID.String(), Username: username}
	if avatar != nil {
		a.Avatar = *avatar
	}
	if u == nil {
		return a
	}
	if u.ID != "" {
		a.ID = u.ID.String()
	}
	if u.Username != "" {
		a.Username = u.Username
	}
	if u.Avatar != nil {
		a.Avatar = *u.Avatar
	}
	return a
}

func count(n *int) int {
	if n == nil {
		return 0
	}
	return nonNegative(*n)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func liked(flags ...*bool) bool {
	for _, f := range flags {
		if f != nil && *f {
			return true
		}
	}
	return false
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
