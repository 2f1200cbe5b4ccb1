package models

import "time"

// --- Canonical shapes (output of the normalizer) ---

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Post struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Author             Author    `json:"author"`
	Photo              string    `json:"photo"`
	Caption            string    `json:"caption"`
	Created            time.Time `json:"created_at"`
	LikesCount         int       `json:"likes_count"`
	LikedByCurrentUser bool      `json:"liked_by_current_user"`
	// CommentsCount may differ from len(Comments): the feed endpoint often
	// returns the count without the comment bodies.
	CommentsCount int       `json:"comments_count"`
	Comments      []Comment `json:"comments"`
}

type Comment struct {
	ID                 string    `json:"id"`
	PostID             string    `json:"post_id"`
	Author             Author    `json:"author"`
	Text               string    `json:"text"`
	Created            time.Time `json:"created_at"`
	LikesCount         int       `json:"likes_count"`
	LikedByCurrentUser bool      `json:"liked_by_current_user"`
	Replies            []Reply   `json:"replies"`
}

type Reply struct {
	ID                 string    `json:"id"`
	CommentID          string    `json:"comment_id"`
	Author             Author    `json:"author"`
	Text               string    `json:"text"`
	Created            time.Time `json:"created_at"`
	LikesCount         int       `json:"likes_count"`
	LikedByCurrentUser bool      `json:"liked_by_current_user"`
}

type User struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio,omitempty"`
}

// Clone returns a deep copy so holders can hand out snapshots safely.
func (p Post) Clone() Post {
	if p.Comments == nil {
		return p
	}
	comments := make([]Comment, len(p.Comments))
	for i, c := range p.Comments {
		comments[i] = c.Clone()
	}
	p.Comments = comments
	return p
}

func (c Comment) Clone() Comment {
	if c.Replies != nil {
		c.Replies = append([]Reply(nil), c.Replies...)
	}
	return c
}

// --- Raw server payloads (every optional field is a pointer) ---

type RawUser struct {
	ID       ID      `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

type RawPost struct {
	ID              ID           `json:"id"`
	UserID          ID           `json:"user_id"`
	Photo           string       `json:"photo"`
	Caption         string       `json:"caption"`
	CreatedAt       string       `json:"created_at"`
	User            *RawUser     `json:"user"`
	Username        string       `json:"username"`
	Avatar          *string      `json:"avatar"`
	LikesCount      *int         `json:"likes_count"`
	CommentsCount   *int         `json:"comments_count"`
	IsLiked         *bool        `json:"is_liked"`
	LikedByAuthUser *bool        `json:"liked_by_auth_user"`
	Comments        []RawComment `json:"comments"`
}

type RawComment struct {
	ID              ID         `json:"id"`
	UserID          ID         `json:"user_id"`
	PostID          ID         `json:"post_id"`
	Text            string     `json:"text"`
	CreatedAt       string     `json:"created_at"`
	User            *RawUser   `json:"user"`
	Username        string     `json:"username"`
	Avatar          *string    `json:"avatar"`
	LikesCount      *int       `json:"likes_count"`
	IsLiked         *bool      `json:"is_liked"`
	LikedByAuthUser *bool      `json:"liked_by_auth_user"`
	Replies         []RawReply `json:"replies"`
}

type RawReply struct {
	ID              ID       `json:"id"`
	CommentID       ID       `json:"comment_id"`
	UserID          ID       `json:"user_id"`
	Text            string   `json:"text"`
	CreatedAt       string   `json:"created_at"`
	User            *RawUser `json:"user"`
	Username        string   `json:"username"`
	Avatar          *string  `json:"avatar"`
	LikesCount      *int     `json:"likes_count"`
	LikedByAuthUser *bool    `json:"liked_by_auth_user"`
}

// --- Request / response bodies ---

type CreateComment struct {
	UserID string `json:"user_id"`
	PostID string `json:"post_id"`
	Text   string `json:"text"`
}

type CreateReply struct {
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
}

type AuthResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}
