package models

import "time"

// Record is the unit the sync engine orders and renders: a chat message, feed post,
// comment or school event, either server-confirmed or optimistic.
type Record struct {
	ID            string    `json:"id"`
	TempID        string    `json:"temp_id,omitempty"`
	Scope         Scope     `json:"scope"`
	AuthorID      string    `json:"author_id"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Pending       bool      `json:"pending"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	LikedByMe     bool      `json:"liked_by_me"`
}

// Key returns the identifier the record is rendered under.
func (r Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.TempID
}

// SameWrite reports whether r and other carry the same logical write:
// same scope, author and content with creation times no more than window apart.
func (r Record) SameWrite(other Record, window time.Duration) bool {
	if r.Scope != other.Scope || r.AuthorID != other.AuthorID || r.Content != other.Content {
		return false
	}
	if r.ImageURL != other.ImageURL {
		return false
	}
	d := r.CreatedAt.Sub(other.CreatedAt)
	if d < 0 {
		d = -d
	}
	return d <= window
}
