package models

import "time"

// Comment represents a comment on a feed post (PostgreSQL, table "feed_comments")
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PostID    string    `json:"post_id" gorm:"index"` // MongoDB ObjectID of the post as hex
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Comment) TableName() string { return "feed_comments" }

func (c *Comment) ToRecord() Record {
	return Record{
		ID:        c.ID,
		Scope:     CommentsScope(c.PostID),
		AuthorID:  c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}
