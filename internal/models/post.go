package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a feed post stored in MongoDB
type Post struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        string             `json:"user_id" bson:"user_id"`
	Content       string             `json:"content" bson:"content"`
	ImageURL      string             `json:"image_url,omitempty" bson:"image_url,omitempty"`
	LikesCount    int                `json:"likes_count" bson:"likes_count"`
	CommentsCount int                `json:"comments_count" bson:"comments_count"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

func (p *Post) ToRecord() Record {
	return Record{
		ID:            p.ID.Hex(),
		Scope:         FeedScope(),
		AuthorID:      p.UserID,
		Content:       p.Content,
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
	}
}

// CreatePostRequest defines the request body for creating a new post.
// A post needs text, an image, or both.
type CreatePostRequest struct {
	Content  string `json:"content" validate:"required_without=ImageURL,max=2000"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
}
