package models

import "time"

// Like represents a like on a feed post (PostgreSQL, table "feed_likes")
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"index;uniqueIndex:idx_post_user_like"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;uniqueIndex:idx_post_user_like"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "feed_likes" }

// ReactionResponse is returned after a like toggle
type ReactionResponse struct {
	PostID     string `json:"post_id"`
	LikesCount int    `json:"likes_count"`
	LikedByMe  bool   `json:"liked_by_me"`
}
