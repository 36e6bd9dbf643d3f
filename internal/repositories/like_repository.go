package repositories

import (
	"context"
	"time"

	"github.com/sjnosa/connect/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	// CreateLike stores like and reports false if the user already liked the post.
	CreateLike(ctx context.Context, like *models.Like) (bool, error)
	// DeleteLike removes the like and reports false if there was none.
	DeleteLike(ctx context.Context, postID, userID string) (bool, error)
	GetLikedPostIDs(ctx context.Context, userID string) ([]string, error)
	HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error)
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike creates a new like in PostgreSQL
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) (bool, error) {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteLike deletes a like from PostgreSQL
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetLikedPostIDs retrieves the IDs of every post the user has liked
func (r *PostgresLikeRepository) GetLikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("user_id = ?", userID).Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
