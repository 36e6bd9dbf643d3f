package session

import (
	"context"
	"errors"
	"time"

	"github.com/sjnosa/connect/internal/models"
)

var (
	ErrNoSession           = errors.New("session: no active session")
	ErrScopeInactive       = errors.New("session: scope is not active")
	ErrWriteRejected       = errors.New("session: write rejected")
	ErrReactionWriteFailed = errors.New("session: reaction write failed")
	ErrInvalidDraft        = errors.New("session: invalid draft")
)

// Backend is the storage side of the sync engine. Writes return the row as stored,
// with its server id and timestamp.
type Backend interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ListProfiles(ctx context.Context, excludeID string) ([]models.Profile, error)

	ListMessages(ctx context.Context, userA, userB string) ([]models.Message, error)
	SendMessage(ctx context.Context, msg *models.Message) error

	ListPosts(ctx context.Context, limit int64) ([]models.Post, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	CreatePost(ctx context.Context, post *models.Post) error
	LikedPostIDs(ctx context.Context, userID string) ([]string, error)
	HasLikedPost(ctx context.Context, postID, userID string) (bool, error)
	LikePost(ctx context.Context, postID, userID string) error
	UnlikePost(ctx context.Context, postID, userID string) error

	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error

	NextEvent(ctx context.Context, after time.Time) (*models.SchoolEvent, error)
}
