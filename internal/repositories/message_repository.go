package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sjnosa/connect/internal/models"
	"gorm.io/gorm"
)

// MessageRepository defines the interface for chat message operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetConversation(ctx context.Context, userA, userB string, limit int) ([]models.Message, error)
}

// PostgresMessageRepository implements MessageRepository for PostgreSQL
type PostgresMessageRepository struct {
	db *gorm.DB
}

// NewPostgresMessageRepository creates a new PostgresMessageRepository
func NewPostgresMessageRepository(db *gorm.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

// CreateMessage stores msg, assigning its ID and timestamp
func (r *PostgresMessageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetConversation retrieves the messages exchanged between two users, oldest first
func (r *PostgresMessageRepository) GetConversation(ctx context.Context, userA, userB string, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
