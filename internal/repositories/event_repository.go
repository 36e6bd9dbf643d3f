package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sjnosa/connect/internal/models"
	"gorm.io/gorm"
)

// EventRepository defines the interface for school event operations
type EventRepository interface {
	CreateEvent(ctx context.Context, event *models.SchoolEvent) error
	GetUpcoming(ctx context.Context, after time.Time, limit int) ([]models.SchoolEvent, error)
}

type postgresEventRepository struct {
	db *gorm.DB
}

func NewPostgresEventRepository(db *gorm.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) CreateEvent(ctx context.Context, event *models.SchoolEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *postgresEventRepository) GetUpcoming(ctx context.Context, after time.Time, limit int) ([]models.SchoolEvent, error) {
	var events []models.SchoolEvent
	err := r.db.WithContext(ctx).
		Where("event_date >= ?", after).
		Order("event_date ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
