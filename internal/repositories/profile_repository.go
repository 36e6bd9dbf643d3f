package repositories

import (
	"context"
	"errors"

	"github.com/sjnosa/connect/internal/models"
	"gorm.io/gorm"
)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfiles(ctx context.Context, excludeID string) ([]models.Profile, error)
	SearchProfiles(ctx context.Context, query string) ([]models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

// PostgresProfileRepository implements ProfileRepository for PostgreSQL
type PostgresProfileRepository struct {
	db *gorm.DB
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository
func NewPostgresProfileRepository(db *gorm.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// GetProfileByID retrieves a profile by user ID
func (r *PostgresProfileRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// GetProfiles retrieves every public profile except excludeID, ordered by name
func (r *PostgresProfileRepository) GetProfiles(ctx context.Context, excludeID string) ([]models.Profile, error) {
	var profiles []models.Profile
	q := r.db.WithContext(ctx).Where("is_public_profile = ?", true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Order("full_name").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// SearchProfiles searches public profiles by name or email
func (r *PostgresProfileRepository) SearchProfiles(ctx context.Context, query string) ([]models.Profile, error) {
	var profiles []models.Profile
	pattern := "%" + query + "%"
	if err := r.db.WithContext(ctx).
		Where("is_public_profile = ? AND (LOWER(full_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?))", true, pattern, pattern).
		Order("full_name").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpsertProfile creates or updates a profile
func (r *PostgresProfileRepository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// notFound maps gorm's missing-row error onto models.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
