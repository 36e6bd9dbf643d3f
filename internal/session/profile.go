package session

import (
	"context"
	"errors"

	"github.com/sjnosa/connect/internal/models"
)

// Profile returns the signed-in user's profile, or the fallback profile when no row exists.
func (s *Session) Profile(ctx context.Context) (*models.Profile, error) {
	p, err := s.backend.GetProfile(ctx, s.userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.FallbackProfile(s.userID, s.email), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Peers lists the profiles the user can open a conversation with.
func (s *Session) Peers(ctx context.Context) ([]models.Profile, error) {
	return s.backend.ListProfiles(ctx, s.userID)
}
