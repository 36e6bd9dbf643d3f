package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/middleware"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/repositories"
)

// DefaultTokenTTL is the lifetime of access tokens issued after a Firebase login.
const DefaultTokenTTL = 72 * time.Hour

// AuthHandler exchanges verified Firebase identities for local access tokens
type AuthHandler struct {
	profiles  repositories.ProfileRepository
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(profiles repositories.ProfileRepository, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		profiles:  profiles,
		jwtSecret: jwtSecret,
		tokenTTL:  DefaultTokenTTL,
	}
}

// RegisterAuthRoutes registers authentication routes. g must be guarded by FirebaseAuthMiddleware.
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/firebase-login", h.FirebaseLogin)
}

// LoginResponse carries the issued access token and the caller's profile
type LoginResponse struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

// FirebaseLogin creates the caller's profile on first sign-in and issues a local JWT
func (h *AuthHandler) FirebaseLogin(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)
	email := middleware.Email(c)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	profile, err := h.profiles.GetProfileByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		profile = models.FallbackProfile(userID, email)
		if token := middleware.FirebaseToken(c); token != nil {
			if name, ok := token.Claims["name"].(string); ok && name != "" {
				profile.FullName = &name
			}
		}
		err = h.profiles.UpsertProfile(ctx, profile)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, err := h.generateJWT(profile)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, Profile: profile})
}

// generateJWT signs an HS256 access token whose subject is the profile id
func (h *AuthHandler) generateJWT(profile *models.Profile) (string, error) {
	now := time.Now()
	claims := &models.JwtCustomClaims{
		Email: profile.Email,
		Role:  profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
