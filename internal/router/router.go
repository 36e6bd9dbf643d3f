package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/sjnosa/connect/internal/handlers"
	"github.com/sjnosa/connect/internal/identity"
	"github.com/sjnosa/connect/internal/middleware"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/repositories"
	"github.com/sjnosa/connect/internal/session"
	"github.com/sjnosa/connect/pkg/config"
	"github.com/sjnosa/connect/validators"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Manager   *session.Manager
	Profiles  repositories.ProfileRepository
	Events    handlers.EventPublisher
	Resolver  *identity.Resolver
	Transport handlers.StateReporter
	JWTSecret string
	// Firebase enables /api/v1/auth/firebase-login when set.
	Firebase middleware.IDTokenVerifier
	AppName  string
	Logger   *slog.Logger
}

// AutoMigrate creates or updates the PostgreSQL tables
func AutoMigrate(pgdb *gorm.DB) error {
	return pgdb.AutoMigrate(
		&models.Profile{},
		&models.Message{},
		&models.Comment{},
		&models.Like{},
		&models.SchoolEvent{},
	)
}

// New builds the echo server with its middleware and routes
func New(deps Deps) *echo.Echo {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, deps.Logger)
	SetupRoutes(e, deps)
	return e
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	health := handlers.NewHealthHandler(deps.AppName, deps.Transport)
	e.GET("/health", health.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": deps.AppName})
	})

	if deps.Firebase != nil {
		authGroup := e.Group("/api/v1/auth", middleware.FirebaseAuthMiddleware(deps.Firebase))
		handlers.NewAuthHandler(deps.Profiles, deps.JWTSecret).RegisterAuthRoutes(authGroup)
		logger.Info("auth routes configured")
	}

	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(deps.JWTSecret))

	handlers.NewSessionHandler(deps.Manager).RegisterSessionRoutes(api)
	handlers.NewProfileHandler(deps.Manager, deps.Profiles, deps.Resolver).RegisterProfileRoutes(api)
	handlers.NewMessageHandler(deps.Manager).RegisterMessageRoutes(api)
	handlers.NewFeedHandler(deps.Manager).RegisterFeedRoutes(api)
	handlers.NewPostHandler(deps.Manager).RegisterPostRoutes(api)
	handlers.NewLikeHandler(deps.Manager).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(deps.Manager).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(deps.Manager, deps.Events).RegisterNotificationRoutes(api)

	logger.Info("all routes configured", "routes", len(e.Routes()))
}
