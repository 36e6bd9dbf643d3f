package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/middleware"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/session"
)

// SessionHandler signs users in and out of the sync engine
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// RegisterSessionRoutes registers session lifecycle routes
func (h *SessionHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/session", h.StartSession)
	g.GET("/session", h.GetSession)
	g.DELETE("/session", h.StopSession)
}

// SessionResponse describes the running session
type SessionResponse struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	PlatformAlerts bool   `json:"platform_alerts"`
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{UserID: s.UserID(), Email: s.Email(), PlatformAlerts: s.PlatformAlerts()}
}

// StartSession signs the authenticated user in. A session of another user is stopped first.
func (h *SessionHandler) StartSession(c echo.Context) error {
	var req models.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	email := middleware.Email(c)
	if email == "" {
		email = req.Email
	}
	s, err := h.manager.Start(c.Request().Context(), middleware.UserID(c), email)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sessionResponse(s))
}

// GetSession returns the authenticated user's running session
func (h *SessionHandler) GetSession(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse(s))
}

// StopSession signs the authenticated user out. Pending writes are abandoned.
func (h *SessionHandler) StopSession(c echo.Context) error {
	if _, err := currentSession(c, h.manager); err != nil {
		return err
	}
	h.manager.Stop()
	return c.NoContent(http.StatusNoContent)
}
