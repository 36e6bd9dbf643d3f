package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/session"
)

// LikeHandler toggles likes on feed posts
type LikeHandler struct {
	manager *session.Manager
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(manager *session.Manager) *LikeHandler {
	return &LikeHandler{manager: manager}
}

// RegisterLikeRoutes registers like routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/feed/posts/:post_id/like", h.ToggleLike)
}

// ToggleLike flips the caller's like and returns the new count without waiting for the write
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")
	if postID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Post ID is required")
	}

	resp, err := s.ToggleLike(c.Request().Context(), postID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
