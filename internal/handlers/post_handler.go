package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/session"
)

// PostHandler publishes feed posts
type PostHandler struct {
	manager *session.Manager
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(manager *session.Manager) *PostHandler {
	return &PostHandler{manager: manager}
}

// RegisterPostRoutes registers post routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/feed/posts", h.CreatePost)
}

// PostWriteResponse is the feed right after an optimistic post
type PostWriteResponse struct {
	TempID string               `json:"temp_id"`
	Feed   session.FeedSnapshot `json:"feed"`
}

// CreatePost shows the post in the feed immediately and stores it in the background
func (h *PostHandler) CreatePost(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	snap, tempID, err := s.CreatePost(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, PostWriteResponse{TempID: tempID, Feed: snap})
}
