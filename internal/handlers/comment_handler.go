package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/session"
)

// CommentHandler serves the comment list of one post at a time
type CommentHandler struct {
	manager *session.Manager
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(manager *session.Manager) *CommentHandler {
	return &CommentHandler{manager: manager}
}

// RegisterCommentRoutes registers comment routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/feed/posts/:post_id/comments", h.GetComments)
	g.POST("/feed/posts/:post_id/comments", h.CreateComment)
	g.DELETE("/feed/comments/active", h.CloseComments)
}

// ThreadWriteResponse is a thread right after an optimistic write
type ThreadWriteResponse struct {
	TempID string                 `json:"temp_id"`
	Thread session.ThreadSnapshot `json:"thread"`
}

// GetComments makes the post's comments the open list and returns them grouped by day
func (h *CommentHandler) GetComments(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	snap, err := s.OpenComments(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// CreateComment adds a comment to the open list immediately and stores it in the background
func (h *CommentHandler) CreateComment(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	snap, tempID, err := s.AddComment(c.Request().Context(), c.Param("post_id"), req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, ThreadWriteResponse{TempID: tempID, Thread: snap})
}

// CloseComments leaves the open comment list
func (h *CommentHandler) CloseComments(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	if err := s.CloseComments(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
