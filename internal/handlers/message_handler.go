package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/session"
)

// MessageHandler serves the open 1:1 conversation
type MessageHandler struct {
	manager *session.Manager
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(manager *session.Manager) *MessageHandler {
	return &MessageHandler{manager: manager}
}

// RegisterMessageRoutes registers conversation routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.GET("/conversations/:peer_id", h.GetConversation)
	g.POST("/conversations/:peer_id/messages", h.SendMessage)
	g.POST("/conversations/:peer_id/refresh", h.RefreshConversation)
	g.DELETE("/conversations/active", h.CloseConversation)
}

// GetConversation opens the thread with peer_id and returns it grouped by day
func (h *MessageHandler) GetConversation(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	snap, err := s.OpenConversation(c.Request().Context(), c.Param("peer_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// SendMessage shows the message at once and sends it in the background.
// The thread with peer_id must be open.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	snap, tempID, err := s.SendMessage(c.Request().Context(), c.Param("peer_id"), req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, ThreadWriteResponse{TempID: tempID, Thread: snap})
}

// RefreshConversation re-reads the open thread, clearing its stale flag
func (h *MessageHandler) RefreshConversation(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := s.Conversation(ctx)
	if err != nil {
		return httpError(err)
	}
	if current.Scope != models.ConversationScope(s.UserID(), c.Param("peer_id")) {
		return httpError(session.ErrScopeInactive)
	}
	snap, err := s.RefreshConversation(ctx)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// CloseConversation leaves the open thread
func (h *MessageHandler) CloseConversation(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	if err := s.CloseConversation(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
