package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/session"
)

// FeedHandler serves the live feed view
type FeedHandler struct {
	manager *session.Manager
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(manager *session.Manager) *FeedHandler {
	return &FeedHandler{manager: manager}
}

// RegisterFeedRoutes registers feed routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.POST("/feed/refresh", h.RefreshFeed)
	g.DELETE("/feed", h.CloseFeed)
}

// GetFeed opens the feed on first use and returns it newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	snap, err := s.OpenFeed(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// RefreshFeed re-reads the feed, clearing its stale flag
func (h *FeedHandler) RefreshFeed(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	snap, err := s.RefreshFeed(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

// CloseFeed stops following the feed
func (h *FeedHandler) CloseFeed(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	if err := s.CloseFeed(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
