package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/session"
)

// EventPublisher stores calendar events and announces them to open sessions.
type EventPublisher interface {
	CreateEvent(ctx context.Context, event *models.SchoolEvent) error
}

// NotificationHandler serves the in-app banner and the school calendar
type NotificationHandler struct {
	manager *session.Manager
	events  EventPublisher
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(manager *session.Manager, events EventPublisher) *NotificationHandler {
	return &NotificationHandler{manager: manager, events: events}
}

// RegisterNotificationRoutes registers notification and event routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.DELETE("/notifications/:id", h.DismissNotification)
	g.GET("/events/next", h.GetNextEvent)
	g.POST("/events", h.CreateEvent)
}

// GetNotifications returns the banner items that have not expired
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications":   s.Notifications(),
		"platform_alerts": s.PlatformAlerts(),
	})
}

// DismissNotification hides a banner item before it expires
func (h *NotificationHandler) DismissNotification(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	if !s.DismissNotification(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetNextEvent returns the next upcoming school event
func (h *NotificationHandler) GetNextEvent(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}
	event, err := s.NextEvent(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

// CreateEvent adds a calendar event. Only admins and teachers may publish.
func (h *NotificationHandler) CreateEvent(c echo.Context) error {
	s, err := currentSession(c, h.manager)
	if err != nil {
		return err
	}

	var req models.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.EventDate.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "Event date is required")
	}

	ctx := c.Request().Context()
	profile, err := s.Profile(ctx)
	if err != nil {
		return httpError(err)
	}
	if !models.CanPublishEvents(profile.Role) {
		return echo.NewHTTPError(http.StatusForbidden, "Only admins and teachers can add events")
	}

	createdBy := s.UserID()
	event := &models.SchoolEvent{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		Location:    req.Location,
		Audience:    req.Audience,
		CreatedBy:   &createdBy,
	}
	if event.Audience == "" {
		event.Audience = "all"
	}
	if err := h.events.CreateEvent(ctx, event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, event)
}
