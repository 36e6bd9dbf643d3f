package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/middleware"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
	"github.com/sjnosa/connect/internal/session"
)

// currentSession returns the running session of the authenticated user.
func currentSession(c echo.Context, manager *session.Manager) (*session.Session, error) {
	userID := middleware.UserID(c)
	if userID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found")
	}
	s, err := manager.For(userID)
	if err != nil {
		return nil, httpError(err)
	}
	return s, nil
}

// httpError maps sync engine errors to HTTP errors.
func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, session.ErrNoSession):
		return echo.NewHTTPError(http.StatusConflict, "No active session, start one with POST /api/v1/session")
	case errors.Is(err, session.ErrScopeInactive):
		return echo.NewHTTPError(http.StatusConflict, "View is not open")
	case errors.Is(err, realtime.ErrScopeActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidDraft):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Request cancelled")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
