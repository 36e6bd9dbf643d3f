package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sjnosa/connect/internal/realtime"
)

// StateReporter reports the connectivity of the push transport.
type StateReporter interface {
	State() realtime.State
}

type HealthHandler struct {
	service   string
	transport StateReporter
}

func NewHealthHandler(service string, transport StateReporter) *HealthHandler {
	return &HealthHandler{service: service, transport: transport}
}

// HealthCheck reports "degraded" while the push transport is not connected.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	status := "healthy"
	state := h.transport.State()
	if state != realtime.StateConnected {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":    status,
		"service":   h.service,
		"transport": state.String(),
	})
}
