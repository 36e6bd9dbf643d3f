package session

import (
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/reconcile"
)

// ViewError is the inline error a view shows after a failed write.
type ViewError struct {
	TempID  string `json:"temp_id,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func newViewError(tempID string, err error) *ViewError {
	return &ViewError{TempID: tempID, Message: err.Error(), Err: err}
}

func (e *ViewError) Error() string { return e.Message }

func (e *ViewError) Unwrap() error { return e.Err }

// Day is a labelled day group of a thread.
type Day struct {
	Label string `json:"label"`
	reconcile.DayGroup
}

// ThreadSnapshot is the rendered state of a conversation or comment list.
type ThreadSnapshot struct {
	Scope   models.Scope    `json:"scope"`
	Records []models.Record `json:"records"`
	Days    []Day           `json:"days,omitempty"`
	State   string          `json:"state"`
	// Stale is set when the push connection dropped since the last load.
	Stale bool       `json:"stale"`
	Error *ViewError `json:"error,omitempty"`
}

// FeedSnapshot is the rendered state of the feed, newest post first.
type FeedSnapshot struct {
	Posts  []models.Record `json:"posts"`
	Latest *models.Record  `json:"latest,omitempty"`
	State  string          `json:"state"`
	Stale  bool            `json:"stale"`
	Error  *ViewError      `json:"error,omitempty"`
}
