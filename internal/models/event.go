package models

import "time"

// SchoolEvent represents a calendar event (PostgreSQL, table "school_events")
type SchoolEvent struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	EventDate   time.Time `json:"event_date" gorm:"index"`
	Location    *string   `json:"location"`
	Audience    string    `json:"audience" gorm:"size:20;default:'all'"` // all, students, alumni, staff
	CreatedBy   *string   `json:"created_by" gorm:"type:uuid"`
	CreatedAt   time.Time `json:"created_at"`
}

func (SchoolEvent) TableName() string { return "school_events" }

func (e *SchoolEvent) ToRecord() Record {
	r := Record{
		ID:        e.ID,
		Scope:     EventsScope(),
		Content:   e.Title,
		CreatedAt: e.CreatedAt,
	}
	if e.CreatedBy != nil {
		r.AuthorID = *e.CreatedBy
	}
	return r
}

// CreateEventRequest defines the request body for adding a calendar event
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	EventDate   time.Time `json:"event_date"`
	Location    *string   `json:"location" validate:"omitempty,max=200"`
	Audience    string    `json:"audience" validate:"omitempty,oneof=all students alumni staff"`
}

// CanPublishEvents reports whether role may add calendar events.
func CanPublishEvents(role string) bool {
	return role == "admin" || role == "teacher"
}
