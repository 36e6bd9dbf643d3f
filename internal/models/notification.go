package models

// NotificationType classifies an in-app alert
type NotificationType string

const (
	NotificationEvent   NotificationType = "event"
	NotificationMessage NotificationType = "message"
	NotificationSystem  NotificationType = "system"
)

// NotificationItem is an ephemeral in-app alert. It is never persisted.
type NotificationItem struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}
