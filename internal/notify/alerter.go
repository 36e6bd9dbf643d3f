package notify

import "context"

// PlatformAlerter raises alerts outside the app (OS notification, push message).
type PlatformAlerter interface {
	// RequestPermission asks the platform for permission to alert and reports the outcome.
	RequestPermission(ctx context.Context) (bool, error)
	// Permission reports the current grant without asking again.
	Permission() bool
	Show(ctx context.Context, title, body string) error
}

// NoAlerter is a PlatformAlerter that never gets permission.
type NoAlerter struct{}

func (NoAlerter) RequestPermission(context.Context) (bool, error) { return false, nil }

func (NoAlerter) Permission() bool { return false }

func (NoAlerter) Show(context.Context, string, string) error { return nil }
