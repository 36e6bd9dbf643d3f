package firebase

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// ErrNoDeviceToken is returned by Show when no device is registered.
var ErrNoDeviceToken = errors.New("fcm: no device token")

// MessageSender is the part of the messaging client the alerter uses.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMAlerter raises platform alerts as Firebase Cloud Messaging notifications to one device.
// Permission is granted exactly when a device token is registered.
type FCMAlerter struct {
	sender      MessageSender
	deviceToken string
}

func NewFCMAlerter(sender MessageSender, deviceToken string) *FCMAlerter {
	return &FCMAlerter{sender: sender, deviceToken: deviceToken}
}

func (a *FCMAlerter) RequestPermission(context.Context) (bool, error) {
	return a.Permission(), nil
}

func (a *FCMAlerter) Permission() bool {
	return a.sender != nil && a.deviceToken != ""
}

func (a *FCMAlerter) Show(ctx context.Context, title, body string) error {
	if a.sender == nil || a.deviceToken == "" {
		return ErrNoDeviceToken
	}
	_, err := a.sender.Send(ctx, &messaging.Message{
		Token: a.deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
