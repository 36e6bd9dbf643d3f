package firebase

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and its clients
type App struct {
	FirebaseApp     *firebase.App
	AuthClient      *auth.Client
	MessagingClient *messaging.Client
}

// InitFirebase initializes the Firebase application with its auth and messaging clients
func InitFirebase(ctx context.Context, credentialsPath string, logger *slog.Logger) (*App, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	firebaseApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	logger.Info("firebase app initialized", "clients", "auth,messaging")
	return &App{FirebaseApp: firebaseApp, AuthClient: authClient, MessagingClient: messagingClient}, nil
}
