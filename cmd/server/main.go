package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sjnosa/connect/internal/handlers"
	"github.com/sjnosa/connect/internal/identity"
	"github.com/sjnosa/connect/internal/middleware"
	"github.com/sjnosa/connect/internal/notify"
	"github.com/sjnosa/connect/internal/realtime"
	"github.com/sjnosa/connect/internal/repositories"
	"github.com/sjnosa/connect/internal/router"
	"github.com/sjnosa/connect/internal/session"
	"github.com/sjnosa/connect/pkg/config"
	"github.com/sjnosa/connect/pkg/firebase"
	"github.com/sjnosa/connect/pkg/logger"
)

type pushTransport interface {
	realtime.Transport
	handlers.StateReporter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel, cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize databases", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	if err := router.AutoMigrate(db.Postgres); err != nil {
		log.Error("failed to auto migrate models", "error", err)
		os.Exit(1)
	}
	log.Info("PostgreSQL auto-migrations completed")

	var alerter notify.PlatformAlerter = notify.NoAlerter{}
	var firebaseAuth middleware.IDTokenVerifier
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, log)
		if err != nil {
			log.Error("failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
		firebaseAuth = app.AuthClient
		alerter = firebase.NewFCMAlerter(app.MessagingClient, cfg.FCMDeviceToken)
	} else {
		log.Warn("Firebase disabled, platform alerts and Firebase login unavailable")
	}

	// Locally the store announces its own writes. Against Supabase the database pushes them.
	var transport pushTransport
	var publisher realtime.Publisher
	switch cfg.RealtimeMode {
	case config.RealtimeSupabase:
		socketURL, err := realtime.SocketURL(cfg.SupabaseURL)
		if err != nil {
			log.Error("invalid SUPABASE_URL", "error", err)
			os.Exit(1)
		}
		socket := realtime.NewSocketTransport(realtime.SocketConfig{
			URL:         socketURL,
			APIKey:      cfg.SupabaseAnonKey,
			AccessToken: cfg.SupabaseAnonKey,
			Heartbeat:   cfg.RealtimeHeartbeat,
			Logger:      log.With("component", "realtime"),
		})
		socket.Start(ctx)
		defer socket.Close()
		transport = socket
	default:
		broker := realtime.NewLocalBroker()
		transport = broker
		publisher = broker
	}
	log.Info("push transport ready", "mode", cfg.RealtimeMode)

	profiles := repositories.NewPostgresProfileRepository(db.Postgres)
	store := repositories.NewStore(
		profiles,
		repositories.NewPostgresMessageRepository(db.Postgres),
		repositories.NewMongoPostRepository(db.MongoDB),
		repositories.NewPostgresCommentRepository(db.Postgres),
		repositories.NewPostgresLikeRepository(db.Postgres),
		repositories.NewPostgresEventRepository(db.Postgres),
		publisher,
		log,
	)

	manager := session.NewManager(store, transport, alerter, session.Options{
		EchoWindow:        cfg.EchoWindow,
		RollbackReactions: cfg.RollbackReactions,
		BannerTTL:         cfg.BannerTTL,
		FeedLimit:         cfg.FeedLimit,
		Logger:            log,
	})
	defer manager.Stop()

	e := router.New(router.Deps{
		Manager:   manager,
		Profiles:  profiles,
		Events:    store,
		Resolver:  identity.NewResolver(cfg.BadgeBaseURL),
		Transport: transport,
		JWTSecret: cfg.JWTSecret,
		Firebase:  firebaseAuth,
		AppName:   cfg.AppName,
		Logger:    log,
	})

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
