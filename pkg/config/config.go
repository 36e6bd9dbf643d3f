package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Realtime modes.
const (
	RealtimeLocal    = "local"
	RealtimeSupabase = "supabase"
)

const defaultJWTSecret = "supersecretjwtkey"

type Config struct {
	Port     string
	Env      string
	LogLevel string
	AppName  string

	PostgresConnStr string
	MongoURI        string
	MongoDatabase   string

	FirebaseCredentialsPath string
	FCMDeviceToken          string
	JWTSecret               string

	RealtimeMode      string
	SupabaseURL       string
	SupabaseAnonKey   string
	RealtimeHeartbeat time.Duration

	BannerTTL         time.Duration
	EchoWindow        time.Duration
	RollbackReactions bool
	FeedLimit         int64
	BadgeBaseURL      string
}

// Load reads the configuration from the environment, after loading .env when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AppName:  getEnv("APP_NAME", "SJNOSA Connect"),

		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "sjnosa"),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FCMDeviceToken:          getEnv("FCM_DEVICE_TOKEN", ""),
		JWTSecret:               getEnv("JWT_SECRET", defaultJWTSecret),

		RealtimeMode:      getEnv("REALTIME_MODE", RealtimeLocal),
		SupabaseURL:       getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:   getEnv("SUPABASE_ANON_KEY", ""),
		RealtimeHeartbeat: getEnvDuration("REALTIME_HEARTBEAT", 25*time.Second),

		BannerTTL:         getEnvDuration("NOTIFY_BANNER_TTL", 5*time.Second),
		EchoWindow:        getEnvDuration("SYNC_ECHO_WINDOW", 10*time.Second),
		RollbackReactions: getEnvBool("SYNC_ROLLBACK_REACTIONS", false),
		FeedLimit:         getEnvInt64("SYNC_FEED_LIMIT", 50),
		BadgeBaseURL:      getEnv("BADGE_BASE_URL", ""),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PostgresConnStr == "" {
		return errors.New("POSTGRES_CONN_STR environment variable not set")
	}
	if c.MongoURI == "" {
		return errors.New("MONGO_URI environment variable not set")
	}
	switch c.RealtimeMode {
	case RealtimeLocal:
	case RealtimeSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("REALTIME_MODE=supabase requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
	default:
		return fmt.Errorf("unknown REALTIME_MODE %q (want %s or %s)", c.RealtimeMode, RealtimeLocal, RealtimeSupabase)
	}
	if c.Env == "production" && c.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return i
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
