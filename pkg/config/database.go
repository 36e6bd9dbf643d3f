package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connections
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	logger   *slog.Logger
}

// InitDB opens and pings both databases
func InitDB(ctx context.Context, cfg *Config, logger *slog.Logger) (*DB, error) {
	postgresDB, err := initPostgres(cfg.PostgresConnStr, cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	mongoClient, err := initMongo(ctx, cfg.MongoURI)
	if err != nil {
		if sqlDB, derr := postgresDB.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	logger.Info("connected to MongoDB", "database", cfg.MongoDatabase)

	return &DB{
		Postgres: postgresDB,
		Mongo:    mongoClient,
		MongoDB:  mongoClient.Database(cfg.MongoDatabase),
		logger:   logger,
	}, nil
}

// initPostgres initializes the PostgreSQL database connection using GORM
func initPostgres(connStr string, quiet bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if quiet {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	db, err := gorm.Open(postgres.Open(connStr), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// initMongo initializes the MongoDB connection
func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			db.logger.Error("cannot get SQL DB from GORM", "error", err)
		} else if err := sqlDB.Close(); err != nil {
			db.logger.Error("closing PostgreSQL connection", "error", err)
		} else {
			db.logger.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			db.logger.Error("closing MongoDB connection", "error", err)
		} else {
			db.logger.Info("MongoDB connection closed")
		}
	}
}
