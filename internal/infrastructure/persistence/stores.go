package persistence

import (
	"context"
	"fmt"

	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/internal/infrastructure/config"
	repo "tcar-claims-service/internal/interface/repository"
	"tcar-claims-service/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Stores bundles the repositories selected by configuration
type Stores struct {
	Claims   repository.ClaimRepository
	Settings repository.NotificationSettingsRepository
	Backend  string

	gormDB      *gorm.DB
	mongoClient *mongo.Client
}

// OpenStores connects the claim and notification settings backends
func OpenStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stores, error) {
	backend, err := cfg.StorageBackend()
	if err != nil {
		return nil, err
	}
	stores := &Stores{Backend: backend}

	switch backend {
	case config.BackendPostgrest:
		stores.Claims = repo.NewPostgrestClaimRepository(cfg.SupabaseURL, cfg.SupabaseKey, cfg.HTTPClientTimeout)
	case config.BackendPostgres:
		db, err := NewPostgresDB(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		stores.gormDB = db
		stores.Claims = repo.NewGormClaimRepository(db)
	default:
		log.Warn("Using in-memory claim storage, data is lost on restart")
		stores.Claims = repo.NewMemoryClaimRepository()
	}
	log.Info("Claim storage selected", "backend", backend)

	if cfg.MongoURI != "" {
		log.Info("Connecting to MongoDB")
		client, db, err := OpenMongoDatabase(ctx, MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDB,
			Username: cfg.MongoUser,
			Password: cfg.MongoPassword,
			AppName:  cfg.AppName,
			Timeout:  cfg.HTTPClientTimeout,
		})
		if err != nil {
			stores.Close(ctx, log)
			return nil, err
		}
		stores.mongoClient = client
		stores.Settings = repo.NewMongoSettingsRepository(db)
	} else {
		stores.Settings = repo.NewFileSettingsRepository(cfg.NotificationSettingsFile)
	}

	return stores, nil
}

// Migrate creates the claims table when the postgres backend is in use
func (s *Stores) Migrate() error {
	if s.gormDB == nil {
		return fmt.Errorf("backend %s has no schema to migrate", s.Backend)
	}
	return repo.AutoMigrateClaims(s.gormDB)
}

// Close releases database connections
func (s *Stores) Close(ctx context.Context, log logger.Logger) {
	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			log.Error("MongoDB disconnect error", "error", err)
		}
	}
	if s.gormDB != nil {
		if sqlDB, err := s.gormDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Error("PostgreSQL close error", "error", err)
			}
		}
	}
}
