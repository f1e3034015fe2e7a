package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsDocumentID = "notification-settings"

// MongoSettingsRepository keeps notification settings as a single document
type MongoSettingsRepository struct {
	collection *mongo.Collection
}

// NewMongoSettingsRepository creates a MongoDB settings repository
func NewMongoSettingsRepository(db *mongo.Database) repository.NotificationSettingsRepository {
	return &MongoSettingsRepository{
		collection: db.Collection("settings"),
	}
}

// settingsDocument wraps the settings with a fixed _id
type settingsDocument struct {
	ID        string                      `bson:"_id"`
	Settings  entity.NotificationSettings `bson:"settings"`
	UpdatedAt time.Time                   `bson:"updatedAt"`
}

// Load finds the settings document
func (r *MongoSettingsRepository) Load(ctx context.Context) (*entity.NotificationSettings, error) {
	var doc settingsDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": settingsDocumentID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.DefaultNotificationSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	doc.Settings.Normalize()
	return &doc.Settings, nil
}

// Save upserts the settings document
func (r *MongoSettingsRepository) Save(ctx context.Context, settings *entity.NotificationSettings) error {
	settings.Normalize()
	doc := settingsDocument{
		ID:        settingsDocumentID,
		Settings:  *settings,
		UpdatedAt: time.Now(),
	}

	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": settingsDocumentID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}
