package repository

import (
	"context"

	"tcar-claims-service/internal/domain/entity"
)

// NotificationSettingsRepository defines the interface for recipient settings storage
type NotificationSettingsRepository interface {
	// Load returns the stored settings, or empty settings if none were saved
	Load(ctx context.Context) (*entity.NotificationSettings, error)
	Save(ctx context.Context, settings *entity.NotificationSettings) error
}
