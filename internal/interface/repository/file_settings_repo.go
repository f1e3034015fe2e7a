package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
)

// FileSettingsRepository keeps notification settings in a JSON document on disk
type FileSettingsRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileSettingsRepository creates a settings store backed by path
func NewFileSettingsRepository(path string) repository.NotificationSettingsRepository {
	return &FileSettingsRepository{path: path}
}

// Load reads and normalizes the settings file. A missing file yields empty
// settings; an unreadable one is reported.
func (r *FileSettingsRepository) Load(ctx context.Context) (*entity.NotificationSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entity.DefaultNotificationSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification settings: %w", err)
	}

	var settings entity.NotificationSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse notification settings: %w", err)
	}
	settings.Normalize()
	return &settings, nil
}

// Save normalizes and writes the settings, replacing the file atomically
func (r *FileSettingsRepository) Save(ctx context.Context, settings *entity.NotificationSettings) error {
	settings.Normalize()
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notification settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write notification settings: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace notification settings: %w", err)
	}
	return nil
}
