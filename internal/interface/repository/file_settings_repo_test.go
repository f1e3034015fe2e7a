package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tcar-claims-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSettingsRepositoryMissingFile(t *testing.T) {
	repo := NewFileSettingsRepository(filepath.Join(t.TempDir(), "settings.json"))

	settings, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, settings.Groups)
	assert.Empty(t, settings.RecipientsFor(entity.EventClaimCreated))
}

func TestFileSettingsRepositorySaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	repo := NewFileSettingsRepository(path)

	err := repo.Save(ctx, &entity.NotificationSettings{
		Groups: []entity.NotificationGroup{
			{ID: "qa", Name: "QA", Emails: []string{" qa@example.com ", ""}},
			{ID: "", Name: "dropped"},
		},
		WorkflowSettings: entity.WorkflowNotificationSettings{
			OnClaimCreated: []string{"qa"},
		},
	})
	require.NoError(t, err)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Groups, 1)
	assert.Equal(t, []string{"qa@example.com"}, loaded.RecipientsFor(entity.EventClaimCreated))
	assert.Equal(t, []string{}, loaded.WorkflowSettings.OnClaimAccepted)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileSettingsRepositoryCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileSettingsRepository(path).Load(context.Background())
	assert.Error(t, err)
}
