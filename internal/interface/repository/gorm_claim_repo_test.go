package repository

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestGormClaimRepository runs the shared behaviour against a real Postgres.
// Set TEST_POSTGRES_DSN to a throwaway database; the claims table is dropped
// and recreated for every case.
func TestGormClaimRepository(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	testClaimRepository(t, func(t *testing.T) repository.ClaimRepository {
		require.NoError(t, db.Migrator().DropTable(&Claims{}))
		require.NoError(t, AutoMigrateClaims(db))
		return NewGormClaimRepository(db)
	})
}

func TestClaimModelMapping(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	claim := sampleNewClaim("ACME").Build("7d0c2f0e-5b0a-4a53-9d1c-5f7f1f0b9a11", "202610-0001", now)
	claim.Attachments = []entity.Attachment{{FileID: "f1", FileURL: "https://files/f1"}}

	model, err := toClaimModel(claim)
	require.NoError(t, err)
	assert.Equal(t, "claims", model.TableName())
	assert.Equal(t, "202610-0001", model.TcarNo)
	assert.Nil(t, model.Remarks)
	require.NotNil(t, model.DefectName)
	assert.Equal(t, "scratch", *model.DefectName)
	assert.JSONEq(t, `[{"dc":"2401","quantity":3},{"dc":"2402","quantity":1}]`, string(model.DcItems))

	back, err := model.toEntity()
	require.NoError(t, err)
	assert.Equal(t, claim, back)
}

func TestClaimModelEmptyAttachments(t *testing.T) {
	model := &Claims{
		ID:      "7d0c2f0e-5b0a-4a53-9d1c-5f7f1f0b9a11",
		TcarNo:  "202610-0001",
		Status:  "COMPLETED",
		DcItems: datatypes.JSON(`[{"dc":"A","quantity":1}]`),
	}

	claim, err := model.toEntity()
	require.NoError(t, err)
	assert.Equal(t, []entity.Attachment{}, claim.Attachments)
	assert.Equal(t, entity.StatusCompleted, claim.Status)
}

func TestGormUpdates(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	status := entity.StatusCompleted
	items := []entity.DcItem{{Dc: "B", Quantity: 2}}

	cols, err := gormUpdates(entity.ClaimPatch{
		Status:           &status,
		CorrectiveAction: strPtr("replace jig"),
		DcItems:          &items,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "COMPLETED", cols["status"])
	assert.Equal(t, "replace jig", cols["corrective_action"])
	assert.Equal(t, now, cols["updated_at"])
	assert.NotContains(t, cols, "tcar_no")
	assert.NotContains(t, cols, "id")
	assert.NotContains(t, cols, "created_at")
	assert.NotContains(t, cols, "remarks")

	encoded, ok := cols["dc_items"].(datatypes.JSON)
	require.True(t, ok)
	var decoded []entity.DcItem
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, items, decoded)
}
