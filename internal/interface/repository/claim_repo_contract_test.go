package repository

import (
	"context"
	"testing"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleNewClaim(customer string) *entity.NewClaim {
	count := 4
	n := &entity.NewClaim{
		CustomerName: customer,
		DcItems:      []entity.DcItem{{Dc: "2401", Quantity: 3}, {Dc: "2402", Quantity: 1}},
		DefectName:   "scratch",
		DefectCount:  &count,
		CreatedBy:    "tester",
	}
	n.Normalize("2026-10-18")
	return n
}

// testClaimRepository runs the behaviour every ClaimRepository backend shares
func testClaimRepository(t *testing.T, newRepo func(t *testing.T) repository.ClaimRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "202610-0001", created.TcarNo)
		assert.Equal(t, entity.StatusPendingAcceptance, created.Status)
		assert.Equal(t, "2026-10-18", created.ReceivedDate)
		assert.NotNil(t, created.Attachments)

		byID, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.TcarNo, byID.TcarNo)
		assert.Equal(t, created.DcItems, byID.DcItems)
		require.NotNil(t, byID.DefectCount)
		assert.Equal(t, 4, *byID.DefectCount)
		assert.True(t, created.CreatedAt.Equal(byID.CreatedAt))

		byTcar, err := repo.GetByTcarNo(ctx, "202610-0001")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byTcar.ID)
	})

	t.Run("unknown claims are not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Get(ctx, uuid.NewString())
		assert.True(t, apperror.IsNotFound(err))

		_, err = repo.Get(ctx, "not-a-uuid")
		assert.True(t, apperror.IsNotFound(err))

		_, err = repo.GetByTcarNo(ctx, "202610-0999")
		assert.True(t, apperror.IsNotFound(err))

		_, err = repo.Update(ctx, uuid.NewString(), entity.ClaimPatch{Remarks: strPtr("x")})
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("duplicate tcar number conflicts", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)

		_, err = repo.Create(ctx, sampleNewClaim("Other"), "202610-0001")
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("latest tcar for month", func(t *testing.T) {
		repo := newRepo(t)

		latest, err := repo.LatestTcarForMonth(ctx, "202610")
		require.NoError(t, err)
		assert.Equal(t, "", latest)

		for _, no := range []string{"202610-0001", "202610-0003", "202609-0007", "202610-0002"} {
			_, err := repo.Create(ctx, sampleNewClaim("ACME"), no)
			require.NoError(t, err)
		}

		latest, err = repo.LatestTcarForMonth(ctx, "202610")
		require.NoError(t, err)
		assert.Equal(t, "202610-0003", latest)

		latest, err = repo.LatestTcarForMonth(ctx, "202609")
		require.NoError(t, err)
		assert.Equal(t, "202609-0007", latest)

		latest, err = repo.LatestTcarForMonth(ctx, "202611")
		require.NoError(t, err)
		assert.Equal(t, "", latest)
	})

	t.Run("get all keeps creation order", func(t *testing.T) {
		repo := newRepo(t)

		for _, no := range []string{"202610-0001", "202610-0002", "202610-0003"} {
			_, err := repo.Create(ctx, sampleNewClaim("ACME"), no)
			require.NoError(t, err)
		}

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "202610-0001", all[0].TcarNo)
		assert.Equal(t, "202610-0002", all[1].TcarNo)
		assert.Equal(t, "202610-0003", all[2].TcarNo)
	})

	t.Run("update merges fields and keeps identity", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)

		status := entity.StatusPendingCountermeasure
		items := []entity.DcItem{{Dc: "2501", Quantity: 9}}
		updated, err := repo.Update(ctx, created.ID, entity.ClaimPatch{
			Status:          &status,
			AssigneeTech:    strPtr("tanaka"),
			AssigneeFactory: strPtr("suzuki"),
			DcItems:         &items,
		})
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "202610-0001", updated.TcarNo)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
		assert.Equal(t, entity.StatusPendingCountermeasure, updated.Status)
		assert.Equal(t, "tanaka", updated.AssigneeTech)
		assert.Equal(t, "suzuki", updated.AssigneeFactory)
		assert.Equal(t, items, updated.DcItems)
		assert.Equal(t, "ACME", updated.CustomerName)
		assert.Equal(t, "scratch", updated.DefectName)

		reread, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "tanaka", reread.AssigneeTech)
	})

	t.Run("attachments round trip", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)

		attachments := []entity.Attachment{{FileID: "f1", FileURL: "https://files/f1", FileName: "a.pdf"}}
		updated, err := repo.Update(ctx, created.ID, entity.ClaimPatch{Attachments: &attachments})
		require.NoError(t, err)
		assert.Equal(t, attachments, updated.Attachments)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = repo.Get(ctx, created.ID)
		assert.True(t, apperror.IsNotFound(err))

		_, err = repo.GetByTcarNo(ctx, "202610-0001")
		assert.True(t, apperror.IsNotFound(err))

		all, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		// the number stays reserved
		_, err = repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		assert.True(t, apperror.IsConflict(err))

		latest, err := repo.LatestTcarForMonth(ctx, "202610")
		require.NoError(t, err)
		assert.Equal(t, "202610-0001", latest)
	})

	t.Run("deleting the latest claim does not rewind the month", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)
		second, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0002")
		require.NoError(t, err)

		deleted, err := repo.Delete(ctx, second.ID)
		require.NoError(t, err)
		require.True(t, deleted)

		latest, err := repo.LatestTcarForMonth(ctx, "202610")
		require.NoError(t, err)
		assert.Equal(t, "202610-0002", latest)

		third, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0003")
		require.NoError(t, err)
		assert.Equal(t, "202610-0003", third.TcarNo)
	})

	t.Run("update if status", func(t *testing.T) {
		repo := newRepo(t)

		created, err := repo.Create(ctx, sampleNewClaim("ACME"), "202610-0001")
		require.NoError(t, err)

		next := entity.StatusPendingCountermeasure
		patch := entity.ClaimPatch{Status: &next, AssigneeTech: strPtr("tanaka")}

		updated, err := repo.UpdateIfStatus(ctx, created.ID, entity.StatusPendingAcceptance, patch)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingCountermeasure, updated.Status)
		assert.Equal(t, "tanaka", updated.AssigneeTech)

		// a second writer still expecting the old status loses
		_, err = repo.UpdateIfStatus(ctx, created.ID, entity.StatusPendingAcceptance, entity.ClaimPatch{Status: &next, Remarks: strPtr("late")})
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))

		reread, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "", reread.Remarks)

		_, err = repo.UpdateIfStatus(ctx, uuid.NewString(), entity.StatusPendingAcceptance, patch)
		assert.True(t, apperror.IsNotFound(err))
	})
}
