package repository

import (
	"context"

	"tcar-claims-service/internal/domain/entity"
)

// ClaimRepository defines the interface for claim storage operations.
// Unknown ids and tcar numbers are reported with apperror.NotFound, a
// duplicate tcar number on Create with apperror.Conflict.
//
// A deleted claim's tcar number stays reserved: it keeps counting for
// LatestTcarForMonth and Create refuses it with a conflict.
type ClaimRepository interface {
	GetAll(ctx context.Context) ([]*entity.Claim, error)
	Get(ctx context.Context, id string) (*entity.Claim, error)
	GetByTcarNo(ctx context.Context, tcarNo string) (*entity.Claim, error)
	// LatestTcarForMonth returns the greatest tcar number ever issued starting
	// with "{yearMonth}-", deleted claims included, or "" when the month has
	// none.
	LatestTcarForMonth(ctx context.Context, yearMonth string) (string, error)
	Create(ctx context.Context, claim *entity.NewClaim, tcarNo string) (*entity.Claim, error)
	Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error)
	// UpdateIfStatus applies the patch only while the stored status still is
	// expected. A claim that moved on is reported with apperror.Conflict.
	UpdateIfStatus(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error)
	Delete(ctx context.Context, id string) (bool, error)
}
