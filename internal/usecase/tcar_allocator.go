package usecase

import (
	"context"
	"fmt"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"
	"tcar-claims-service/pkg/utils"
)

// DefaultMaxAttempts bounds how often a create is retried after a tcar number
// collision
const DefaultMaxAttempts = 3

// TcarAllocator assigns the next "YYYYMM-NNNN" number of the current month
// and creates the claim under it. Concurrent allocations are resolved by
// retrying on the repository's uniqueness conflict; no lock is taken.
type TcarAllocator struct {
	claimRepo   repository.ClaimRepository
	maxAttempts int
	location    *time.Location
	now         func() time.Time
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewTcarAllocator creates an allocator. location decides which calendar
// month a claim falls in.
func NewTcarAllocator(
	claimRepo repository.ClaimRepository,
	maxAttempts int,
	location *time.Location,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *TcarAllocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if location == nil {
		location = time.Local
	}
	return &TcarAllocator{
		claimRepo:   claimRepo,
		maxAttempts: maxAttempts,
		location:    location,
		now:         time.Now,
		metrics:     metrics,
		logger:      logger,
	}
}

// Now returns the allocator's clock in its configured location
func (a *TcarAllocator) Now() time.Time {
	return a.now().In(a.location)
}

// NextTcarNo derives the candidate number for yearMonth from the latest one
// stored. A malformed latest value restarts the sequence at 1.
func (a *TcarAllocator) NextTcarNo(ctx context.Context, yearMonth string) (string, error) {
	latest, err := a.claimRepo.LatestTcarForMonth(ctx, yearMonth)
	if err != nil {
		return "", fmt.Errorf("failed to read latest tcar number: %w", err)
	}

	next := 1
	if latest != "" {
		if seq, ok := utils.ParseTcarSeq(latest); ok {
			next = seq + 1
		} else {
			a.logger.Warn("Malformed tcar number, restarting sequence", "latest", latest)
		}
	}

	if next > utils.MaxTcarSeq {
		return "", apperror.Internal(
			fmt.Sprintf("tcar sequence for %s exhausted", yearMonth), nil,
		).WithDetail("yearMonth", yearMonth)
	}
	return utils.FormatTcarNo(yearMonth, next), nil
}

// Allocate creates the claim under the next free tcar number
func (a *TcarAllocator) Allocate(ctx context.Context, newClaim *entity.NewClaim) (*entity.Claim, error) {
	yearMonth := utils.YearMonth(a.Now())

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		tcarNo, err := a.NextTcarNo(ctx, yearMonth)
		if err != nil {
			return nil, err
		}

		claim, err := a.claimRepo.Create(ctx, newClaim, tcarNo)
		if err == nil {
			return claim, nil
		}
		if !apperror.IsConflict(err) {
			return nil, err
		}

		lastErr = err
		a.metrics.AllocationRetries.Inc()
		a.logger.Warn("Tcar number taken, retrying",
			"tcarNo", tcarNo,
			"attempt", attempt,
			"maxAttempts", a.maxAttempts)
	}

	return nil, apperror.Internal(
		fmt.Sprintf("could not allocate tcar number after %d attempts", a.maxAttempts),
		lastErr,
	)
}
