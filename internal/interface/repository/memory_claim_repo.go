package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"

	"github.com/google/uuid"
)

// MemoryClaimRepository implements ClaimRepository with a process-local map.
// Deleted claims leave a tombstone ("" id) in byTcar so their number is never
// issued again.
type MemoryClaimRepository struct {
	mu     sync.RWMutex
	claims map[string]*entity.Claim
	order  []string
	byTcar map[string]string
	now    func() time.Time
}

// NewMemoryClaimRepository creates an empty in-memory claim repository
func NewMemoryClaimRepository() repository.ClaimRepository {
	return &MemoryClaimRepository{
		claims: make(map[string]*entity.Claim),
		byTcar: make(map[string]string),
		now:    time.Now,
	}
}

// GetAll returns every claim in insertion order
func (r *MemoryClaimRepository) GetAll(ctx context.Context) ([]*entity.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claims := make([]*entity.Claim, 0, len(r.order))
	for _, id := range r.order {
		claims = append(claims, r.claims[id].Clone())
	}
	return claims, nil
}

// Get finds a claim by id
func (r *MemoryClaimRepository) Get(ctx context.Context, id string) (*entity.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, apperror.NotFound("claim", id)
	}
	return claim.Clone(), nil
}

// GetByTcarNo finds a claim by its tcar number
func (r *MemoryClaimRepository) GetByTcarNo(ctx context.Context, tcarNo string) (*entity.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id := r.byTcar[tcarNo]
	if id == "" {
		return nil, apperror.NotFound("claim", tcarNo)
	}
	return r.claims[id].Clone(), nil
}

// LatestTcarForMonth returns the greatest tcar number of the month
func (r *MemoryClaimRepository) LatestTcarForMonth(ctx context.Context, yearMonth string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := yearMonth + "-"
	latest := ""
	for tcarNo := range r.byTcar {
		if strings.HasPrefix(tcarNo, prefix) && tcarNo > latest {
			latest = tcarNo
		}
	}
	return latest, nil
}

// Create stores a new claim under the given tcar number
func (r *MemoryClaimRepository) Create(ctx context.Context, newClaim *entity.NewClaim, tcarNo string) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTcar[tcarNo]; exists {
		return nil, apperror.Conflict("duplicate tcar number "+tcarNo, nil)
	}

	claim := newClaim.Build(uuid.NewString(), tcarNo, r.now())
	r.claims[claim.ID] = claim
	r.byTcar[tcarNo] = claim.ID
	r.order = append(r.order, claim.ID)

	return claim.Clone(), nil
}

// Update merges the patch over the stored claim
func (r *MemoryClaimRepository) Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, apperror.NotFound("claim", id)
	}
	return r.apply(claim, patch), nil
}

// UpdateIfStatus merges the patch only while the stored status matches
func (r *MemoryClaimRepository) UpdateIfStatus(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, apperror.NotFound("claim", id)
	}
	if claim.Status != expected {
		return nil, statusMoved(id, expected, claim.Status)
	}
	return r.apply(claim, patch), nil
}

func (r *MemoryClaimRepository) apply(claim *entity.Claim, patch entity.ClaimPatch) *entity.Claim {
	updated := claim.Apply(patch, r.now())
	r.claims[updated.ID] = updated
	return updated.Clone()
}

// Delete removes a claim, reporting whether it existed. Its tcar number stays
// reserved.
func (r *MemoryClaimRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return false, nil
	}
	delete(r.claims, id)
	r.byTcar[claim.TcarNo] = ""
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}
