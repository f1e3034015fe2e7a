package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	repo "tcar-claims-service/internal/interface/repository"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"
)

var testClock = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func statusPtr(s entity.ClaimStatus) *entity.ClaimStatus { return &s }

func newTestAllocator(claimRepo repository.ClaimRepository, maxAttempts int, m *metrics.Metrics) *TcarAllocator {
	a := NewTcarAllocator(claimRepo, maxAttempts, time.UTC, m, logger.NewNopLogger())
	a.now = func() time.Time { return testClock }
	return a
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.WorkflowEvent
}

func (n *recordingNotifier) Notify(key entity.EventKey, claim *entity.Claim) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, entity.WorkflowEvent{Key: key, Claim: claim.Clone()})
}

func (n *recordingNotifier) keys() []entity.EventKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := []entity.EventKey{}
	for _, e := range n.events {
		keys = append(keys, e.Key)
	}
	return keys
}

// scriptedRepo wraps a real repository and lets tests inject failures
type scriptedRepo struct {
	repository.ClaimRepository

	mu           sync.Mutex
	conflicts    int
	createCalls  int
	createErr    error
	updateErr    error
	latestResult *string
	// beforeUpdate runs once, between the service's read and its write
	beforeUpdate func()
}

func newScriptedRepo() *scriptedRepo {
	return &scriptedRepo{ClaimRepository: repo.NewMemoryClaimRepository()}
}

func (r *scriptedRepo) LatestTcarForMonth(ctx context.Context, yearMonth string) (string, error) {
	r.mu.Lock()
	latest := r.latestResult
	r.mu.Unlock()
	if latest != nil {
		return *latest, nil
	}
	return r.ClaimRepository.LatestTcarForMonth(ctx, yearMonth)
}

func (r *scriptedRepo) Create(ctx context.Context, newClaim *entity.NewClaim, tcarNo string) (*entity.Claim, error) {
	r.mu.Lock()
	r.createCalls++
	if r.createErr != nil {
		err := r.createErr
		r.mu.Unlock()
		return nil, err
	}
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return nil, apperror.Conflict("duplicate tcar number "+tcarNo, nil)
	}
	r.mu.Unlock()
	return r.ClaimRepository.Create(ctx, newClaim, tcarNo)
}

func (r *scriptedRepo) Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	return r.ClaimRepository.Update(ctx, id, patch)
}

func (r *scriptedRepo) UpdateIfStatus(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.mu.Lock()
	hook := r.beforeUpdate
	r.beforeUpdate = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.ClaimRepository.UpdateIfStatus(ctx, id, expected, patch)
}

// fakeFileRepo stores uploads in memory
type fakeFileRepo struct {
	mu      sync.Mutex
	folders []string
	files   map[string]string
	err     error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[string]string{}}
}

func (f *fakeFileRepo) EnsureClaimFolder(ctx context.Context, tcarNo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.folders = append(f.folders, tcarNo)
	return "folder-" + tcarNo, nil
}

func (f *fakeFileRepo) Upload(ctx context.Context, tcarNo, fileName, mimeType string, content io.Reader) (*entity.StoredFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("file-%d", len(f.files)+1)
	f.files[id] = string(data)
	return &entity.StoredFile{
		FileID:   id,
		FileURL:  "https://files.example.com/" + id,
		FolderID: "folder-" + tcarNo,
	}, nil
}
