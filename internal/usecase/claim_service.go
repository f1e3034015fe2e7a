package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"
	"tcar-claims-service/pkg/metrics"
	"tcar-claims-service/pkg/utils"
)

// UploadResult is returned by the document and attachment uploads
type UploadResult struct {
	FileID  string        `json:"fileId"`
	FileURL string        `json:"fileUrl"`
	Claim   *entity.Claim `json:"claim"`
}

// ClaimService orchestrates claim registration and the workflow transitions.
// Notifications are queued only after the change has been persisted.
type ClaimService struct {
	claimRepo repository.ClaimRepository
	fileRepo  repository.FileRepository
	allocator *TcarAllocator
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// NewClaimService creates a new claim service
func NewClaimService(
	claimRepo repository.ClaimRepository,
	fileRepo repository.FileRepository,
	allocator *TcarAllocator,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *ClaimService {
	return &ClaimService{
		claimRepo: claimRepo,
		fileRepo:  fileRepo,
		allocator: allocator,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
	}
}

// List returns every claim
func (s *ClaimService) List(ctx context.Context) ([]*entity.Claim, error) {
	claims, err := s.claimRepo.GetAll(ctx)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("list_claims").Inc()
		return nil, err
	}
	return claims, nil
}

// Get returns a claim by id
func (s *ClaimService) Get(ctx context.Context, id string) (*entity.Claim, error) {
	return s.claimRepo.Get(ctx, id)
}

// GetByTcarNo returns a claim by its tcar number
func (s *ClaimService) GetByTcarNo(ctx context.Context, tcarNo string) (*entity.Claim, error) {
	return s.claimRepo.GetByTcarNo(ctx, strings.TrimSpace(tcarNo))
}

// Create registers a claim in PENDING_ACCEPTANCE under a freshly allocated
// tcar number and fires onClaimCreated
func (s *ClaimService) Create(ctx context.Context, newClaim *entity.NewClaim) (*entity.Claim, error) {
	newClaim.Normalize(s.allocator.Now().Format(utils.DATE_LAYOUT))
	if err := newClaim.Validate(); err != nil {
		return nil, err
	}

	claim, err := s.allocator.Allocate(ctx, newClaim)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("create_claim").Inc()
		s.logger.Error("Failed to create claim", "error", err)
		return nil, err
	}

	s.metrics.ClaimsCreated.Inc()
	s.logger.Info("Claim registered",
		"id", claim.ID,
		"tcarNo", claim.TcarNo,
		"customer", claim.CustomerName)

	s.notifier.Notify(entity.EventClaimCreated, claim)
	return claim, nil
}

// Update applies a partial update. A status change must be allowed by the
// lifecycle; the event it fires is queued once the update is stored. Patches
// carrying a status are written conditionally on the status the transition
// was resolved against, so of two concurrent identical transitions only one
// is stored and notified; the other gets a conflict.
func (s *ClaimService) Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.claimRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	transition, err := ResolveTransition(current, &patch)
	if err != nil {
		s.logger.Warn("Rejected claim update",
			"id", id,
			"tcarNo", current.TcarNo,
			"from", transition.From,
			"to", transition.To,
			"error", err)
		return nil, err
	}

	if patch.IsEmpty() {
		return current, nil
	}

	var updated *entity.Claim
	if patch.Status != nil {
		updated, err = s.claimRepo.UpdateIfStatus(ctx, id, current.Status, patch)
	} else {
		updated, err = s.claimRepo.Update(ctx, id, patch)
	}
	if err != nil {
		if apperror.IsConflict(err) {
			s.logger.Warn("Claim status changed concurrently",
				"id", id,
				"tcarNo", current.TcarNo,
				"expected", current.Status)
		}
		s.metrics.ErrorsCount.WithLabelValues("update_claim").Inc()
		return nil, err
	}

	if transition.Changed() {
		s.metrics.Transitions.WithLabelValues(string(transition.From), string(transition.To)).Inc()
		s.logger.Info("Claim status changed",
			"tcarNo", updated.TcarNo,
			"from", transition.From,
			"to", transition.To)
	}
	if transition.Event != "" {
		s.notifier.Notify(transition.Event, updated)
	}
	return updated, nil
}

// Delete removes a claim
func (s *ClaimService) Delete(ctx context.Context, id string) error {
	deleted, err := s.claimRepo.Delete(ctx, id)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("delete_claim").Inc()
		return err
	}
	if !deleted {
		return apperror.NotFound("claim", id)
	}
	s.logger.Info("Claim deleted", "id", id)
	return nil
}

// UploadDocument stores the countermeasure document and links it to the claim
func (s *ClaimService) UploadDocument(ctx context.Context, id, fileName, mimeType string, content io.Reader) (*UploadResult, error) {
	claim, stored, err := s.upload(ctx, id, fileName, mimeType, content)
	if err != nil {
		return nil, err
	}

	updated, err := s.claimRepo.Update(ctx, claim.ID, entity.ClaimPatch{
		DriveFileID:  &stored.FileID,
		DriveFileURL: &stored.FileURL,
	})
	if err != nil {
		return nil, err
	}

	return &UploadResult{FileID: stored.FileID, FileURL: stored.FileURL, Claim: updated}, nil
}

// UploadAttachment stores a file and appends it to the claim's attachments
func (s *ClaimService) UploadAttachment(ctx context.Context, id, fileName, mimeType string, content io.Reader) (*UploadResult, error) {
	claim, stored, err := s.upload(ctx, id, fileName, mimeType, content)
	if err != nil {
		return nil, err
	}

	attachments := append(claim.Attachments, entity.Attachment{
		FileID:     stored.FileID,
		FileURL:    stored.FileURL,
		FileName:   fileName,
		UploadedAt: s.allocator.Now().UTC().Format(time.RFC3339),
	})
	updated, err := s.claimRepo.Update(ctx, claim.ID, entity.ClaimPatch{Attachments: &attachments})
	if err != nil {
		return nil, err
	}

	return &UploadResult{FileID: stored.FileID, FileURL: stored.FileURL, Claim: updated}, nil
}

func (s *ClaimService) upload(ctx context.Context, id, fileName, mimeType string, content io.Reader) (*entity.Claim, *entity.StoredFile, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, nil, apperror.Validation("file is required")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	claim, err := s.claimRepo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.fileRepo.Upload(ctx, claim.TcarNo, fileName, mimeType, content)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("upload_file").Inc()
		s.logger.Error("Failed to upload file",
			"tcarNo", claim.TcarNo,
			"file", fileName,
			"error", err)
		return nil, nil, apperror.Internal(fmt.Sprintf("failed to upload %s", fileName), err)
	}

	s.logger.Info("File uploaded",
		"tcarNo", claim.TcarNo,
		"file", fileName,
		"fileId", stored.FileID)
	return claim, stored, nil
}
