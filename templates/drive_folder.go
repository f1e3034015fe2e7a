package templates

import (
	"context"
	"fmt"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/logger"
)

// DriveFolderHandler prepares the document folder of a newly registered claim
type DriveFolderHandler struct {
	fileRepo repository.FileRepository
	logger   logger.Logger
}

// NewDriveFolderHandler creates a new drive folder handler
func NewDriveFolderHandler(fileRepo repository.FileRepository, logger logger.Logger) *DriveFolderHandler {
	return &DriveFolderHandler{
		fileRepo: fileRepo,
		logger:   logger,
	}
}

// Name identifies the handler
func (h *DriveFolderHandler) Name() string {
	return "drive-folder"
}

// CanHandle only reacts to new claims
func (h *DriveFolderHandler) CanHandle(key entity.EventKey) bool {
	return key == entity.EventClaimCreated
}

// Handle finds or creates the claim folder
func (h *DriveFolderHandler) Handle(ctx context.Context, event *entity.WorkflowEvent) error {
	folderID, err := h.fileRepo.EnsureClaimFolder(ctx, event.Claim.TcarNo)
	if err != nil {
		return fmt.Errorf("failed to prepare folder for %s: %w", event.Claim.TcarNo, err)
	}

	h.logger.Info("Claim folder ready",
		"tcarNo", event.Claim.TcarNo,
		"folderId", folderID)
	return nil
}
