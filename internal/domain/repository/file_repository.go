package repository

import (
	"context"
	"io"

	"tcar-claims-service/internal/domain/entity"
)

// FileRepository defines the interface for claim document storage
type FileRepository interface {
	// EnsureClaimFolder finds or creates the folder holding a claim's files
	EnsureClaimFolder(ctx context.Context, tcarNo string) (string, error)
	Upload(ctx context.Context, tcarNo, fileName, mimeType string, content io.Reader) (*entity.StoredFile, error)
}
