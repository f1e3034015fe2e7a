package repository

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"

	"github.com/google/uuid"
)

// LocalFileRepository stores uploads on local disk. Used when Google Drive is
// not configured; files are served under publicPath.
type LocalFileRepository struct {
	root         string
	publicPath   string
	folderPrefix string
	now          func() time.Time
}

// NewLocalFileRepository creates a disk-backed file repository
func NewLocalFileRepository(root, publicPath, folderPrefix string) repository.FileRepository {
	return &LocalFileRepository{
		root:         root,
		publicPath:   strings.TrimRight(publicPath, "/"),
		folderPrefix: folderPrefix,
		now:          time.Now,
	}
}

// EnsureClaimFolder creates the claim's directory if needed
func (r *LocalFileRepository) EnsureClaimFolder(ctx context.Context, tcarNo string) (string, error) {
	folder := r.folderPrefix + tcarNo
	if err := os.MkdirAll(filepath.Join(r.root, folder), 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", folder, err)
	}
	return folder, nil
}

// Upload writes content into the claim's directory under a unique name. The
// name carries a random segment and the file is created with O_EXCL, so an
// upload never replaces an existing file.
func (r *LocalFileRepository) Upload(ctx context.Context, tcarNo, fileName, mimeType string, content io.Reader) (*entity.StoredFile, error) {
	folder, err := r.EnsureClaimFolder(ctx, tcarNo)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%d-%s-%s", r.now().UnixMilli(), uuid.NewString()[:8], sanitizeFileName(fileName))
	path := filepath.Join(r.root, folder, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	fileID := folder + "/" + name
	return &entity.StoredFile{
		FileID:   fileID,
		FileURL:  r.publicPath + "/" + url.PathEscape(folder) + "/" + url.PathEscape(name),
		FolderID: folder,
	}, nil
}

// sanitizeFileName keeps the base name and drops path separators
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
