package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/logger"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Options configures where claim folders are created
type Options struct {
	ParentFolderID  string
	FolderPrefix    string
	ShareWithAnyone bool
	CredentialsJSON []byte
}

// DriveStorage stores claim documents in Google Drive, one folder per claim
type DriveStorage struct {
	service *drive.Service
	opts    Options
	logger  logger.Logger
}

// NewDriveStorage creates a Drive-backed file repository authenticated with a
// service account
func NewDriveStorage(ctx context.Context, opts Options, logger logger.Logger) (repository.FileRepository, error) {
	service, err := drive.NewService(ctx,
		option.WithCredentialsJSON(opts.CredentialsJSON),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveStorage{
		service: service,
		opts:    opts,
		logger:  logger,
	}, nil
}

// FolderName returns the Drive folder name for a claim
func (s *DriveStorage) FolderName(tcarNo string) string {
	return s.opts.FolderPrefix + tcarNo
}

// EnsureClaimFolder finds the claim folder under the parent, creating it when
// it does not exist yet
func (s *DriveStorage) EnsureClaimFolder(ctx context.Context, tcarNo string) (string, error) {
	name := s.FolderName(tcarNo)

	list, err := s.service.Files.List().
		Q(folderQuery(name, s.opts.ParentFolderID)).
		Fields("files(id, name)").
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to search folder %s: %w", name, err)
	}
	if len(list.Files) > 0 && list.Files[0].Id != "" {
		return list.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if s.opts.ParentFolderID != "" {
		folder.Parents = []string{s.opts.ParentFolderID}
	}

	created, err := s.service.Files.Create(folder).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	s.logger.Info("Created claim folder", "tcarNo", tcarNo, "folderId", created.Id)
	return created.Id, nil
}

// Upload stores content in the claim folder as "<folder>-<fileName>"
func (s *DriveStorage) Upload(ctx context.Context, tcarNo, fileName, mimeType string, content io.Reader) (*entity.StoredFile, error) {
	folderID, err := s.EnsureClaimFolder(ctx, tcarNo)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{
		Name:    s.FolderName(tcarNo) + "-" + fileName,
		Parents: []string{folderID},
	}

	uploaded, err := s.service.Files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	if uploaded.Id == "" || uploaded.WebViewLink == "" {
		return nil, fmt.Errorf("drive returned no id or link for %s", fileName)
	}

	if s.opts.ShareWithAnyone {
		_, err := s.service.Permissions.Create(uploaded.Id, &drive.Permission{
			Role: "reader",
			Type: "anyone",
		}).SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			// the upload itself succeeded
			s.logger.Warn("Failed to share file", "fileId", uploaded.Id, "error", err)
		}
	}

	return &entity.StoredFile{
		FileID:   uploaded.Id,
		FileURL:  uploaded.WebViewLink,
		FolderID: folderID,
	}, nil
}

// folderQuery builds the Drive search expression for a folder by name
func folderQuery(name, parentID string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)

	parts := []string{
		"mimeType = '" + folderMimeType + "'",
		"trashed = false",
		"name = '" + escaped + "'",
	}
	if parentID != "" {
		parts = append(parts, "'"+parentID+"' in parents")
	}
	return strings.Join(parts, " and ")
}
