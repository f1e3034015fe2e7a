package templates

import (
	"context"
	"errors"
	"io"
	"sync"

	"tcar-claims-service/internal/domain/entity"
)

type staticSettings struct {
	settings *entity.NotificationSettings
	err      error
}

func (s *staticSettings) Load(ctx context.Context) (*entity.NotificationSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.settings == nil {
		return entity.DefaultNotificationSettings(), nil
	}
	return s.settings, nil
}

func (s *staticSettings) Save(ctx context.Context, settings *entity.NotificationSettings) error {
	s.settings = settings
	return nil
}

type outbox struct {
	mu   sync.Mutex
	sent []*entity.Mail
	err  error
}

func (o *outbox) Send(ctx context.Context, mail *entity.Mail) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, mail)
	return nil
}

type folderRecorder struct {
	folders []string
	err     error
}

func (f *folderRecorder) EnsureClaimFolder(ctx context.Context, tcarNo string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.folders = append(f.folders, tcarNo)
	return "folder-" + tcarNo, nil
}

func (f *folderRecorder) Upload(ctx context.Context, tcarNo, fileName, mimeType string, content io.Reader) (*entity.StoredFile, error) {
	return nil, errors.New("not used")
}

func intPtr(i int) *int { return &i }

func sampleClaim() *entity.Claim {
	return &entity.Claim{
		ID:           "c1",
		TcarNo:       "202610-0001",
		CustomerName: "ACME",
		DefectName:   "Scratch",
		DefectCount:  intPtr(5),
		DcItems:      []entity.DcItem{{Dc: "2401", Quantity: 3}, {Dc: "2402", Quantity: 2}},
		ReceivedDate: "2026-10-18",
		Status:       entity.StatusPendingAcceptance,
	}
}
