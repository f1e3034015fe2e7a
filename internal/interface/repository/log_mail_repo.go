package repository

import (
	"context"
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/logger"
)

// LogMailRepository stands in for a mail transport when none is configured.
// Mail is logged and dropped.
type LogMailRepository struct {
	logger logger.Logger
}

// NewLogMailRepository creates a mail repository that only logs
func NewLogMailRepository(logger logger.Logger) repository.MailRepository {
	return &LogMailRepository{logger: logger}
}

// Send logs the mail envelope
func (r *LogMailRepository) Send(ctx context.Context, mail *entity.Mail) error {
	r.logger.Info("Mail transport not configured, skipping",
		"to", strings.Join(mail.To, ","),
		"subject", mail.Subject)
	return nil
}
