package repository

import (
	"context"

	"tcar-claims-service/internal/domain/entity"
)

// MailRepository defines the interface for sending outbound email
type MailRepository interface {
	Send(ctx context.Context, mail *entity.Mail) error
}
