package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends workflow mail through the Gmail API
type GmailSender struct {
	gmailService *gmail.Service
	logger       logger.Logger
}

// NewGmailSender creates a Gmail-backed mail repository
func NewGmailSender(ctx context.Context, tokenSource oauth2.TokenSource, logger logger.Logger) (repository.MailRepository, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &GmailSender{
		gmailService: service,
		logger:       logger,
	}, nil
}

// Send delivers the mail as the authenticated user
func (s *GmailSender) Send(ctx context.Context, mail *entity.Mail) error {
	raw, err := BuildRawMessage(mail)
	if err != nil {
		return err
	}

	sent, err := s.gmailService.Users.Messages.
		Send("me", &gmail.Message{Raw: raw}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.logger.Info("Mail sent",
		"messageId", sent.Id,
		"to", strings.Join(mail.To, ","),
		"subject", mail.Subject)
	return nil
}

// BuildRawMessage renders mail as an RFC 5322 message, base64url encoded the
// way users.messages.send expects
func BuildRawMessage(mail *entity.Mail) (string, error) {
	if mail.From == "" {
		return "", fmt.Errorf("mail has no sender")
	}
	if len(mail.To) == 0 {
		return "", fmt.Errorf("mail has no recipients")
	}
	if hasLineBreak(mail.From) {
		return "", fmt.Errorf("sender contains a line break")
	}
	for _, to := range mail.To {
		if hasLineBreak(to) {
			return "", fmt.Errorf("recipient %q contains a line break", to)
		}
	}
	if hasLineBreak(mail.Subject) {
		return "", fmt.Errorf("subject contains a line break")
	}

	var buf bytes.Buffer
	buf.WriteString("From: " + mail.From + "\r\n")
	buf.WriteString("To: " + strings.Join(mail.To, ", ") + "\r\n")
	buf.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", mail.Subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("\r\n")

	body := base64.StdEncoding.EncodeToString([]byte(mail.Body))
	for len(body) > 76 {
		buf.WriteString(body[:76] + "\r\n")
		body = body[76:]
	}
	buf.WriteString(body + "\r\n")

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
