package templates

import (
	"context"
	"fmt"
	"strings"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/logger"
)

// ClaimMailHandler mails the recipients configured for each workflow event
type ClaimMailHandler struct {
	settingsRepo repository.NotificationSettingsRepository
	mailRepo     repository.MailRepository
	from         string
	fallback     map[entity.EventKey][]string
	logger       logger.Logger
}

// NewClaimMailHandler creates a new claim mail handler. fallback holds the
// recipients used for an event when the stored settings select nobody.
func NewClaimMailHandler(
	settingsRepo repository.NotificationSettingsRepository,
	mailRepo repository.MailRepository,
	from string,
	fallback map[entity.EventKey][]string,
	logger logger.Logger,
) *ClaimMailHandler {
	if fallback == nil {
		fallback = map[entity.EventKey][]string{}
	}
	return &ClaimMailHandler{
		settingsRepo: settingsRepo,
		mailRepo:     mailRepo,
		from:         strings.TrimSpace(from),
		fallback:     fallback,
		logger:       logger,
	}
}

// Name identifies the handler
func (h *ClaimMailHandler) Name() string {
	return "claim-mail"
}

// CanHandle reports whether a template exists for the event
func (h *ClaimMailHandler) CanHandle(key entity.EventKey) bool {
	_, ok := mailTemplates[key]
	return ok
}

// Handle resolves the recipients and sends the mail. Missing sender or
// recipients skip the event without error.
func (h *ClaimMailHandler) Handle(ctx context.Context, event *entity.WorkflowEvent) error {
	tmpl, ok := mailTemplates[event.Key]
	if !ok {
		return fmt.Errorf("no mail template for event %s", event.Key)
	}
	if h.from == "" {
		h.logger.Debug("Mail sender not configured, skipping", "event", event.Key)
		return nil
	}

	recipients, err := h.Recipients(ctx, event.Key)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		h.logger.Info("No recipients for event, skipping",
			"event", event.Key,
			"tcarNo", event.Claim.TcarNo)
		return nil
	}

	mail := &entity.Mail{
		From:    h.from,
		To:      recipients,
		Subject: tmpl.subject(event.Claim),
		Body:    tmpl.body(event.Claim),
	}
	if err := h.mailRepo.Send(ctx, mail); err != nil {
		return fmt.Errorf("failed to send %s mail for %s: %w", event.Key, event.Claim.TcarNo, err)
	}

	h.logger.Info("Notification mail sent",
		"event", event.Key,
		"tcarNo", event.Claim.TcarNo,
		"recipients", len(recipients))
	return nil
}

// Recipients returns the stored recipients for the event, falling back to
// the configured list when the settings select nobody
func (h *ClaimMailHandler) Recipients(ctx context.Context, key entity.EventKey) ([]string, error) {
	settings, err := h.settingsRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	if recipients := settings.RecipientsFor(key); len(recipients) > 0 {
		return recipients, nil
	}
	return h.fallback[key], nil
}

type mailTemplate struct {
	subject func(c *entity.Claim) string
	body    func(c *entity.Claim) string
}

var mailTemplates = map[entity.EventKey]mailTemplate{
	entity.EventClaimCreated: {
		subject: func(c *entity.Claim) string {
			return fmt.Sprintf("【クレーム受付】TCAR-%s 新規登録 / Claim Registered", c.TcarNo)
		},
		body: claimCreatedBody,
	},
	entity.EventClaimAccepted: {
		subject: func(c *entity.Claim) string {
			return fmt.Sprintf("【受付完了】TCAR-%s 技術へ回付 / Claim Accepted", c.TcarNo)
		},
		body: claimAcceptedBody,
	},
	entity.EventCountermeasureSubmitted: {
		subject: func(c *entity.Claim) string {
			return fmt.Sprintf("【対策完了】TCAR-%s 対策書登録完了 / Countermeasure Submitted", c.TcarNo)
		},
		body: countermeasureBody,
	},
	entity.EventTechnicalApproved: {
		subject: func(c *entity.Claim) string {
			return fmt.Sprintf("【技術承認完了】TCAR-%s 完了通知 / Technical Approval Completed", c.TcarNo)
		},
		body: technicalApprovedBody,
	},
}

func claimCreatedBody(c *entity.Claim) string {
	return joinSections(
		[]string{
			"新しいクレームが登録されました。",
			"",
			"TCAR No: " + c.TcarNo,
			"顧客名: " + c.CustomerName,
			"不具合名: " + orDash(c.DefectName),
			"不具合数: " + defectCount(c) + " 件",
			"DC: " + dcSummary(c.DcItems),
			"受付日: " + c.ReceivedDate,
			"期限: " + orDash(c.DueDate),
			"備考: " + orDash(c.Remarks),
		},
		[]string{
			"A new claim has been registered.",
			"",
			"TCAR No: " + c.TcarNo,
			"Customer: " + c.CustomerName,
			"Defect: " + orDash(c.DefectName),
			"Quantity: " + defectCount(c),
			"DC: " + dcSummary(c.DcItems),
			"Received Date: " + c.ReceivedDate,
			"Due Date: " + orDash(c.DueDate),
			"Remarks: " + orDash(c.Remarks),
		},
	)
}

func claimAcceptedBody(c *entity.Claim) string {
	return joinSections(
		[]string{
			"クレームが受付完了になりました。",
			"",
			"TCAR No: " + c.TcarNo,
			"顧客名: " + c.CustomerName,
			"不具合名: " + orDash(c.DefectName),
			"不具合数: " + defectCount(c) + " 件",
			"技術担当: " + orDash(c.AssigneeTech),
			"工場担当: " + orDash(c.AssigneeFactory),
			"期限: " + orDash(c.DueDate),
			"対応をお願いします。",
		},
		[]string{
			"The claim has been accepted and assigned.",
			"",
			"TCAR No: " + c.TcarNo,
			"Customer: " + c.CustomerName,
			"Defect: " + orDash(c.DefectName),
			"Quantity: " + defectCount(c),
			"Technical: " + orDash(c.AssigneeTech),
			"Factory: " + orDash(c.AssigneeFactory),
			"Due Date: " + orDash(c.DueDate),
			"Please take necessary actions.",
		},
	)
}

func countermeasureBody(c *entity.Claim) string {
	jp := []string{
		"対策書が登録されました。技術承認をお願いします。",
		"",
		"TCAR No: " + c.TcarNo,
		"顧客名: " + c.CustomerName,
		"不具合名: " + orDash(c.DefectName),
		"不具合数: " + defectCount(c) + " 件",
		"是正処置: " + orDash(c.CorrectiveAction),
		"予防処置: " + orDash(c.PreventiveAction),
	}
	en := []string{
		"The countermeasure document has been submitted for technical approval.",
		"",
		"TCAR No: " + c.TcarNo,
		"Customer: " + c.CustomerName,
		"Defect: " + orDash(c.DefectName),
		"Quantity: " + defectCount(c),
		"Corrective Action: " + orDash(c.CorrectiveAction),
		"Preventive Action: " + orDash(c.PreventiveAction),
	}
	if c.DriveFileURL != "" {
		jp = append(jp, "資料: "+c.DriveFileURL)
		en = append(en, "Document: "+c.DriveFileURL)
	}
	return joinSections(jp, en)
}

func technicalApprovedBody(c *entity.Claim) string {
	jp := []string{
		"技術承認が完了しました。",
		"",
		"TCAR No: " + c.TcarNo,
		"顧客名: " + c.CustomerName,
		"不具合名: " + orDash(c.DefectName),
		"不具合数: " + defectCount(c),
		"是正処置: " + orDash(c.CorrectiveAction),
		"予防処置: " + orDash(c.PreventiveAction),
	}
	en := []string{
		"Technical approval has been completed.",
		"",
		"TCAR No: " + c.TcarNo,
		"Customer: " + c.CustomerName,
		"Defect: " + orDash(c.DefectName),
		"Quantity: " + defectCount(c),
		"Corrective Action: " + orDash(c.CorrectiveAction),
		"Preventive Action: " + orDash(c.PreventiveAction),
	}
	if c.DriveFileURL != "" {
		jp = append(jp, "対策書: "+c.DriveFileURL)
		en = append(en, "Document: "+c.DriveFileURL)
	}
	return joinSections(jp, en)
}

// joinSections renders the Japanese block above the English one
func joinSections(jp, en []string) string {
	lines := append([]string{}, jp...)
	lines = append(lines, "", "---")
	lines = append(lines, en...)
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func defectCount(c *entity.Claim) string {
	if c.DefectCount == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *c.DefectCount)
}

func dcSummary(items []entity.DcItem) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item.Dc, item.Quantity))
	}
	return strings.Join(parts, ", ")
}
