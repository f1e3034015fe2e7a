package entity

import (
	"strings"
	"time"

	"tcar-claims-service/pkg/apperror"
)

// DcItem is a defect code and the number of parts reported against it
type DcItem struct {
	Dc       string `json:"dc"`
	Quantity int    `json:"quantity"`
}

// Attachment is a file uploaded while registering a claim
type Attachment struct {
	FileID     string `json:"fileId"`
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName,omitempty"`
	UploadedAt string `json:"uploadedAt,omitempty"`
}

// Claim represents a customer defect claim (TCAR)
type Claim struct {
	ID               string       `json:"id"`
	TcarNo           string       `json:"tcarNo"`
	CustomerDefectID string       `json:"customerDefectId,omitempty"`
	CustomerName     string       `json:"customerName"`
	PartNumber       string       `json:"partNumber,omitempty"`
	DcItems          []DcItem     `json:"dcItems"`
	DefectName       string       `json:"defectName,omitempty"`
	DefectCount      *int         `json:"defectCount,omitempty"`
	OccurrenceDate   string       `json:"occurrenceDate,omitempty"`
	Status           ClaimStatus  `json:"status"`
	ReceivedDate     string       `json:"receivedDate"`
	DueDate          string       `json:"dueDate,omitempty"`
	Remarks          string       `json:"remarks,omitempty"`
	Assignee         string       `json:"assignee,omitempty"`
	AssigneeTech     string       `json:"assigneeTech,omitempty"`
	AssigneeFactory  string       `json:"assigneeFactory,omitempty"`
	CorrectiveAction string       `json:"correctiveAction,omitempty"`
	PreventiveAction string       `json:"preventiveAction,omitempty"`
	DriveFileID      string       `json:"driveFileId,omitempty"`
	DriveFileURL     string       `json:"driveFileUrl,omitempty"`
	Attachments      []Attachment `json:"attachments"`
	CreatedBy        string       `json:"createdBy,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// NewClaim is the input for registering a claim. Identity, timestamps and
// status are assigned by the service.
type NewClaim struct {
	CustomerDefectID string       `json:"customerDefectId"`
	CustomerName     string       `json:"customerName"`
	PartNumber       string       `json:"partNumber"`
	DcItems          []DcItem     `json:"dcItems"`
	DefectName       string       `json:"defectName"`
	DefectCount      *int         `json:"defectCount"`
	OccurrenceDate   string       `json:"occurrenceDate"`
	ReceivedDate     string       `json:"receivedDate"`
	DueDate          string       `json:"dueDate"`
	Remarks          string       `json:"remarks"`
	Assignee         string       `json:"assignee"`
	AssigneeTech     string       `json:"assigneeTech"`
	AssigneeFactory  string       `json:"assigneeFactory"`
	Attachments      []Attachment `json:"attachments"`
	CreatedBy        string       `json:"createdBy"`
}

// ClaimPatch is a partial update. A nil field is left untouched. There is no
// way to express a change of id, tcarNo or createdAt.
type ClaimPatch struct {
	CustomerDefectID *string       `json:"customerDefectId,omitempty"`
	CustomerName     *string       `json:"customerName,omitempty"`
	PartNumber       *string       `json:"partNumber,omitempty"`
	DcItems          *[]DcItem     `json:"dcItems,omitempty"`
	DefectName       *string       `json:"defectName,omitempty"`
	DefectCount      *int          `json:"defectCount,omitempty"`
	OccurrenceDate   *string       `json:"occurrenceDate,omitempty"`
	Status           *ClaimStatus  `json:"status,omitempty"`
	ReceivedDate     *string       `json:"receivedDate,omitempty"`
	DueDate          *string       `json:"dueDate,omitempty"`
	Remarks          *string       `json:"remarks,omitempty"`
	Assignee         *string       `json:"assignee,omitempty"`
	AssigneeTech     *string       `json:"assigneeTech,omitempty"`
	AssigneeFactory  *string       `json:"assigneeFactory,omitempty"`
	CorrectiveAction *string       `json:"correctiveAction,omitempty"`
	PreventiveAction *string       `json:"preventiveAction,omitempty"`
	DriveFileID      *string       `json:"driveFileId,omitempty"`
	DriveFileURL     *string       `json:"driveFileUrl,omitempty"`
	Attachments      *[]Attachment `json:"attachments,omitempty"`
	CreatedBy        *string       `json:"createdBy,omitempty"`
}

// Normalize trims free-text fields and fills the received date when missing.
func (n *NewClaim) Normalize(today string) {
	n.CustomerName = strings.TrimSpace(n.CustomerName)
	n.DefectName = strings.TrimSpace(n.DefectName)
	n.ReceivedDate = strings.TrimSpace(n.ReceivedDate)
	if n.ReceivedDate == "" {
		n.ReceivedDate = today
	}
	if n.Attachments == nil {
		n.Attachments = []Attachment{}
	}
}

// Validate checks the required fields of a new claim.
func (n *NewClaim) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(n.CustomerName) == "" {
		fields["customerName"] = "is required"
	}
	if msg := validateDcItems(n.DcItems); msg != "" {
		fields["dcItems"] = msg
	}
	if n.DefectCount != nil && *n.DefectCount < 0 {
		fields["defectCount"] = "must not be negative"
	}
	return fieldErrors(fields)
}

// Validate checks the fields present in the patch. Status reachability is the
// lifecycle's concern, only the enum is checked here.
func (p *ClaimPatch) Validate() error {
	fields := map[string]string{}
	if p.CustomerName != nil && strings.TrimSpace(*p.CustomerName) == "" {
		fields["customerName"] = "must not be blank"
	}
	if p.DcItems != nil {
		if msg := validateDcItems(*p.DcItems); msg != "" {
			fields["dcItems"] = msg
		}
	}
	if p.DefectCount != nil && *p.DefectCount < 0 {
		fields["defectCount"] = "must not be negative"
	}
	if p.Status != nil && !p.Status.Valid() {
		fields["status"] = "must be one of PENDING_ACCEPTANCE, PENDING_COUNTERMEASURE, COMPLETED"
	}
	return fieldErrors(fields)
}

// IsEmpty reports whether the patch carries no field at all.
func (p *ClaimPatch) IsEmpty() bool {
	return *p == ClaimPatch{}
}

func validateDcItems(items []DcItem) string {
	if len(items) == 0 {
		return "at least one DC item is required"
	}
	for _, item := range items {
		if strings.TrimSpace(item.Dc) == "" {
			return "dc code is required"
		}
		if item.Quantity < 1 {
			return "quantity must be at least 1"
		}
	}
	return ""
}

func fieldErrors(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	err := apperror.Validation("invalid claim fields")
	for k, v := range fields {
		err.WithDetail(k, v)
	}
	return err
}

// Build materialises a new claim with the given identity.
func (n *NewClaim) Build(id, tcarNo string, now time.Time) *Claim {
	return &Claim{
		ID:               id,
		TcarNo:           tcarNo,
		CustomerDefectID: n.CustomerDefectID,
		CustomerName:     n.CustomerName,
		PartNumber:       n.PartNumber,
		DcItems:          append([]DcItem(nil), n.DcItems...),
		DefectName:       n.DefectName,
		DefectCount:      copyInt(n.DefectCount),
		OccurrenceDate:   n.OccurrenceDate,
		Status:           StatusPendingAcceptance,
		ReceivedDate:     n.ReceivedDate,
		DueDate:          n.DueDate,
		Remarks:          n.Remarks,
		Assignee:         n.Assignee,
		AssigneeTech:     n.AssigneeTech,
		AssigneeFactory:  n.AssigneeFactory,
		Attachments:      append([]Attachment{}, n.Attachments...),
		CreatedBy:        n.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy of the claim.
func (c *Claim) Clone() *Claim {
	out := *c
	out.DcItems = append([]DcItem(nil), c.DcItems...)
	out.Attachments = append([]Attachment{}, c.Attachments...)
	out.DefectCount = copyInt(c.DefectCount)
	return &out
}

// Apply merges the patch over a copy of the claim and stamps updatedAt. The
// receiver is not modified. updatedAt never moves backwards.
func (c *Claim) Apply(p ClaimPatch, now time.Time) *Claim {
	out := c.Clone()
	setString(&out.CustomerDefectID, p.CustomerDefectID)
	setString(&out.CustomerName, p.CustomerName)
	setString(&out.PartNumber, p.PartNumber)
	if p.DcItems != nil {
		out.DcItems = append([]DcItem(nil), (*p.DcItems)...)
	}
	setString(&out.DefectName, p.DefectName)
	if p.DefectCount != nil {
		out.DefectCount = copyInt(p.DefectCount)
	}
	setString(&out.OccurrenceDate, p.OccurrenceDate)
	if p.Status != nil {
		out.Status = *p.Status
	}
	setString(&out.ReceivedDate, p.ReceivedDate)
	setString(&out.DueDate, p.DueDate)
	setString(&out.Remarks, p.Remarks)
	setString(&out.Assignee, p.Assignee)
	setString(&out.AssigneeTech, p.AssigneeTech)
	setString(&out.AssigneeFactory, p.AssigneeFactory)
	setString(&out.CorrectiveAction, p.CorrectiveAction)
	setString(&out.PreventiveAction, p.PreventiveAction)
	setString(&out.DriveFileID, p.DriveFileID)
	setString(&out.DriveFileURL, p.DriveFileURL)
	if p.Attachments != nil {
		out.Attachments = append([]Attachment{}, (*p.Attachments)...)
	}
	setString(&out.CreatedBy, p.CreatedBy)

	if now.After(c.UpdatedAt) {
		out.UpdatedAt = now
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
