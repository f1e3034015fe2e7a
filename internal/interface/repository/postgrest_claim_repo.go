package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"

	"github.com/google/uuid"
)

const uniqueViolation = "23505"

// PostgrestClaimRepository stores claims in a Postgres table exposed through a
// PostgREST (Supabase) endpoint. Columns are snake_case; translation to the
// camelCase entity happens here. Deletes are soft: deleted_at is stamped and
// every read filters on deleted_at=is.null, so the row keeps its tcar number.
type PostgrestClaimRepository struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// NewPostgrestClaimRepository creates a REST-backed claim repository
func NewPostgrestClaimRepository(baseURL, apiKey string, timeout time.Duration) repository.ClaimRepository {
	return &PostgrestClaimRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// claimRow is the wire shape of a row in the claims table
type claimRow struct {
	ID               string              `json:"id"`
	TcarNo           string              `json:"tcar_no"`
	CustomerDefectID *string             `json:"customer_defect_id"`
	CustomerName     string              `json:"customer_name"`
	PartNumber       *string             `json:"part_number"`
	DcItems          []entity.DcItem     `json:"dc_items"`
	DefectName       *string             `json:"defect_name"`
	DefectCount      *int                `json:"defect_count"`
	OccurrenceDate   *string             `json:"occurrence_date"`
	Status           string              `json:"status"`
	ReceivedDate     *string             `json:"received_date"`
	DueDate          *string             `json:"due_date"`
	Remarks          *string             `json:"remarks"`
	Assignee         *string             `json:"assignee"`
	AssigneeTech     *string             `json:"assignee_tech"`
	AssigneeFactory  *string             `json:"assignee_factory"`
	CorrectiveAction *string             `json:"corrective_action"`
	PreventiveAction *string             `json:"preventive_action"`
	DriveFileID      *string             `json:"drive_file_id"`
	DriveFileURL     *string             `json:"drive_file_url"`
	Attachments      []entity.Attachment `json:"attachments"`
	CreatedBy        *string             `json:"created_by"`
	CreatedAt        restTime            `json:"created_at"`
	UpdatedAt        restTime            `json:"updated_at"`
	DeletedAt        *string             `json:"deleted_at,omitempty"`
}

// restTime accepts both timestamptz and timestamp-without-zone renderings
type restTime struct {
	time.Time
}

var restTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func (t *restTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range restTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t restTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

func (row *claimRow) toEntity() *entity.Claim {
	claim := &entity.Claim{
		ID:               row.ID,
		TcarNo:           row.TcarNo,
		CustomerDefectID: deref(row.CustomerDefectID),
		CustomerName:     row.CustomerName,
		PartNumber:       deref(row.PartNumber),
		DcItems:          row.DcItems,
		DefectName:       deref(row.DefectName),
		DefectCount:      row.DefectCount,
		OccurrenceDate:   deref(row.OccurrenceDate),
		Status:           entity.ClaimStatus(row.Status),
		ReceivedDate:     deref(row.ReceivedDate),
		DueDate:          deref(row.DueDate),
		Remarks:          deref(row.Remarks),
		Assignee:         deref(row.Assignee),
		AssigneeTech:     deref(row.AssigneeTech),
		AssigneeFactory:  deref(row.AssigneeFactory),
		CorrectiveAction: deref(row.CorrectiveAction),
		PreventiveAction: deref(row.PreventiveAction),
		DriveFileID:      deref(row.DriveFileID),
		DriveFileURL:     deref(row.DriveFileURL),
		Attachments:      row.Attachments,
		CreatedBy:        deref(row.CreatedBy),
		CreatedAt:        row.CreatedAt.Time,
		UpdatedAt:        row.UpdatedAt.Time,
	}
	if claim.Attachments == nil {
		claim.Attachments = []entity.Attachment{}
	}
	if claim.Status == "" {
		claim.Status = entity.StatusPendingAcceptance
	}
	return claim
}

func toClaimRow(c *entity.Claim) *claimRow {
	return &claimRow{
		ID:               c.ID,
		TcarNo:           c.TcarNo,
		CustomerDefectID: nullable(c.CustomerDefectID),
		CustomerName:     c.CustomerName,
		PartNumber:       nullable(c.PartNumber),
		DcItems:          c.DcItems,
		DefectName:       nullable(c.DefectName),
		DefectCount:      c.DefectCount,
		OccurrenceDate:   nullable(c.OccurrenceDate),
		Status:           string(c.Status),
		ReceivedDate:     nullable(c.ReceivedDate),
		DueDate:          nullable(c.DueDate),
		Remarks:          nullable(c.Remarks),
		Assignee:         nullable(c.Assignee),
		AssigneeTech:     nullable(c.AssigneeTech),
		AssigneeFactory:  nullable(c.AssigneeFactory),
		CorrectiveAction: nullable(c.CorrectiveAction),
		PreventiveAction: nullable(c.PreventiveAction),
		DriveFileID:      nullable(c.DriveFileID),
		DriveFileURL:     nullable(c.DriveFileURL),
		Attachments:      c.Attachments,
		CreatedBy:        nullable(c.CreatedBy),
		CreatedAt:        restTime{c.CreatedAt},
		UpdatedAt:        restTime{c.UpdatedAt},
	}
}

// patchColumns translates a patch into the snake_case columns it touches.
// id, tcar_no and created_at are never written.
func patchColumns(p entity.ClaimPatch) map[string]interface{} {
	cols := map[string]interface{}{}
	putString := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	putString("customer_defect_id", p.CustomerDefectID)
	putString("customer_name", p.CustomerName)
	putString("part_number", p.PartNumber)
	if p.DcItems != nil {
		cols["dc_items"] = *p.DcItems
	}
	putString("defect_name", p.DefectName)
	if p.DefectCount != nil {
		cols["defect_count"] = *p.DefectCount
	}
	putString("occurrence_date", p.OccurrenceDate)
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	putString("received_date", p.ReceivedDate)
	putString("due_date", p.DueDate)
	putString("remarks", p.Remarks)
	putString("assignee", p.Assignee)
	putString("assignee_tech", p.AssigneeTech)
	putString("assignee_factory", p.AssigneeFactory)
	putString("corrective_action", p.CorrectiveAction)
	putString("preventive_action", p.PreventiveAction)
	putString("drive_file_id", p.DriveFileID)
	putString("drive_file_url", p.DriveFileURL)
	if p.Attachments != nil {
		cols["attachments"] = *p.Attachments
	}
	putString("created_by", p.CreatedBy)
	return cols
}

// GetAll returns every claim ordered by creation time
func (r *PostgrestClaimRepository) GetAll(ctx context.Context) ([]*entity.Claim, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "created_at.asc,tcar_no.asc")
	query.Set("deleted_at", "is.null")

	var rows []claimRow
	if err := r.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return nil, err
	}

	claims := make([]*entity.Claim, 0, len(rows))
	for i := range rows {
		claims = append(claims, rows[i].toEntity())
	}
	return claims, nil
}

// Get finds a claim by id
func (r *PostgrestClaimRepository) Get(ctx context.Context, id string) (*entity.Claim, error) {
	if !isUUID(id) {
		return nil, apperror.NotFound("claim", id)
	}
	return r.getOne(ctx, "id", id)
}

// GetByTcarNo finds a claim by tcar number
func (r *PostgrestClaimRepository) GetByTcarNo(ctx context.Context, tcarNo string) (*entity.Claim, error) {
	return r.getOne(ctx, "tcar_no", tcarNo)
}

func (r *PostgrestClaimRepository) getOne(ctx context.Context, column, value string) (*entity.Claim, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set(column, "eq."+value)
	query.Set("deleted_at", "is.null")

	var rows []claimRow
	if err := r.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("claim", value)
	}
	return rows[0].toEntity(), nil
}

// LatestTcarForMonth asks the store for the greatest tcar number of the month.
// Soft-deleted rows are deliberately included.
func (r *PostgrestClaimRepository) LatestTcarForMonth(ctx context.Context, yearMonth string) (string, error) {
	query := url.Values{}
	query.Set("select", "tcar_no")
	query.Set("tcar_no", "like."+yearMonth+"-*")
	query.Set("order", "tcar_no.desc")
	query.Set("limit", "1")

	var rows []struct {
		TcarNo string `json:"tcar_no"`
	}
	if err := r.do(ctx, http.MethodGet, query, nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].TcarNo, nil
}

// Create inserts a claim; a duplicate tcar number yields a conflict error
func (r *PostgrestClaimRepository) Create(ctx context.Context, newClaim *entity.NewClaim, tcarNo string) (*entity.Claim, error) {
	claim := newClaim.Build(uuid.NewString(), tcarNo, r.now().UTC())

	var rows []claimRow
	if err := r.do(ctx, http.MethodPost, nil, toClaimRow(claim), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.Internal("insert returned no row", nil)
	}
	return rows[0].toEntity(), nil
}

// Update sends only the columns present in the patch plus updated_at
func (r *PostgrestClaimRepository) Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error) {
	return r.patch(ctx, id, "", patch)
}

// UpdateIfStatus adds status=eq.expected to the PATCH filter so the check and
// the write are one statement
func (r *PostgrestClaimRepository) UpdateIfStatus(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	return r.patch(ctx, id, expected, patch)
}

func (r *PostgrestClaimRepository) patch(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	if !isUUID(id) {
		return nil, apperror.NotFound("claim", id)
	}
	cols := patchColumns(patch)
	cols["updated_at"] = r.now().UTC().Format(time.RFC3339Nano)

	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("deleted_at", "is.null")
	if expected != "" {
		query.Set("status", "eq."+string(expected))
	}
	query.Set("select", "*")

	var rows []claimRow
	if err := r.do(ctx, http.MethodPatch, query, cols, &rows); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows[0].toEntity(), nil
	}
	if expected == "" {
		return nil, apperror.NotFound("claim", id)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, statusMoved(id, expected, current.Status)
}

// Delete stamps deleted_at, reporting whether a live row was hit
func (r *PostgrestClaimRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("deleted_at", "is.null")
	query.Set("select", "id")

	now := r.now().UTC().Format(time.RFC3339Nano)
	body := map[string]interface{}{"deleted_at": now, "updated_at": now}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPatch, query, body, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// postgrestError is the error body PostgREST returns
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (r *PostgrestClaimRepository) do(ctx context.Context, method string, query url.Values, body interface{}, out interface{}) error {
	endpoint := r.baseURL + "/rest/v1/claims"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var pgErr postgrestError
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &pgErr)
		if resp.StatusCode == http.StatusConflict || pgErr.Code == uniqueViolation {
			return apperror.Conflict("duplicate claim", fmt.Errorf("postgrest %d: %s", resp.StatusCode, pgErr.Message))
		}
		return apperror.Internal("claim store request failed", fmt.Errorf("postgrest %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUUID guards uuid-typed id columns; a malformed id cannot match a row
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// statusMoved reports a conditional update that lost to a concurrent one
func statusMoved(id string, expected, actual entity.ClaimStatus) error {
	return apperror.Conflict("claim status changed concurrently", nil).
		WithDetail("id", id).
		WithDetail("expected", string(expected)).
		WithDetail("actual", string(actual))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
