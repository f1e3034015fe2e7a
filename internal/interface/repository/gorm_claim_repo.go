package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tcar-claims-service/internal/domain/entity"
	"tcar-claims-service/internal/domain/repository"
	"tcar-claims-service/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormClaimRepository implements the ClaimRepository interface on Postgres
type GormClaimRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormClaimRepository creates a new GORM claim repository. The *gorm.DB
// must be opened with TranslateError so duplicate keys surface as
// gorm.ErrDuplicatedKey.
func NewGormClaimRepository(db *gorm.DB) repository.ClaimRepository {
	return &GormClaimRepository{
		db:  db,
		now: time.Now,
	}
}

// Claims GORM model for database mapping. DeletedAt makes deletes soft; the
// unique index on tcar_no still covers deleted rows.
type Claims struct {
	ID               string         `gorm:"column:id;primaryKey;type:uuid"`
	TcarNo           string         `gorm:"column:tcar_no;not null;uniqueIndex"`
	CustomerDefectID *string        `gorm:"column:customer_defect_id"`
	CustomerName     string         `gorm:"column:customer_name;not null"`
	PartNumber       *string        `gorm:"column:part_number"`
	DcItems          datatypes.JSON `gorm:"column:dc_items;type:jsonb;not null"`
	DefectName       *string        `gorm:"column:defect_name"`
	DefectCount      *int           `gorm:"column:defect_count"`
	OccurrenceDate   *string        `gorm:"column:occurrence_date"`
	Status           string         `gorm:"column:status;not null;default:PENDING_ACCEPTANCE;index"`
	ReceivedDate     *string        `gorm:"column:received_date"`
	DueDate          *string        `gorm:"column:due_date"`
	Remarks          *string        `gorm:"column:remarks"`
	Assignee         *string        `gorm:"column:assignee"`
	AssigneeTech     *string        `gorm:"column:assignee_tech"`
	AssigneeFactory  *string        `gorm:"column:assignee_factory"`
	CorrectiveAction *string        `gorm:"column:corrective_action"`
	PreventiveAction *string        `gorm:"column:preventive_action"`
	DriveFileID      *string        `gorm:"column:drive_file_id"`
	DriveFileURL     *string        `gorm:"column:drive_file_url"`
	Attachments      datatypes.JSON `gorm:"column:attachments;type:jsonb;not null"`
	CreatedBy        *string        `gorm:"column:created_by"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

// TableName overrides the default table name
func (Claims) TableName() string {
	return "claims"
}

// AutoMigrateClaims creates or updates the claims table
func AutoMigrateClaims(db *gorm.DB) error {
	return db.AutoMigrate(&Claims{})
}

func toClaimModel(c *entity.Claim) (*Claims, error) {
	dcItems, err := json.Marshal(c.DcItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dc items: %w", err)
	}
	attachments, err := json.Marshal(c.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attachments: %w", err)
	}

	return &Claims{
		ID:               c.ID,
		TcarNo:           c.TcarNo,
		CustomerDefectID: nullable(c.CustomerDefectID),
		CustomerName:     c.CustomerName,
		PartNumber:       nullable(c.PartNumber),
		DcItems:          datatypes.JSON(dcItems),
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
		Attachments:      datatypes.JSON(attachments),
		CreatedBy:        nullable(c.CreatedBy),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

// Convert GORM model to domain entity
func (m *Claims) toEntity() (*entity.Claim, error) {
	claim := &entity.Claim{
		ID:               m.ID,
		TcarNo:           m.TcarNo,
		CustomerDefectID: deref(m.CustomerDefectID),
		CustomerName:     m.CustomerName,
		PartNumber:       deref(m.PartNumber),
		DefectName:       deref(m.DefectName),
		DefectCount:      m.DefectCount,
		OccurrenceDate:   deref(m.OccurrenceDate),
		Status:           entity.ClaimStatus(m.Status),
		ReceivedDate:     deref(m.ReceivedDate),
		DueDate:          deref(m.DueDate),
		Remarks:          deref(m.Remarks),
		Assignee:         deref(m.Assignee),
		AssigneeTech:     deref(m.AssigneeTech),
		AssigneeFactory:  deref(m.AssigneeFactory),
		CorrectiveAction: deref(m.CorrectiveAction),
		PreventiveAction: deref(m.PreventiveAction),
		DriveFileID:      deref(m.DriveFileID),
		DriveFileURL:     deref(m.DriveFileURL),
		CreatedBy:        deref(m.CreatedBy),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if len(m.DcItems) > 0 {
		if err := json.Unmarshal(m.DcItems, &claim.DcItems); err != nil {
			return nil, fmt.Errorf("failed to decode dc items: %w", err)
		}
	}
	claim.Attachments = []entity.Attachment{}
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &claim.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	return claim, nil
}

// gormUpdates converts a patch to a column map, encoding the jsonb columns
func gormUpdates(p entity.ClaimPatch, now time.Time) (map[string]interface{}, error) {
	cols := patchColumns(p)
	for _, col := range []string{"dc_items", "attachments"} {
		if v, ok := cols[col]; ok {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", col, err)
			}
			cols[col] = datatypes.JSON(data)
		}
	}
	cols["updated_at"] = now
	return cols, nil
}

// GetAll returns every claim ordered by creation time
func (r *GormClaimRepository) GetAll(ctx context.Context) ([]*entity.Claim, error) {
	var models []Claims
	result := r.db.WithContext(ctx).Order("created_at ASC, tcar_no ASC").Find(&models)
	if result.Error != nil {
		return nil, apperror.Internal("failed to list claims", result.Error)
	}

	claims := make([]*entity.Claim, 0, len(models))
	for i := range models {
		claim, err := models[i].toEntity()
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// Get finds a claim by id
func (r *GormClaimRepository) Get(ctx context.Context, id string) (*entity.Claim, error) {
	if !isUUID(id) {
		return nil, apperror.NotFound("claim", id)
	}
	return r.first(ctx, "id = ?", id)
}

// GetByTcarNo finds a claim by tcar number
func (r *GormClaimRepository) GetByTcarNo(ctx context.Context, tcarNo string) (*entity.Claim, error) {
	return r.first(ctx, "tcar_no = ?", tcarNo)
}

func (r *GormClaimRepository) first(ctx context.Context, where string, key string) (*entity.Claim, error) {
	var model Claims
	result := r.db.WithContext(ctx).Where(where, key).First(&model)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("claim", key)
	}
	if result.Error != nil {
		return nil, apperror.Internal("failed to get claim", result.Error)
	}
	return model.toEntity()
}

// LatestTcarForMonth returns the greatest tcar number of the month, counting
// soft-deleted rows
func (r *GormClaimRepository) LatestTcarForMonth(ctx context.Context, yearMonth string) (string, error) {
	var tcarNos []string
	result := r.db.WithContext(ctx).
		Unscoped().
		Model(&Claims{}).
		Where("tcar_no LIKE ?", yearMonth+"-%").
		Order("tcar_no DESC").
		Limit(1).
		Pluck("tcar_no", &tcarNos)
	if result.Error != nil {
		return "", apperror.Internal("failed to query latest tcar number", result.Error)
	}
	if len(tcarNos) == 0 {
		return "", nil
	}
	return tcarNos[0], nil
}

// Create inserts a new claim row
func (r *GormClaimRepository) Create(ctx context.Context, newClaim *entity.NewClaim, tcarNo string) (*entity.Claim, error) {
	// Postgres keeps microseconds; match it so the returned claim equals a re-read
	claim := newClaim.Build(uuid.NewString(), tcarNo, r.now().UTC().Truncate(time.Microsecond))
	model, err := toClaimModel(claim)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).Create(model)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return nil, apperror.Conflict("duplicate tcar number "+tcarNo, result.Error)
	}
	if result.Error != nil {
		return nil, apperror.Internal("failed to create claim", result.Error)
	}
	return claim, nil
}

// Update writes only the patched columns and updated_at
func (r *GormClaimRepository) Update(ctx context.Context, id string, patch entity.ClaimPatch) (*entity.Claim, error) {
	return r.update(ctx, id, "", patch)
}

// UpdateIfStatus guards the UPDATE with the expected status
func (r *GormClaimRepository) UpdateIfStatus(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	return r.update(ctx, id, expected, patch)
}

func (r *GormClaimRepository) update(ctx context.Context, id string, expected entity.ClaimStatus, patch entity.ClaimPatch) (*entity.Claim, error) {
	if !isUUID(id) {
		return nil, apperror.NotFound("claim", id)
	}
	cols, err := gormUpdates(patch, r.now().UTC())
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&Claims{}).Where("id = ?", id)
	if expected != "" {
		query = query.Where("status = ?", string(expected))
	}
	result := query.Updates(cols)
	if result.Error != nil {
		return nil, apperror.Internal("failed to update claim", result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if expected != "" {
			return nil, statusMoved(id, expected, current.Status)
		}
	}
	return r.Get(ctx, id)
}

// Delete soft-deletes a claim row
func (r *GormClaimRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Claims{})
	if result.Error != nil {
		return false, apperror.Internal("failed to delete claim", result.Error)
	}
	return result.RowsAffected > 0, nil
}
