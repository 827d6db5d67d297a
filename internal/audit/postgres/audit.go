package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/audit-management/internal/audit"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

// AuditRepository implements audit.Repository using GORM
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(ctx context.Context, fn func(tx audit.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AuditRepository{db: tx})
	})
}

func (r *AuditRepository) CreateFinding(ctx context.Context, f *audit.Finding) error {
	row := audit.FindingToDataModel(f)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*f = *audit.FindingFromDataModel(row)
	return nil
}

func (r *AuditRepository) FindingByID(ctx context.Context, tenantID, id int64) (*audit.Finding, error) {
	var row datamodel.Finding
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, audit.ErrFindingNotFound
		}
		return nil, err
	}
	return audit.FindingFromDataModel(&row), nil
}

// FindingsByAudit matches department on its trimmed name.
func (r *AuditRepository) FindingsByAudit(ctx context.Context, tenantID, auditID int64, department, status string) ([]*audit.Finding, error) {
	var rows []datamodel.Finding
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND audit_id = ? AND TRIM(department) = ? AND status = ?", tenantID, auditID, department, status).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*audit.Finding, 0, len(rows))
	for i := range rows {
		out = append(out, audit.FindingFromDataModel(&rows[i]))
	}
	return out, nil
}

func (r *AuditRepository) UpdateFinding(ctx context.Context, f *audit.Finding) error {
	return r.db.WithContext(ctx).Model(&datamodel.Finding{}).
		Where("id = ? AND tenant_id = ?", f.ID, f.TenantID).
		Updates(map[string]interface{}{
			"status":             f.Status,
			"category":           f.Category,
			"category_finalized": f.CategoryFinalized,
			"reviewed_by":        f.ReviewedBy,
		}).Error
}

func (r *AuditRepository) CreateProgram(ctx context.Context, p *audit.Program) error {
	row := audit.ProgramToDataModel(p)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*p = *audit.ProgramFromDataModel(row)
	return nil
}

func (r *AuditRepository) ProgramByID(ctx context.Context, tenantID, id int64) (*audit.Program, error) {
	var row datamodel.AuditProgram
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, audit.ErrProgramNotFound
		}
		return nil, err
	}
	return audit.ProgramFromDataModel(&row), nil
}

func (r *AuditRepository) UpdateProgram(ctx context.Context, p *audit.Program) error {
	return r.db.WithContext(ctx).Model(&datamodel.AuditProgram{}).
		Where("id = ? AND tenant_id = ?", p.ID, p.TenantID).
		Updates(map[string]interface{}{
			"status":           p.Status,
			"approved_by":      p.ApprovedBy,
			"rejection_reason": p.RejectionReason,
		}).Error
}

func (r *AuditRepository) CreateChangeRequest(ctx context.Context, c *audit.ChangeRequest) error {
	row := audit.ChangeRequestToDataModel(c)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*c = *audit.ChangeRequestFromDataModel(row)
	return nil
}

func (r *AuditRepository) ChangeRequestByID(ctx context.Context, tenantID, id int64) (*audit.ChangeRequest, error) {
	var row datamodel.DocumentChangeRequest
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, audit.ErrChangeRequestNotFound
		}
		return nil, err
	}
	return audit.ChangeRequestFromDataModel(&row), nil
}

func (r *AuditRepository) UpdateChangeRequest(ctx context.Context, c *audit.ChangeRequest) error {
	return r.db.WithContext(ctx).Model(&datamodel.DocumentChangeRequest{}).
		Where("id = ? AND tenant_id = ?", c.ID, c.TenantID).
		Updates(map[string]interface{}{
			"status":      c.Status,
			"approved_by": c.ApprovedBy,
		}).Error
}
