package audit

import (
	"context"
	"time"

	errors "github.com/frahmantamala/audit-management/internal"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/audit"
)

const (
	FindingStatusPending     = "PENDING"
	FindingStatusUnderReview = "UNDER_REVIEW"
	FindingStatusAccepted    = "ACCEPTED"
	FindingStatusRefused     = "REFUSED"

	ProgramStatusDraft       = "DRAFT"
	ProgramStatusUnderReview = "UNDER_REVIEW"
	ProgramStatusApproved    = "APPROVED"

	ChangeStatusSubmitted = "SUBMITTED"
	ChangeStatusApproved  = "APPROVED"
	ChangeStatusApplied   = "APPLIED"
)

const (
	CapFindingCreate   = "auditFinding:create"
	CapFindingUpdate   = "auditFinding:update"
	CapProgramCreate   = "auditProgram:create"
	CapProgramApprove  = "auditProgram:approve"
	CapDocumentCreate  = "document:create"
	CapDocumentApprove = "document:approve"
	CapDocumentUpdate  = "document:update"
)

var (
	ErrFindingNotFound       = errors.NewNotFoundError("Finding not found", errors.ErrCodeFindingNotFound)
	ErrProgramNotFound       = errors.NewNotFoundError("Audit program not found", errors.ErrCodeProgramNotFound)
	ErrChangeRequestNotFound = errors.NewNotFoundError("Change request not found", errors.ErrCodeChangeRequestNotFound)
	ErrNothingToProcess      = errors.NewConflictError("No items are in the required state", errors.ErrCodeNothingToProcess)
)

func invalidTransition(entity, from, to string) *errors.AppError {
	return errors.NewConflictError(entity+" cannot move from "+from+" to "+to, errors.ErrCodeInvalidTransition)
}

type Finding struct {
	ID                int64     `json:"id"`
	TenantID          int64     `json:"tenant_id"`
	AuditID           int64     `json:"audit_id"`
	Department        string    `json:"department"`
	Title             string    `json:"title"`
	Category          string    `json:"category,omitempty"`
	Status            string    `json:"status"`
	CategoryFinalized bool      `json:"category_finalized"`
	CreatedBy         int64     `json:"created_by"`
	ReviewedBy        *int64    `json:"reviewed_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (f *Finding) Review(reviewer int64, accept bool, category string) error {
	if f.Status != FindingStatusUnderReview {
		target := FindingStatusRefused
		if accept {
			target = FindingStatusAccepted
		}
		return invalidTransition("finding", f.Status, target)
	}
	f.Status = FindingStatusRefused
	if accept {
		f.Status = FindingStatusAccepted
	}
	if category != "" {
		f.Category = category
	}
	f.ReviewedBy = &reviewer
	return nil
}

type Program struct {
	ID              int64     `json:"id"`
	TenantID        int64     `json:"tenant_id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	CreatedBy       int64     `json:"created_by"`
	ApprovedBy      *int64    `json:"approved_by,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (p *Program) Commit() error {
	if p.Status != ProgramStatusDraft {
		return invalidTransition("audit program", p.Status, ProgramStatusUnderReview)
	}
	p.Status = ProgramStatusUnderReview
	p.RejectionReason = ""
	return nil
}

func (p *Program) Approve(approver int64) error {
	if p.Status != ProgramStatusUnderReview {
		return invalidTransition("audit program", p.Status, ProgramStatusApproved)
	}
	p.Status = ProgramStatusApproved
	p.ApprovedBy = &approver
	return nil
}

func (p *Program) Reject(reason string) error {
	if p.Status != ProgramStatusUnderReview {
		return invalidTransition("audit program", p.Status, ProgramStatusDraft)
	}
	p.Status = ProgramStatusDraft
	p.RejectionReason = reason
	return nil
}

type ChangeRequest struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	DocumentID  int64     `json:"document_id"`
	Department  string    `json:"department"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	RequestedBy int64     `json:"requested_by"`
	ApprovedBy  *int64    `json:"approved_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *ChangeRequest) Approve(approver int64) error {
	if c.Status != ChangeStatusSubmitted {
		return invalidTransition("change request", c.Status, ChangeStatusApproved)
	}
	c.Status = ChangeStatusApproved
	c.ApprovedBy = &approver
	return nil
}

func (c *ChangeRequest) Apply() error {
	if c.Status != ChangeStatusApproved {
		return invalidTransition("change request", c.Status, ChangeStatusApplied)
	}
	c.Status = ChangeStatusApplied
	return nil
}

// Repository is scoped by tenant on every read. WithTx runs fn against a
// transactional copy of the repository.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	CreateFinding(ctx context.Context, f *Finding) error
	FindingByID(ctx context.Context, tenantID, id int64) (*Finding, error)
	FindingsByAudit(ctx context.Context, tenantID, auditID int64, department, status string) ([]*Finding, error)
	UpdateFinding(ctx context.Context, f *Finding) error

	CreateProgram(ctx context.Context, p *Program) error
	ProgramByID(ctx context.Context, tenantID, id int64) (*Program, error)
	UpdateProgram(ctx context.Context, p *Program) error

	CreateChangeRequest(ctx context.Context, c *ChangeRequest) error
	ChangeRequestByID(ctx context.Context, tenantID, id int64) (*ChangeRequest, error)
	UpdateChangeRequest(ctx context.Context, c *ChangeRequest) error
}

func FindingToDataModel(f *Finding) *datamodel.Finding {
	return &datamodel.Finding{
		ID:                f.ID,
		TenantID:          f.TenantID,
		AuditID:           f.AuditID,
		Department:        f.Department,
		Title:             f.Title,
		Category:          f.Category,
		Status:            f.Status,
		CategoryFinalized: f.CategoryFinalized,
		CreatedBy:         f.CreatedBy,
		ReviewedBy:        f.ReviewedBy,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

func FindingFromDataModel(row *datamodel.Finding) *Finding {
	return &Finding{
		ID:                row.ID,
		TenantID:          row.TenantID,
		AuditID:           row.AuditID,
		Department:        row.Department,
		Title:             row.Title,
		Category:          row.Category,
		Status:            row.Status,
		CategoryFinalized: row.CategoryFinalized,
		CreatedBy:         row.CreatedBy,
		ReviewedBy:        row.ReviewedBy,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func ProgramToDataModel(p *Program) *datamodel.AuditProgram {
	return &datamodel.AuditProgram{
		ID:              p.ID,
		TenantID:        p.TenantID,
		Name:            p.Name,
		Status:          p.Status,
		CreatedBy:       p.CreatedBy,
		ApprovedBy:      p.ApprovedBy,
		RejectionReason: p.RejectionReason,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func ProgramFromDataModel(row *datamodel.AuditProgram) *Program {
	return &Program{
		ID:              row.ID,
		TenantID:        row.TenantID,
		Name:            row.Name,
		Status:          row.Status,
		CreatedBy:       row.CreatedBy,
		ApprovedBy:      row.ApprovedBy,
		RejectionReason: row.RejectionReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func ChangeRequestToDataModel(c *ChangeRequest) *datamodel.DocumentChangeRequest {
	return &datamodel.DocumentChangeRequest{
		ID:          c.ID,
		TenantID:    c.TenantID,
		DocumentID:  c.DocumentID,
		Department:  c.Department,
		Description: c.Description,
		Status:      c.Status,
		RequestedBy: c.RequestedBy,
		ApprovedBy:  c.ApprovedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func ChangeRequestFromDataModel(row *datamodel.DocumentChangeRequest) *ChangeRequest {
	return &ChangeRequest{
		ID:          row.ID,
		TenantID:    row.TenantID,
		DocumentID:  row.DocumentID,
		Department:  row.Department,
		Description: row.Description,
		Status:      row.Status,
		RequestedBy: row.RequestedBy,
		ApprovedBy:  row.ApprovedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
