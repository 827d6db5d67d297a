package audit

import "time"

type Finding struct {
	ID                int64     `gorm:"primaryKey"`
	TenantID          int64     `gorm:"column:tenant_id;not null;index"`
	AuditID           int64     `gorm:"column:audit_id;not null;index"`
	Department        string    `gorm:"column:department;not null"`
	Title             string    `gorm:"column:title;not null"`
	Category          string    `gorm:"column:category"`
	Status            string    `gorm:"column:status;not null"`
	CategoryFinalized bool      `gorm:"column:category_finalized;default:false"`
	CreatedBy         int64     `gorm:"column:created_by;not null"`
	ReviewedBy        *int64    `gorm:"column:reviewed_by"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Finding) TableName() string { return "findings" }

type AuditProgram struct {
	ID              int64     `gorm:"primaryKey"`
	TenantID        int64     `gorm:"column:tenant_id;not null;index"`
	Name            string    `gorm:"column:name;not null"`
	Status          string    `gorm:"column:status;not null"`
	CreatedBy       int64     `gorm:"column:created_by;not null"`
	ApprovedBy      *int64    `gorm:"column:approved_by"`
	RejectionReason string    `gorm:"column:rejection_reason"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AuditProgram) TableName() string { return "audit_programs" }

type DocumentChangeRequest struct {
	ID          int64     `gorm:"primaryKey"`
	TenantID    int64     `gorm:"column:tenant_id;not null;index"`
	DocumentID  int64     `gorm:"column:document_id;not null;index"`
	Department  string    `gorm:"column:department;not null"`
	Description string    `gorm:"column:description;not null"`
	Status      string    `gorm:"column:status;not null"`
	RequestedBy int64     `gorm:"column:requested_by;not null"`
	ApprovedBy  *int64    `gorm:"column:approved_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DocumentChangeRequest) TableName() string { return "document_change_requests" }
