package permission

import "time"

type CheckResponse struct {
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
}

type GrantOverrideDTO struct {
	UserID     int64      `json:"user_id" validate:"required"`
	Capability string     `json:"capability" validate:"required"`
	Allowed    bool       `json:"allowed"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason" validate:"max=500"`
}

type RolePermissionDTO struct {
	RoleID     int64  `json:"role_id" validate:"required"`
	Capability string `json:"capability" validate:"required"`
	Allowed    bool   `json:"allowed"`
}

// AssignRoleDTO assigns a tenant-wide role when DepartmentID is zero and a
// department-scoped role otherwise.
type AssignRoleDTO struct {
	UserID              int64 `json:"user_id" validate:"required"`
	RoleID              int64 `json:"role_id" validate:"required"`
	DepartmentID        int64 `json:"department_id,omitempty"`
	IsDefault           bool  `json:"is_default"`
	IsPrimaryDepartment bool  `json:"is_primary_department"`
	IsPrimaryRole       bool  `json:"is_primary_role"`
}

func (dto AssignRoleDTO) Assignment() RoleAssignment {
	var a RoleAssignment
	if dto.DepartmentID == 0 {
		a = TenantWide(dto.RoleID)
	} else {
		a = DepartmentScoped(dto.RoleID, dto.DepartmentID)
		a.IsPrimaryDepartment = dto.IsPrimaryDepartment
		a.IsPrimaryRole = dto.IsPrimaryRole
	}
	a.IsDefault = dto.IsDefault
	return a
}
