package department

import (
	"context"
	"strings"

	errors "github.com/frahmantamala/audit-management/internal"
)

// HeadRoleNames are the role names whose department assignments make a user
// head of that department. These assignments are the authoritative source;
// Department.HODUserID is only a projection of them.
var HeadRoleNames = []string{"HOD", "HOD AUDITOR"}

var ErrDepartmentNotFound = errors.NewNotFoundError("department not found", errors.ErrCodeDepartmentNotFound)

type Department struct {
	ID        int64  `json:"id"`
	TenantID  int64  `json:"tenant_id"`
	Name      string `json:"name"`
	HODUserID *int64 `json:"hod_user_id,omitempty"`
}

type Head struct {
	UserID         int64  `json:"user_id"`
	DepartmentID   int64  `json:"department_id"`
	DepartmentName string `json:"department_name"`
	RoleName       string `json:"role_name"`
	IsPrimaryRole  bool   `json:"is_primary_role"`
}

// Drift is a department whose stored projection disagreed with the assignments.
type Drift struct {
	DepartmentID   int64  `json:"department_id"`
	DepartmentName string `json:"department_name"`
	Stored         *int64 `json:"stored"`
	Derived        *int64 `json:"derived"`
}

type Repository interface {
	ListTenantIDs(ctx context.Context) ([]int64, error)
	ListDepartments(ctx context.Context, tenantID int64) ([]Department, error)
	FindByName(ctx context.Context, tenantID int64, name string) (*Department, error)
	// HeadCandidates are ordered primary role first, then by user id.
	HeadCandidates(ctx context.Context, departmentID int64) ([]Head, error)
	SetHeadProjection(ctx context.Context, departmentID int64, userID *int64) error
}

func IsHeadRole(roleName string) bool {
	name := strings.ToUpper(strings.TrimSpace(roleName))
	for _, candidate := range HeadRoleNames {
		if name == candidate {
			return true
		}
	}
	return false
}

func sameHead(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
