package permission

type Scope string

const (
	ScopeTenant     Scope = "tenant"
	ScopeDepartment Scope = "department"
)

// RoleAssignment is either TenantWide(roleID) or DepartmentScoped(roleID, departmentID).
// Build it with the constructors; the remaining fields are display and flag data.
type RoleAssignment struct {
	Scope               Scope  `json:"scope"`
	RoleID              int64  `json:"role_id"`
	DepartmentID        int64  `json:"department_id,omitempty"`
	RoleName            string `json:"role_name,omitempty"`
	DepartmentName      string `json:"department_name,omitempty"`
	IsDefault           bool   `json:"is_default,omitempty"`
	IsPrimaryDepartment bool   `json:"is_primary_department,omitempty"`
	IsPrimaryRole       bool   `json:"is_primary_role,omitempty"`
}

func TenantWide(roleID int64) RoleAssignment {
	return RoleAssignment{Scope: ScopeTenant, RoleID: roleID}
}

func DepartmentScoped(roleID, departmentID int64) RoleAssignment {
	return RoleAssignment{Scope: ScopeDepartment, RoleID: roleID, DepartmentID: departmentID}
}

func (a RoleAssignment) IsDepartmentScoped() bool {
	return a.Scope == ScopeDepartment
}

func (a RoleAssignment) Named(roleName, departmentName string) RoleAssignment {
	a.RoleName = roleName
	a.DepartmentName = departmentName
	return a
}

// Principal is an authenticated user bound to one tenant. Assignments are
// claimed input; tenant ownership of every role is re-checked on resolution.
type Principal struct {
	UserID      int64            `json:"user_id"`
	TenantID    int64            `json:"tenant_id"`
	Assignments []RoleAssignment `json:"assignments"`
}

func (p Principal) Validate() error {
	if p.UserID == 0 {
		return ErrPrincipalRequired
	}
	if p.TenantID == 0 {
		return ErrTenantRequired
	}
	return nil
}

// RoleIDs flattens tenant-wide and department-scoped assignments into one
// candidate set, keeping first-seen order.
func (p Principal) RoleIDs() []int64 {
	seen := make(map[int64]struct{}, len(p.Assignments))
	ids := make([]int64, 0, len(p.Assignments))
	for _, a := range p.Assignments {
		if a.RoleID == 0 {
			continue
		}
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		ids = append(ids, a.RoleID)
	}
	return ids
}
