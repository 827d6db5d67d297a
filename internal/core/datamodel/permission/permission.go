package permission

import "time"

type Tenant struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Tenant) TableName() string { return "tenants" }

type User struct {
	ID           int64     `gorm:"primaryKey"`
	TenantID     int64     `gorm:"column:tenant_id;not null;uniqueIndex:idx_users_tenant_email"`
	Email        string    `gorm:"column:email;not null;uniqueIndex:idx_users_tenant_email"`
	Name         string    `gorm:"column:name;not null"`
	PasswordHash string    `gorm:"column:password_hash"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// Department.HODUserID is a projection of the HOD UserDepartmentRole rows.
type Department struct {
	ID        int64     `gorm:"primaryKey"`
	TenantID  int64     `gorm:"column:tenant_id;not null;uniqueIndex:idx_departments_tenant_name"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_departments_tenant_name"`
	HODUserID *int64    `gorm:"column:hod_user_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Department) TableName() string { return "departments" }

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Module      string    `gorm:"column:module;not null;uniqueIndex:idx_permissions_module_action"`
	Action      string    `gorm:"column:action;not null;uniqueIndex:idx_permissions_module_action"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Permission) TableName() string { return "permissions" }

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	TenantID    int64     `gorm:"column:tenant_id;not null;uniqueIndex:idx_roles_tenant_name"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:idx_roles_tenant_name"`
	Description string    `gorm:"column:description"`
	IsDefault   bool      `gorm:"column:is_default;default:false"`
	IsRemovable bool      `gorm:"column:is_removable;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string { return "roles" }

type RolePermission struct {
	ID           int64     `gorm:"primaryKey"`
	RoleID       int64     `gorm:"column:role_id;not null;uniqueIndex:idx_role_permissions_role_permission"`
	PermissionID int64     `gorm:"column:permission_id;not null;uniqueIndex:idx_role_permissions_role_permission"`
	Allowed      bool      `gorm:"column:allowed;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (RolePermission) TableName() string { return "role_permissions" }

type UserRole struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_roles_user_role"`
	RoleID    int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_roles_user_role"`
	IsDefault bool      `gorm:"column:is_default;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }

type UserDepartmentRole struct {
	ID                  int64     `gorm:"primaryKey"`
	UserID              int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_department_roles_assignment"`
	DepartmentID        int64     `gorm:"column:department_id;not null;uniqueIndex:idx_user_department_roles_assignment"`
	RoleID              int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_department_roles_assignment"`
	IsDefault           bool      `gorm:"column:is_default;default:false"`
	IsPrimaryDepartment bool      `gorm:"column:is_primary_department;default:false"`
	IsPrimaryRole       bool      `gorm:"column:is_primary_role;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserDepartmentRole) TableName() string { return "user_department_roles" }

// UserPermission is a per-user override. Rows with ExpiresAt in the past are
// ignored at query time and never purged.
type UserPermission struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       int64      `gorm:"column:user_id;not null;uniqueIndex:idx_user_permissions_user_permission"`
	PermissionID int64      `gorm:"column:permission_id;not null;uniqueIndex:idx_user_permissions_user_permission"`
	Allowed      bool       `gorm:"column:allowed;not null"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	GrantedBy    *int64     `gorm:"column:granted_by"`
	Reason       string     `gorm:"column:reason"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserPermission) TableName() string { return "user_permissions" }

// All lists every row type, in dependency order, for AutoMigrate in tests.
func All() []interface{} {
	return []interface{}{
		&Tenant{}, &User{}, &Department{}, &Permission{}, &Role{},
		&RolePermission{}, &UserRole{}, &UserDepartmentRole{}, &UserPermission{},
	}
}
