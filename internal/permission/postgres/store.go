package postgres

import (
	"context"
	"errors"
	"time"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	departmentPostgres "github.com/frahmantamala/audit-management/internal/department/postgres"
	"github.com/frahmantamala/audit-management/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) TenantExists(ctx context.Context, tenantID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&datamodel.Tenant{}).Where("id = ?", tenantID).Count(&count).Error
	return count > 0, err
}

func (s *Store) FindCapability(ctx context.Context, module, action string) (*permission.Capability, error) {
	var row datamodel.Permission
	err := s.db.WithContext(ctx).Where("module = ? AND action = ?", module, action).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permission.ErrCapabilityNotFound
		}
		return nil, err
	}
	c := capabilityFromRow(row)
	return &c, nil
}

func (s *Store) FindActiveOverride(ctx context.Context, userID, permissionID int64, at time.Time) (*permission.Override, error) {
	var rows []datamodel.UserPermission
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND permission_id = ?", userID, permissionID).
		Where("(expires_at IS NULL OR expires_at > ?)", at).
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	o := overrideFromRow(rows[0])
	return &o, nil
}

func (s *Store) FindActiveOverrides(ctx context.Context, userIDs []int64, permissionID int64, at time.Time) ([]permission.Override, error) {
	var rows []datamodel.UserPermission
	err := s.db.WithContext(ctx).
		Where("user_id IN ? AND permission_id = ?", userIDs, permissionID).
		Where("(expires_at IS NULL OR expires_at > ?)", at).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]permission.Override, 0, len(rows))
	for _, row := range rows {
		out = append(out, overrideFromRow(row))
	}
	return out, nil
}

func (s *Store) FindRoles(ctx context.Context, roleIDs []int64) ([]permission.Role, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var rows []datamodel.Role
	if err := s.db.WithContext(ctx).Where("id IN ?", roleIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]permission.Role, 0, len(rows))
	for _, row := range rows {
		out = append(out, roleFromRow(row))
	}
	return out, nil
}

func (s *Store) GrantingRoleIDs(ctx context.Context, roleIDs []int64, permissionID int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	err := s.db.WithContext(ctx).Model(&datamodel.RolePermission{}).
		Where("role_id IN ? AND permission_id = ? AND allowed = ?", roleIDs, permissionID, true).
		Pluck("role_id", &ids).Error
	return ids, err
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*permission.User, error) {
	var row datamodel.User
	if err := s.db.WithContext(ctx).First(&row, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permission.ErrPrincipalNotFound
		}
		return nil, err
	}
	return &permission.User{
		ID:       row.ID,
		TenantID: row.TenantID,
		Email:    row.Email,
		Name:     row.Name,
		IsActive: row.IsActive,
	}, nil
}

func (s *Store) FindRole(ctx context.Context, roleID int64) (*permission.Role, error) {
	var row datamodel.Role
	if err := s.db.WithContext(ctx).First(&row, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permission.ErrRoleNotFound
		}
		return nil, err
	}
	r := roleFromRow(row)
	return &r, nil
}

func (s *Store) FindDepartment(ctx context.Context, departmentID int64) (*permission.Department, error) {
	var row datamodel.Department
	if err := s.db.WithContext(ctx).First(&row, departmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, permission.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &permission.Department{ID: row.ID, TenantID: row.TenantID, Name: row.Name, HODUserID: row.HODUserID}, nil
}

// LoadAssignments returns tenant-wide assignments first, then department-scoped
// ones, each in insertion order.
func (s *Store) LoadAssignments(ctx context.Context, userID int64) ([]permission.RoleAssignment, error) {
	byUser, err := LoadAssignmentsFor(s.db.WithContext(ctx), []int64{userID})
	if err != nil {
		return nil, err
	}
	return byUser[userID], nil
}

type tenantRoleRow struct {
	UserID    int64
	RoleID    int64
	RoleName  string
	IsDefault bool
}

type departmentRoleRow struct {
	UserID              int64
	RoleID              int64
	RoleName            string
	DepartmentID        int64
	DepartmentName      string
	IsDefault           bool
	IsPrimaryDepartment bool
	IsPrimaryRole       bool
}

// LoadAssignmentsFor loads the normalized assignment list of many users in two queries.
func LoadAssignmentsFor(db *gorm.DB, userIDs []int64) (map[int64][]permission.RoleAssignment, error) {
	result := make(map[int64][]permission.RoleAssignment, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var tenantRows []tenantRoleRow
	err := db.Table("user_roles AS ur").
		Select("ur.user_id, ur.role_id, r.name AS role_name, ur.is_default").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id IN ?", userIDs).
		Order("ur.user_id, ur.id").
		Scan(&tenantRows).Error
	if err != nil {
		return nil, err
	}

	var deptRows []departmentRoleRow
	err = db.Table("user_department_roles AS udr").
		Select("udr.user_id, udr.role_id, r.name AS role_name, udr.department_id, d.name AS department_name, "+
			"udr.is_default, udr.is_primary_department, udr.is_primary_role").
		Joins("JOIN roles r ON r.id = udr.role_id").
		Joins("JOIN departments d ON d.id = udr.department_id").
		Where("udr.user_id IN ?", userIDs).
		Order("udr.user_id, udr.id").
		Scan(&deptRows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range tenantRows {
		a := permission.TenantWide(row.RoleID).Named(row.RoleName, "")
		a.IsDefault = row.IsDefault
		result[row.UserID] = append(result[row.UserID], a)
	}
	for _, row := range deptRows {
		a := permission.DepartmentScoped(row.RoleID, row.DepartmentID).Named(row.RoleName, row.DepartmentName)
		a.IsDefault = row.IsDefault
		a.IsPrimaryDepartment = row.IsPrimaryDepartment
		a.IsPrimaryRole = row.IsPrimaryRole
		result[row.UserID] = append(result[row.UserID], a)
	}
	return result, nil
}

func (s *Store) ListCapabilities(ctx context.Context) ([]permission.Capability, error) {
	var rows []datamodel.Permission
	if err := s.db.WithContext(ctx).Order("module, action").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]permission.Capability, 0, len(rows))
	for _, row := range rows {
		out = append(out, capabilityFromRow(row))
	}
	return out, nil
}

func (s *Store) EnsureCapability(ctx context.Context, module, action, description string) (*permission.Capability, error) {
	row := datamodel.Permission{}
	err := s.db.WithContext(ctx).
		Where(datamodel.Permission{Module: module, Action: action}).
		Attrs(datamodel.Permission{Description: description}).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}
	c := capabilityFromRow(row)
	return &c, nil
}

func (s *Store) SetRolePermission(ctx context.Context, roleID, permissionID int64, allowed bool) error {
	row := datamodel.RolePermission{RoleID: roleID, PermissionID: permissionID, Allowed: allowed}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role_id"}, {Name: "permission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "updated_at"}),
	}).Create(&row).Error
}

func (s *Store) UpsertOverride(ctx context.Context, override *permission.Override) error {
	row := datamodel.UserPermission{
		UserID:       override.UserID,
		PermissionID: override.PermissionID,
		Allowed:      override.Allowed,
		ExpiresAt:    override.ExpiresAt,
		GrantedBy:    override.GrantedBy,
		Reason:       override.Reason,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "permission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "expires_at", "granted_by", "reason", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return err
	}
	override.ID = row.ID
	override.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, userID, permissionID int64) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND permission_id = ?", userID, permissionID).
		Delete(&datamodel.UserPermission{}).Error
}

func (s *Store) AssignTenantRole(ctx context.Context, userID, roleID int64, isDefault bool) error {
	row := datamodel.UserRole{UserID: userID, RoleID: roleID, IsDefault: isDefault}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "role_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_default"}),
	}).Create(&row).Error
}

func (s *Store) UnassignTenantRole(ctx context.Context, userID, roleID int64) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&datamodel.UserRole{}).Error
}

// AssignDepartmentRole writes the assignment and the department head
// projection in one transaction.
func (s *Store) AssignDepartmentRole(ctx context.Context, userID int64, assignment permission.RoleAssignment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := datamodel.UserDepartmentRole{
			UserID:              userID,
			DepartmentID:        assignment.DepartmentID,
			RoleID:              assignment.RoleID,
			IsDefault:           assignment.IsDefault,
			IsPrimaryDepartment: assignment.IsPrimaryDepartment,
			IsPrimaryRole:       assignment.IsPrimaryRole,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "department_id"}, {Name: "role_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_default", "is_primary_department", "is_primary_role"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return departmentPostgres.SyncHead(tx, assignment.DepartmentID)
	})
}

func (s *Store) UnassignDepartmentRole(ctx context.Context, userID, departmentID, roleID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND department_id = ? AND role_id = ?", userID, departmentID, roleID).
			Delete(&datamodel.UserDepartmentRole{}).Error
		if err != nil {
			return err
		}
		return departmentPostgres.SyncHead(tx, departmentID)
	})
}

func capabilityFromRow(row datamodel.Permission) permission.Capability {
	return permission.Capability{ID: row.ID, Module: row.Module, Action: row.Action, Description: row.Description}
}

func roleFromRow(row datamodel.Role) permission.Role {
	return permission.Role{
		ID:          row.ID,
		TenantID:    row.TenantID,
		Name:        row.Name,
		Description: row.Description,
		IsDefault:   row.IsDefault,
		IsRemovable: row.IsRemovable,
	}
}

func overrideFromRow(row datamodel.UserPermission) permission.Override {
	return permission.Override{
		ID:           row.ID,
		UserID:       row.UserID,
		PermissionID: row.PermissionID,
		Allowed:      row.Allowed,
		ExpiresAt:    row.ExpiresAt,
		GrantedBy:    row.GrantedBy,
		Reason:       row.Reason,
		CreatedAt:    row.CreatedAt,
	}
}
