// Package testdb opens throwaway sqlite databases with the full schema and
// seeds tenancy and permission fixtures for package tests.
package testdb

import (
	"fmt"
	"path/filepath"
	"time"

	auditmodel "github.com/frahmantamala/audit-management/internal/core/datamodel/audit"
	notificationmodel "github.com/frahmantamala/audit-management/internal/core/datamodel/notification"
	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table of the schema in dependency order.
func Models() []interface{} {
	models := datamodel.All()
	return append(models,
		&auditmodel.Finding{}, &auditmodel.AuditProgram{}, &auditmodel.DocumentChangeRequest{},
		&notificationmodel.Notification{},
	)
}

// Open returns an in-memory database pinned to one connection, so every
// query sees the same schema.
func Open() (*gorm.DB, error) {
	return open(":memory:", 1)
}

// OpenFile returns a database backed by a file under dir. Use it when code
// reads through the pool while a transaction is open.
func OpenFile(dir string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.Join(dir, "test.db"))
	return open(dsn, 4)
}

func open(dsn string, maxConns int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxConns)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

// Fixture writes rows directly, bypassing the services under test.
type Fixture struct {
	DB *gorm.DB
}

func NewFixture(db *gorm.DB) *Fixture {
	return &Fixture{DB: db}
}

func (f *Fixture) Tenant(name string) int64 {
	row := datamodel.Tenant{Name: name}
	must(f.DB.Create(&row).Error)
	return row.ID
}

func (f *Fixture) User(tenantID int64, email string) int64 {
	row := datamodel.User{TenantID: tenantID, Email: email, Name: email}
	must(f.DB.Create(&row).Error)
	return row.ID
}

// UserWithPassword stores an already hashed password.
func (f *Fixture) UserWithPassword(tenantID int64, email, hash string) int64 {
	row := datamodel.User{TenantID: tenantID, Email: email, Name: email, PasswordHash: hash}
	must(f.DB.Create(&row).Error)
	return row.ID
}

// Deactivate flips is_active after creation; the column defaults to true.
func (f *Fixture) Deactivate(userID int64) {
	must(f.DB.Model(&datamodel.User{}).Where("id = ?", userID).Update("is_active", false).Error)
}

func (f *Fixture) Department(tenantID int64, name string) int64 {
	row := datamodel.Department{TenantID: tenantID, Name: name}
	must(f.DB.Create(&row).Error)
	return row.ID
}

func (f *Fixture) Role(tenantID int64, name string) int64 {
	row := datamodel.Role{TenantID: tenantID, Name: name}
	must(f.DB.Create(&row).Error)
	return row.ID
}

func (f *Fixture) Capability(module, action string) int64 {
	row := datamodel.Permission{Module: module, Action: action}
	must(f.DB.Create(&row).Error)
	return row.ID
}

func (f *Fixture) Grant(roleID, permissionID int64, allowed bool) {
	row := datamodel.RolePermission{RoleID: roleID, PermissionID: permissionID, Allowed: allowed}
	must(f.DB.Create(&row).Error)
}

func (f *Fixture) AssignTenantRole(userID, roleID int64) {
	row := datamodel.UserRole{UserID: userID, RoleID: roleID}
	must(f.DB.Create(&row).Error)
}

func (f *Fixture) AssignDepartmentRole(userID, departmentID, roleID int64, primaryRole bool) {
	row := datamodel.UserDepartmentRole{
		UserID: userID, DepartmentID: departmentID, RoleID: roleID,
		IsPrimaryRole: primaryRole, IsPrimaryDepartment: true,
	}
	must(f.DB.Create(&row).Error)
}

// Override stores a per-user decision; a nil expiresAt never expires.
func (f *Fixture) Override(userID, permissionID int64, allowed bool, expiresAt *time.Time) {
	row := datamodel.UserPermission{UserID: userID, PermissionID: permissionID, Allowed: allowed, ExpiresAt: expiresAt}
	must(f.DB.Create(&row).Error)
}

// RenameDepartment writes a raw name, e.g. with stray whitespace.
func (f *Fixture) RenameDepartment(departmentID int64, name string) {
	must(f.DB.Model(&datamodel.Department{}).Where("id = ?", departmentID).Update("name", name).Error)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
