package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestPermissionPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Postgres Suite")
}

var _ = Describe("Permission Store", func() {
	var (
		ctx    context.Context
		db     *gorm.DB
		fx     *testdb.Fixture
		store  *permissionPostgres.Store
		tenant int64
		readID int64
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = testdb.NewFixture(db)
		store = permissionPostgres.NewStore(db)

		tenant = fx.Tenant("acme")
		readID = fx.Capability("auditFinding", "read")
	})

	It("checks tenant existence", func() {
		ok, err := store.TenantExists(ctx, tenant)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = store.TenantExists(ctx, tenant+100)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("maps a missing capability to the catalog error", func() {
		_, err := store.FindCapability(ctx, "payroll", "read")
		Expect(err).To(MatchError(permission.ErrCapabilityNotFound))
	})

	Describe("overrides", func() {
		It("skips expired rows", func() {
			now := time.Now().UTC()
			past := now.Add(-time.Hour)
			future := now.Add(time.Hour)

			expired := fx.User(tenant, "expired@acme.test")
			active := fx.User(tenant, "active@acme.test")
			forever := fx.User(tenant, "forever@acme.test")
			fx.Override(expired, readID, true, &past)
			fx.Override(active, readID, false, &future)
			fx.Override(forever, readID, true, nil)

			one, err := store.FindActiveOverride(ctx, expired, readID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(one).To(BeNil())

			all, err := store.FindActiveOverrides(ctx, []int64{expired, active, forever}, readID, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			byUser := map[int64]bool{}
			for _, o := range all {
				byUser[o.UserID] = o.Allowed
			}
			Expect(byUser).To(Equal(map[int64]bool{active: false, forever: true}))
		})
	})

	Describe("roles", func() {
		It("returns only granting roles among the candidates", func() {
			granted := fx.Role(tenant, "HOD")
			denied := fx.Role(tenant, "STAFF")
			silent := fx.Role(tenant, "GUEST")
			fx.Grant(granted, readID, true)
			fx.Grant(denied, readID, false)

			ids, err := store.GrantingRoleIDs(ctx, []int64{granted, denied, silent}, readID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ConsistOf(granted))

			roles, err := store.FindRoles(ctx, []int64{granted, silent, 9999})
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(HaveLen(2))
		})
	})

	Describe("LoadAssignmentsFor", func() {
		It("lists tenant-wide assignments before department ones", func() {
			userID := fx.User(tenant, "hod@acme.test")
			finance := fx.Department(tenant, "Finance")
			hod := fx.Role(tenant, "HOD")
			auditor := fx.Role(tenant, "AUDITOR")
			fx.AssignDepartmentRole(userID, finance, hod, true)
			fx.AssignTenantRole(userID, auditor)

			byUser, err := permissionPostgres.LoadAssignmentsFor(db, []int64{userID})
			Expect(err).NotTo(HaveOccurred())

			got := byUser[userID]
			Expect(got).To(HaveLen(2))
			Expect(got[0]).To(Equal(permission.TenantWide(auditor).Named("AUDITOR", "")))
			Expect(got[1].RoleName).To(Equal("HOD"))
			Expect(got[1].DepartmentName).To(Equal("Finance"))
			Expect(got[1].IsPrimaryRole).To(BeTrue())
		})
	})
})
