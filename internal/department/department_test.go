package department_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	datamodel "github.com/frahmantamala/audit-management/internal/core/datamodel/permission"
	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/department"
	departmentPostgres "github.com/frahmantamala/audit-management/internal/department/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestDepartment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Department Suite")
}

var _ = Describe("IsHeadRole", func() {
	DescribeTable("matches head role names loosely",
		func(name string, expected bool) {
			Expect(department.IsHeadRole(name)).To(Equal(expected))
		},
		Entry("exact", "HOD", true),
		Entry("lower case with spaces", " hod auditor ", true),
		Entry("other role", "AUDITOR", false),
	)
})

var _ = Describe("Department Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		fx      *testdb.Fixture
		service *department.Service

		tenant         int64
		finance, it    int64
		hodRole, staff int64
	)

	storedHead := func(departmentID int64) *int64 {
		var row datamodel.Department
		Expect(db.First(&row, departmentID).Error).To(Succeed())
		return row.HODUserID
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = testdb.NewFixture(db)

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = department.NewService(departmentPostgres.NewDepartmentRepository(db), logger)

		tenant = fx.Tenant("acme")
		finance = fx.Department(tenant, "Finance")
		it = fx.Department(tenant, "IT")
		hodRole = fx.Role(tenant, "HOD")
		staff = fx.Role(tenant, "STAFF")
	})

	Describe("Head", func() {
		It("prefers the primary head assignment", func() {
			deputy := fx.User(tenant, "deputy@acme.test")
			head := fx.User(tenant, "head@acme.test")
			fx.AssignDepartmentRole(deputy, finance, hodRole, false)
			fx.AssignDepartmentRole(head, finance, hodRole, true)

			got, err := service.Head(ctx, tenant, " Finance ")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(&department.Head{
				UserID: head, DepartmentID: finance, DepartmentName: "Finance", RoleName: "HOD", IsPrimaryRole: true,
			}))
		})

		It("ignores non-head roles and inactive users", func() {
			clerk := fx.User(tenant, "clerk@acme.test")
			gone := fx.User(tenant, "gone@acme.test")
			fx.AssignDepartmentRole(clerk, it, staff, true)
			fx.AssignDepartmentRole(gone, it, hodRole, true)
			fx.Deactivate(gone)

			got, err := service.Head(ctx, tenant, "IT")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("matches head role names regardless of case and padding", func() {
			loose := fx.Role(tenant, " Hod ")
			head := fx.User(tenant, "loose@acme.test")
			fx.AssignDepartmentRole(head, it, loose, true)

			got, err := service.Head(ctx, tenant, "IT")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.UserID).To(Equal(head))

			Expect(departmentPostgres.SyncHead(db, it)).To(Succeed())
			Expect(storedHead(it)).To(HaveValue(Equal(head)))
		})

		It("reports an unknown department", func() {
			_, err := service.Head(ctx, tenant, "Legal")
			Expect(err).To(MatchError(department.ErrDepartmentNotFound))
		})
	})

	Describe("Reconcile", func() {
		It("rewrites drifted projections only", func() {
			head := fx.User(tenant, "head@acme.test")
			stale := fx.User(tenant, "stale@acme.test")
			fx.AssignDepartmentRole(head, finance, hodRole, true)
			Expect(db.Model(&datamodel.Department{}).Where("id = ?", it).Update("hod_user_id", stale).Error).To(Succeed())

			drifts, err := service.Reconcile(ctx, tenant)
			Expect(err).NotTo(HaveOccurred())
			Expect(drifts).To(HaveLen(2))
			Expect(drifts[0].DepartmentID).To(Equal(finance))
			Expect(drifts[0].Stored).To(BeNil())
			Expect(*drifts[0].Derived).To(Equal(head))
			Expect(drifts[1].DepartmentID).To(Equal(it))
			Expect(*drifts[1].Stored).To(Equal(stale))
			Expect(drifts[1].Derived).To(BeNil())

			Expect(*storedHead(finance)).To(Equal(head))
			Expect(storedHead(it)).To(BeNil())

			again, err := service.Reconcile(ctx, tenant)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeEmpty())
		})

		It("walks every tenant", func() {
			other := fx.Tenant("globex")
			otherDept := fx.Department(other, "Finance")
			otherHOD := fx.Role(other, "HOD")
			head := fx.User(other, "hod@globex.test")
			fx.AssignDepartmentRole(head, otherDept, otherHOD, true)

			drifts, err := service.ReconcileAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(drifts).To(HaveLen(1))
			Expect(*storedHead(otherDept)).To(Equal(head))
		})
	})

	Describe("SyncHead", func() {
		It("ignores a head role borrowed from another tenant", func() {
			other := fx.Tenant("globex")
			foreignHOD := fx.Role(other, "HOD")
			user := fx.User(tenant, "sneaky@acme.test")
			fx.AssignDepartmentRole(user, finance, foreignHOD, true)

			Expect(departmentPostgres.SyncHead(db, finance)).To(Succeed())
			Expect(storedHead(finance)).To(BeNil())
		})
	})
})
