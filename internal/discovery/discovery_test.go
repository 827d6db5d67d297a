package discovery_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/frahmantamala/audit-management/internal/core/testdb"
	"github.com/frahmantamala/audit-management/internal/discovery"
	discoveryPostgres "github.com/frahmantamala/audit-management/internal/discovery/postgres"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionPostgres "github.com/frahmantamala/audit-management/internal/permission/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDiscovery(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Discovery Suite")
}

func userIDs(rs []discovery.Recipient) []int64 {
	ids := make([]int64, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.UserID)
	}
	return ids
}

var _ = Describe("Finder", func() {
	var (
		ctx      context.Context
		fx       *testdb.Fixture
		resolver *permission.Resolver
		members  *discoveryPostgres.MemberRepository
		finder   *discovery.Finder
		logger   *slog.Logger

		tenant, otherTenant int64
		finance, it         int64
		readID              int64
		hodRole, qaRole     int64
		staffRole           int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx = testdb.NewFixture(db)

		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		resolver = permission.NewResolver(permissionPostgres.NewStore(db), logger)
		members = discoveryPostgres.NewMemberRepository(db)
		finder = discovery.NewFinder(members, resolver, logger, discovery.Options{})

		tenant = fx.Tenant("acme")
		otherTenant = fx.Tenant("globex")
		finance = fx.Department(tenant, "Finance")
		it = fx.Department(tenant, "IT")
		readID = fx.Capability("auditFinding", "read")

		hodRole = fx.Role(tenant, "HOD")
		qaRole = fx.Role(tenant, "QUALITY MANAGER")
		staffRole = fx.Role(tenant, "STAFF")
		fx.Grant(hodRole, readID, true)
		fx.Grant(qaRole, readID, true)
	})

	Context("department-scoped holders", func() {
		var financeHead, itHead int64

		BeforeEach(func() {
			financeHead = fx.User(tenant, "hod.finance@acme.test")
			itHead = fx.User(tenant, "hod.it@acme.test")
			fx.AssignDepartmentRole(financeHead, finance, hodRole, true)
			fx.AssignDepartmentRole(itHead, it, hodRole, true)
		})

		It("counts a department role only for its department", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]discovery.Recipient{
				{UserID: financeHead, RoleName: "HOD", DepartmentName: "Finance"},
			}))
		})

		It("returns every department holder without a filter", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(userIDs(got)).To(Equal([]int64{financeHead, itHead}))
		})

		It("matches department names after trimming", func() {
			fx.RenameDepartment(finance, "  Finance ")

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", " Finance  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].UserID).To(Equal(financeHead))
			Expect(got[0].DepartmentName).To(Equal("Finance"))
		})

		It("normalizes the capability", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "audit-finding", "READ", "IT")
			Expect(err).NotTo(HaveOccurred())
			Expect(userIDs(got)).To(Equal([]int64{itHead}))
		})

		It("skips inactive members", func() {
			fx.Deactivate(financeHead)

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})

	Context("tenant-wide holders", func() {
		var qa int64

		BeforeEach(func() {
			qa = fx.User(tenant, "qa@acme.test")
			fx.AssignTenantRole(qa, qaRole)
		})

		It("needs a department attachment when a filter is given", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("qualifies through any attachment to the department", func() {
			fx.AssignDepartmentRole(qa, finance, staffRole, false)

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]discovery.Recipient{
				{UserID: qa, RoleName: "QUALITY MANAGER", DepartmentName: "Finance"},
			}))
		})

		It("is included without a filter", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]discovery.Recipient{{UserID: qa, RoleName: "QUALITY MANAGER"}}))
		})

		It("reports a holder of several granting roles once, by the first match", func() {
			fx.AssignDepartmentRole(qa, finance, hodRole, true)

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].RoleName).To(Equal("QUALITY MANAGER"))
		})
	})

	Context("tenant isolation", func() {
		It("never returns members of another tenant", func() {
			foreignRole := fx.Role(otherTenant, "HOD")
			fx.Grant(foreignRole, readID, true)
			foreignDept := fx.Department(otherTenant, "Finance")
			outsider := fx.User(otherTenant, "hod@globex.test")
			fx.AssignDepartmentRole(outsider, foreignDept, foreignRole, true)

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("ignores a role assignment that points at another tenant's role", func() {
			foreignRole := fx.Role(otherTenant, "HOD")
			fx.Grant(foreignRole, readID, true)
			insider := fx.User(tenant, "sneaky@acme.test")
			fx.AssignDepartmentRole(insider, finance, foreignRole, true)

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})

		It("errors for an unknown tenant", func() {
			_, err := finder.FindPrincipalsWithCapability(ctx, 9999, "auditFinding", "read", "")
			Expect(err).To(MatchError(permission.ErrTenantNotFound))
		})

		It("errors for a capability outside the catalog", func() {
			_, err := finder.FindPrincipalsWithCapability(ctx, tenant, "payroll", "read", "")
			Expect(err).To(MatchError(permission.ErrCapabilityNotFound))
		})
	})

	Context("with overrides", func() {
		var head, helper int64

		BeforeEach(func() {
			head = fx.User(tenant, "hod@acme.test")
			helper = fx.User(tenant, "helper@acme.test")
			fx.AssignDepartmentRole(head, finance, hodRole, true)
			fx.AssignDepartmentRole(helper, finance, staffRole, false)
			fx.Override(head, readID, false, nil)
			fx.Override(helper, readID, true, nil)
		})

		It("ignores overrides by default", func() {
			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(userIDs(got)).To(Equal([]int64{head}))
		})

		It("honors them when asked to", func() {
			finder = discovery.NewFinder(members, resolver, logger, discovery.Options{ConsultOverrides: true})

			got, err := finder.FindPrincipalsWithCapability(ctx, tenant, "auditFinding", "read", "Finance")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]discovery.Recipient{
				{UserID: helper, RoleName: discovery.OverrideRoleName, DepartmentName: "Finance"},
			}))
		})
	})
})
