package swagger_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frahmantamala/audit-management/internal/transport/swagger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSwagger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Swagger Suite")
}

const specPath = "../../../api/openapi.yml"

var _ = Describe("OpenAPI document", func() {
	It("loads and validates", func() {
		doc, err := swagger.LoadSpec(specPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Paths.Find("/permissions/check")).NotTo(BeNil())
		Expect(doc.Paths.Find("/recipients")).NotTo(BeNil())
		Expect(doc.Paths.Find("/users/me")).NotTo(BeNil())
		Expect(doc.Paths.Find("/audits/{auditID}/findings/commit")).NotTo(BeNil())
	})

	It("fails on a broken document", func() {
		path := filepath.Join(GinkgoT().TempDir(), "broken.yml")
		Expect(os.WriteFile(path, []byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"), 0o600)).To(Succeed())

		_, err := swagger.LoadSpec(path)
		Expect(err).To(MatchError(ContainSubstring("invalid openapi spec")))
	})

	It("serves the raw document", func() {
		rec := httptest.NewRecorder()
		swagger.SpecHandler(specPath)(rec, httptest.NewRequest(http.MethodGet, swagger.SpecURL, nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/yaml"))
		Expect(rec.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
	})
})
