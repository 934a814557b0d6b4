package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frahmantamala/event-permission/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
)

func TestStorage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storage Suite")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection dropped") }

var _ = Describe("DocumentStore", func() {
	var (
		fs    afero.Fs
		store *DocumentStore
		ctx   context.Context
		fixed time.Time
	)

	BeforeEach(func() {
		fs = afero.NewMemMapFs()
		store = NewDocumentStore(fs, "https://files.example.edu/", 64, logger.Discard())
		fixed = time.UnixMilli(1700000000123)
		store.now = func() time.Time { return fixed }
		ctx = context.Background()
	})

	Describe("Upload", func() {
		It("namespaces the file under owner and folder with a timestamp prefix", func() {
			obj, err := store.Upload(ctx, "student-1", FolderProofs, "certificate.pdf", strings.NewReader("pdf-bytes"))

			Expect(err).NotTo(HaveOccurred())
			Expect(obj.Path).To(Equal("student-1/proofs/1700000000123-certificate.pdf"))
			Expect(obj.URL).To(Equal("https://files.example.edu/documents/student-1/proofs/1700000000123-certificate.pdf"))
			Expect(obj.Size).To(BeEquivalentTo(9))

			data, err := afero.ReadFile(fs, "/"+obj.Path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("pdf-bytes"))
		})

		It("does not overwrite an upload made in the same millisecond", func() {
			first, err := store.Upload(ctx, "student-1", FolderLetters, "letter.pdf", strings.NewReader("one"))
			Expect(err).NotTo(HaveOccurred())
			second, err := store.Upload(ctx, "student-1", FolderLetters, "letter.pdf", strings.NewReader("two"))
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Path).NotTo(Equal(first.Path))
		})

		It("rejects owners that would escape the namespace", func() {
			_, err := store.Upload(ctx, "../other", FolderProofs, "x.pdf", strings.NewReader("x"))
			Expect(err).To(MatchError(ErrInvalidPath))
		})

		It("removes oversized uploads", func() {
			_, err := store.Upload(ctx, "student-1", FolderProofs, "big.pdf", strings.NewReader(strings.Repeat("a", 65)))
			Expect(err).To(MatchError(ErrTooLarge))

			exists, _ := afero.Exists(fs, "/student-1/proofs/1700000000123-big.pdf")
			Expect(exists).To(BeFalse())
		})

		It("removes partial uploads when the body fails", func() {
			_, err := store.Upload(ctx, "student-1", FolderProofs, "p.pdf", failingReader{})
			Expect(err).To(MatchError(ContainSubstring("connection dropped")))

			exists, _ := afero.Exists(fs, "/student-1/proofs/1700000000123-p.pdf")
			Expect(exists).To(BeFalse())
		})

		It("honours a cancelled context", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := store.Upload(cctx, "student-1", FolderProofs, "p.pdf", strings.NewReader("x"))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Remove", func() {
		It("deletes stored files and ignores missing ones", func() {
			obj, err := store.Upload(ctx, "student-1", FolderProofs, "p.pdf", strings.NewReader("x"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Remove(ctx, obj.Path)).To(Succeed())
			Expect(store.Remove(ctx, obj.Path)).To(Succeed())
		})
	})

	Describe("Check", func() {
		It("reports a reachable root", func() {
			Expect(store.Check(ctx)).To(Succeed())
		})

		It("fails when the root is gone", func() {
			store = NewDocumentStore(afero.NewBasePathFs(afero.NewMemMapFs(), "/missing"), "", 64, logger.Discard())
			Expect(store.Check(ctx)).NotTo(Succeed())
		})
	})

	Describe("SanitizeFilename", func() {
		It("strips directories and unsafe characters", func() {
			Expect(SanitizeFilename("../../etc/passwd")).To(Equal("passwd"))
			Expect(SanitizeFilename(`C:\Users\me\My Letter.pdf`)).To(Equal("My_Letter.pdf"))
			Expect(SanitizeFilename("")).To(Equal("document"))
		})
	})

	Describe("Handler", func() {
		It("serves stored documents", func() {
			obj, err := store.Upload(ctx, "student-1", FolderProofs, "proof.txt", strings.NewReader("hello"))
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, PublicPrefix+obj.Path, nil)
			w := httptest.NewRecorder()
			store.Handler().ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(w.Body)
			Expect(string(body)).To(Equal("hello"))
		})

		It("does not list directories", func() {
			_, err := store.Upload(ctx, "student-1", FolderProofs, "proof.txt", strings.NewReader("hello"))
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, PublicPrefix+"student-1/proofs/", nil)
			w := httptest.NewRecorder()
			store.Handler().ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
