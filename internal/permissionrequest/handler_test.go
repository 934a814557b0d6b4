package permissionrequest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/event-permission/internal"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/frahmantamala/event-permission/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func multipartBody(fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		Expect(mw.WriteField(k, v)).To(Succeed())
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = fw.Write([]byte(content))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(mw.Close()).To(Succeed())
	return buf, mw.FormDataContentType()
}

func withSession(req *http.Request, s internal.Session) *http.Request {
	return req.WithContext(internal.ContextWithSession(req.Context(), s))
}

var _ = Describe("Handler", func() {
	var (
		repo    *mockRepository
		users   *mockUsers
		docs    *mockDocuments
		router  chi.Router
		student internal.Session
		hod     internal.Session
	)

	formFields := map[string]string{
		"event_name":     "Robotics Expo",
		"event_date":     "2026-05-02",
		"event_location": "Hall B",
		"reason":         "Presenting a project",
		"description":    "Two day expo",
		"department_id":  "CS",
	}

	BeforeEach(func() {
		repo = newMockRepository()
		users = &mockUsers{users: map[string]*user.User{
			"student-1": {ID: "student-1", Name: "Asha Rao", Role: coreuser.RoleStudent, RollNumber: strPtr("CS-042")},
			"hod-cs":    {ID: "hod-cs", Name: "Dr. Iyer", Role: coreuser.RoleHOD, Department: strPtr("CS")},
		}}
		docs = &mockDocuments{}
		svc := permissionrequest.NewService(repo, users, docs, nil, 1<<20, logger.Discard())
		h := permissionrequest.NewHandler(svc, 1<<20)

		router = chi.NewRouter()
		router.Post("/student/new-request", h.CreateRequest)
		router.Get("/student/my-requests", h.MyRequests)
		router.Get("/faculty/requests", h.PendingRequests)
		router.Get("/faculty/requests/{id}", h.GetRequest)
		router.Post("/faculty/requests/{id}", h.RespondRequest)
		router.Get("/faculty/history", h.History)

		student = internal.Session{UserID: "student-1", Role: coreuser.RoleStudent}
		hod = internal.Session{UserID: "hod-cs", Role: coreuser.RoleHOD}
	})

	create := func(files map[string]string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(formFields, files)
		req := httptest.NewRequest(http.MethodPost, "/student/new-request", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, withSession(req, student))
		return w
	}

	It("creates a request from a multipart form", func() {
		w := create(map[string]string{
			permissionrequest.FormFieldProof:  "proof",
			permissionrequest.FormFieldLetter: "letter",
		})

		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp struct {
			Request    permissionrequest.PermissionRequest `json:"request"`
			RedirectTo string                              `json:"redirect_to"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Request.Status).To(Equal(permissionrequest.StatusPending))
		Expect(resp.Request.StudentName).To(Equal("Asha Rao"))
		Expect(resp.RedirectTo).To(Equal("/student/dashboard"))
		Expect(docs.uploaded).To(HaveLen(2))
	})

	It("rejects a form without the letter", func() {
		w := create(map[string]string{permissionrequest.FormFieldProof: "proof"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring(string(internal.ErrCodeMissingDocument)))
		Expect(w.Body.String()).To(ContainSubstring(`"field":"letter_file"`))
		Expect(w.Body.String()).NotTo(ContainSubstring(`"field":"proof_file"`))
		Expect(repo.rows).To(BeEmpty())
	})

	It("rejects a non-multipart body", func() {
		req := httptest.NewRequest(http.MethodPost, "/student/new-request", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, withSession(req, student))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("requires a session", func() {
		req := httptest.NewRequest(http.MethodGet, "/student/my-requests", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	Context("with a submitted request", func() {
		var id string

		BeforeEach(func() {
			req, err := permissionrequest.NewService(repo, users, docs, nil, 0, logger.Discard()).
				Create(context.Background(), student, permissionrequest.CreateRequestDTO{
					EventName: "Expo", EventDate: "2026-05-02", EventLocation: "Hall", Reason: "r", Description: "d", DepartmentID: "CS",
				}, doc("p.pdf", "p"), doc("l.pdf", "l"))
			Expect(err).NotTo(HaveOccurred())
			id = req.ID
		})

		It("shows the detail with can_respond to the HOD", func() {
			req := httptest.NewRequest(http.MethodGet, "/faculty/requests/"+id, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, withSession(req, hod))

			Expect(w.Code).To(Equal(http.StatusOK))
			var detail permissionrequest.Detail
			Expect(json.NewDecoder(w.Body).Decode(&detail)).To(Succeed())
			Expect(detail.CanRespond).To(BeTrue())
			Expect(detail.Request.ID).To(Equal(id))
		})

		It("approves and then refuses a second response", func() {
			respond := func(status string) *httptest.ResponseRecorder {
				body := strings.NewReader(`{"status":"` + status + `","response_message":"ok"}`)
				req := httptest.NewRequest(http.MethodPost, "/faculty/requests/"+id, body)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, withSession(req, hod))
				return w
			}

			Expect(respond("approved").Code).To(Equal(http.StatusOK))
			Expect(respond("rejected").Code).To(Equal(http.StatusConflict))
		})

		It("returns 404 for unknown requests", func() {
			req := httptest.NewRequest(http.MethodGet, "/faculty/requests/unknown", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, withSession(req, hod))

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("lists the student's own requests", func() {
			req := httptest.NewRequest(http.MethodGet, "/student/my-requests", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, withSession(req, student))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Requests []permissionrequest.PermissionRequest `json:"requests"`
			}
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Requests).To(HaveLen(1))
		})

		It("degrades to an empty queue on store errors", func() {
			repo.listErr = errors.New("timeout")
			req := httptest.NewRequest(http.MethodGet, "/faculty/requests", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, withSession(req, hod))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"requests":[]`))
		})
	})
})
