package permissionrequest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	prDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/core/events"
	coreuser "github.com/frahmantamala/event-permission/internal/core/user"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/storage"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/frahmantamala/event-permission/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPermissionRequest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PermissionRequest Suite")
}

type mockRepository struct {
	mu         sync.Mutex
	rows       map[string]*prDatamodel.PermissionRequest
	createErr  error
	listErr    error
	respondErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{rows: map[string]*prDatamodel.PermissionRequest{}}
}

func (m *mockRepository) Create(_ context.Context, req *prDatamodel.PermissionRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.rows[req.ID] = &cp
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*prDatamodel.PermissionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, permissionrequest.ErrRequestNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *mockRepository) matching(filter permissionrequest.Filter) []*prDatamodel.PermissionRequest {
	var out []*prDatamodel.PermissionRequest
	for _, r := range m.rows {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.DepartmentID != "" && r.DepartmentID != filter.DepartmentID {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if string(s) == r.Status {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (m *mockRepository) List(_ context.Context, filter permissionrequest.Filter) ([]*prDatamodel.PermissionRequest, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(filter)
	sort.Slice(out, func(i, j int) bool {
		if filter.Order == permissionrequest.OrderRespondedDesc && out[i].RespondedAt != nil && out[j].RespondedAt != nil {
			return out[i].RespondedAt.After(*out[j].RespondedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockRepository) CountByStatus(_ context.Context, filter permissionrequest.Filter) ([]prDatamodel.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[string]int64{}
	for _, r := range m.matching(filter) {
		totals[r.Status]++
	}
	var out []prDatamodel.StatusCount
	for s, n := range totals {
		out = append(out, prDatamodel.StatusCount{Status: s, Total: n})
	}
	return out, nil
}

func (m *mockRepository) CountDistinctStudents(_ context.Context, departmentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for _, r := range m.matching(permissionrequest.Filter{DepartmentID: departmentID}) {
		seen[r.StudentID] = true
	}
	return int64(len(seen)), nil
}

func (m *mockRepository) Respond(_ context.Context, id string, resp permissionrequest.Response) error {
	if m.respondErr != nil {
		return m.respondErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != string(permissionrequest.StatusPending) {
		return permissionrequest.ErrNotPending
	}
	msg, by, at := resp.Message, resp.RespondedBy, resp.RespondedAt
	row.Status = string(resp.Status)
	row.ResponseMessage = &msg
	row.RespondedBy = &by
	row.RespondedAt = &at
	return nil
}

type mockUsers struct {
	users map[string]*user.User
	err   error
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

type mockDocuments struct {
	uploaded  []string
	removed   []string
	failOn    string
	uploadErr error
}

func (m *mockDocuments) Upload(_ context.Context, owner, folder, filename string, body io.Reader) (storage.Object, error) {
	if folder == m.failOn {
		return storage.Object{}, m.uploadErr
	}
	if _, err := io.ReadAll(body); err != nil {
		return storage.Object{}, err
	}
	p := fmt.Sprintf("%s/%s/%d-%s", owner, folder, len(m.uploaded), filename)
	m.uploaded = append(m.uploaded, p)
	return storage.Object{Path: p, URL: "/documents/" + p}, nil
}

func (m *mockDocuments) Remove(_ context.Context, p string) error {
	m.removed = append(m.removed, p)
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func strPtr(s string) *string { return &s }

func doc(name, body string) *permissionrequest.Document {
	return &permissionrequest.Document{Filename: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func validForm() permissionrequest.CreateRequestDTO {
	return permissionrequest.CreateRequestDTO{
		EventName:     "Hackathon",
		EventDate:     "2026-04-10",
		EventLocation: "Main Hall",
		Reason:        "Competition",
		Description:   "Inter-college hackathon",
		DepartmentID:  "CS",
	}
}

var _ = Describe("Service", func() {
	var (
		repo      *mockRepository
		users     *mockUsers
		documents *mockDocuments
		publisher *recordingPublisher
		service   *permissionrequest.Service
		ctx       context.Context

		studentSession = internal.Session{UserID: "student-1", Role: coreuser.RoleStudent}
		hodSession     = internal.Session{UserID: "hod-cs", Role: coreuser.RoleHOD}
		facultySession = internal.Session{UserID: "faculty-cs", Role: coreuser.RoleFaculty}
		foreignHOD     = internal.Session{UserID: "hod-ee", Role: coreuser.RoleHOD}
	)

	BeforeEach(func() {
		repo = newMockRepository()
		users = &mockUsers{users: map[string]*user.User{
			"student-1":  {ID: "student-1", Name: "Asha Rao", Role: coreuser.RoleStudent, RollNumber: strPtr("CS-042")},
			"hod-cs":     {ID: "hod-cs", Name: "Dr. Iyer", Role: coreuser.RoleHOD, Department: strPtr("CS")},
			"faculty-cs": {ID: "faculty-cs", Name: "Prof. Khan", Role: coreuser.RoleFaculty, Department: strPtr("CS")},
			"hod-ee":     {ID: "hod-ee", Name: "Dr. Bose", Role: coreuser.RoleHOD, Department: strPtr("EE")},
		}}
		documents = &mockDocuments{}
		publisher = &recordingPublisher{}
		service = permissionrequest.NewService(repo, users, documents, publisher, 1024, logger.Discard())
		ctx = context.Background()
	})

	submit := func() *permissionrequest.PermissionRequest {
		req, err := service.Create(ctx, studentSession, validForm(), doc("proof.pdf", "p"), doc("letter.pdf", "l"))
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	Describe("Create", func() {
		It("snapshots the student profile and stores a pending request", func() {
			form := validForm()
			form.EventName = "  Hackathon  "

			req, err := service.Create(ctx, studentSession, form, doc("proof.pdf", "p"), doc("letter.pdf", "l"))
			Expect(err).NotTo(HaveOccurred())

			Expect(req.Status).To(Equal(permissionrequest.StatusPending))
			Expect(req.StudentName).To(Equal("Asha Rao"))
			Expect(req.StudentRollNumber).To(Equal("CS-042"))
			Expect(req.EventName).To(Equal("Hackathon"))
			Expect(req.ProofURL).To(ContainSubstring("student-1/proofs/"))
			Expect(req.LetterURL).To(ContainSubstring("student-1/letters/"))
			Expect(req.RespondedAt).To(BeNil())

			row, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Status).To(Equal("pending"))
			Expect(row.EventDate.Format(permissionrequest.EventDateLayout)).To(Equal("2026-04-10"))

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeRequestSubmitted))
		})

		It("rejects a missing proof without touching storage", func() {
			_, err := service.Create(ctx, studentSession, validForm(), nil, doc("letter.pdf", "l"))
			Expect(err).To(MatchError(permissionrequest.ErrMissingProof))
			Expect(err).NotTo(MatchError(permissionrequest.ErrMissingLetter))
			Expect(failedField(err)).To(Equal("proof_file"))
			Expect(documents.uploaded).To(BeEmpty())
			Expect(repo.rows).To(BeEmpty())
		})

		It("rejects a missing letter", func() {
			_, err := service.Create(ctx, studentSession, validForm(), doc("proof.pdf", "p"), nil)
			Expect(err).To(MatchError(permissionrequest.ErrMissingLetter))
			Expect(err).NotTo(MatchError(permissionrequest.ErrMissingProof))
			Expect(failedField(err)).To(Equal("letter_file"))
			Expect(repo.rows).To(BeEmpty())
		})

		It("rejects documents above the size limit", func() {
			_, err := service.Create(ctx, studentSession, validForm(), doc("proof.pdf", strings.Repeat("x", 2048)), doc("letter.pdf", "l"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
			Expect(repo.rows).To(BeEmpty())
		})

		It("rejects malformed dates", func() {
			form := validForm()
			form.EventDate = "10/04/2026"
			_, err := service.Create(ctx, studentSession, form, doc("proof.pdf", "p"), doc("letter.pdf", "l"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("removes the proof when the letter upload fails", func() {
			documents.failOn = storage.FolderLetters
			documents.uploadErr = errors.New("disk full")

			_, err := service.Create(ctx, studentSession, validForm(), doc("proof.pdf", "p"), doc("letter.pdf", "l"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeExternal))
			Expect(documents.removed).To(Equal(documents.uploaded))
			Expect(repo.rows).To(BeEmpty())
			Expect(publisher.events).To(BeEmpty())
		})

		It("removes both documents when the insert fails", func() {
			repo.createErr = errors.New("connection reset")

			_, err := service.Create(ctx, studentSession, validForm(), doc("proof.pdf", "p"), doc("letter.pdf", "l"))
			Expect(err).To(HaveOccurred())
			Expect(documents.removed).To(HaveLen(2))
		})

		It("refuses non-students", func() {
			_, err := service.Create(ctx, hodSession, validForm(), doc("proof.pdf", "p"), doc("letter.pdf", "l"))
			Expect(err).To(MatchError(internal.ErrNotStudent))
		})
	})

	Describe("Respond", func() {
		var req *permissionrequest.PermissionRequest

		BeforeEach(func() {
			req = submit()
			publisher.events = nil
		})

		It("lets the department HOD approve", func() {
			updated, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved", ResponseMessage: "Go ahead"})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(permissionrequest.StatusApproved))

			row, _ := repo.GetByID(ctx, req.ID)
			Expect(row.Status).To(Equal("approved"))
			Expect(*row.ResponseMessage).To(Equal("Go ahead"))
			Expect(*row.RespondedBy).To(Equal("hod-cs"))
			Expect(row.RespondedAt).NotTo(BeNil())

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType()).To(Equal(events.EventTypeRequestResponded))
		})

		It("refuses faculty who are not HOD", func() {
			_, err := service.Respond(ctx, facultySession, req.ID, permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).To(MatchError(internal.ErrNotDecider))

			row, _ := repo.GetByID(ctx, req.ID)
			Expect(row.Status).To(Equal("pending"))
		})

		It("refuses a HOD of another department", func() {
			_, err := service.Respond(ctx, foreignHOD, req.ID, permissionrequest.RespondDTO{Status: "rejected"})
			Expect(err).To(MatchError(internal.ErrDepartmentMismatch))
		})

		It("fails closed when the responder cannot be resolved", func() {
			users.err = errors.New("db down")
			_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).To(MatchError(internal.ErrDepartmentMismatch))
		})

		It("rejects pending as a target status", func() {
			_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "pending"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("returns not found for unknown requests", func() {
			_, err := service.Respond(ctx, hodSession, "missing", permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})

		It("leaves a terminal request unchanged", func() {
			_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "rejected", ResponseMessage: "No"})
			Expect(err).NotTo(HaveOccurred())
			before, _ := repo.GetByID(ctx, req.ID)

			_, err = service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved", ResponseMessage: "Yes"})
			Expect(err).To(MatchError(internal.ErrRequestAlreadyResponded))

			after, _ := repo.GetByID(ctx, req.ID)
			Expect(after).To(Equal(before))
		})

		It("maps a lost race to a conflict", func() {
			repo.respondErr = permissionrequest.ErrNotPending
			_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).To(MatchError(internal.ErrRequestAlreadyResponded))
			Expect(publisher.events).To(BeEmpty())
		})
	})

	Describe("GetForResponder", func() {
		var req *permissionrequest.PermissionRequest

		BeforeEach(func() {
			req = submit()
		})

		It("offers the response form to the HOD", func() {
			detail, err := service.GetForResponder(ctx, hodSession, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.CanRespond).To(BeTrue())
		})

		It("shows faculty the request with a notice", func() {
			detail, err := service.GetForResponder(ctx, facultySession, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.CanRespond).To(BeFalse())
			Expect(detail.Notice).To(Equal("Only HODs can approve or reject requests"))
		})

		It("hides requests of other departments", func() {
			_, err := service.GetForResponder(ctx, foreignHOD, req.ID)
			Expect(err).To(MatchError(internal.ErrDepartmentMismatch))
		})

		It("does not offer a response once processed", func() {
			_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).NotTo(HaveOccurred())

			detail, err := service.GetForResponder(ctx, hodSession, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.CanRespond).To(BeFalse())
		})
	})

	Describe("queries", func() {
		It("derives counts from the current rows", func() {
			first := submit()
			submit()
			submit()
			_, err := service.Respond(ctx, hodSession, first.ID, permissionrequest.RespondDTO{Status: "approved"})
			Expect(err).NotTo(HaveOccurred())

			counts, err := service.Counts(ctx, permissionrequest.Filter{StudentID: "student-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(counts).To(Equal(permissionrequest.Counts{Pending: 2, Approved: 1, Rejected: 0, Total: 3}))
		})

		It("lists the department queue and history separately", func() {
			first := submit()
			submit()
			_, err := service.Respond(ctx, hodSession, first.ID, permissionrequest.RespondDTO{Status: "rejected"})
			Expect(err).NotTo(HaveOccurred())

			pending, err := service.ListPendingForDepartment(ctx, facultySession, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))

			history, err := service.History(ctx, facultySession)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].ID).To(Equal(first.ID))
		})

		It("scopes the queue to the responder's department", func() {
			submit()
			pending, err := service.ListPendingForDepartment(ctx, foreignHOD, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("counts distinct students", func() {
			submit()
			submit()
			n, err := service.UniqueStudents(ctx, "CS")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeEquivalentTo(1))
		})

		It("wraps store failures", func() {
			repo.listErr = errors.New("timeout")
			_, err := service.ListForStudent(ctx, studentSession, 5)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	It("records the time of the response", func() {
		req := submit()
		before := time.Now().UTC().Add(-time.Second)
		_, err := service.Respond(ctx, hodSession, req.ID, permissionrequest.RespondDTO{Status: "approved"})
		Expect(err).NotTo(HaveOccurred())
		row, _ := repo.GetByID(ctx, req.ID)
		Expect(row.RespondedAt.After(before)).To(BeTrue())
	})
})

func failedField(err error) string {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return ""
	}
	details, ok := appErr.Details.(internal.ValidationErrors)
	if !ok || len(details.Errors) == 0 {
		return ""
	}
	return details.Errors[0].Field
}
