package permissionrequest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/access"
	prDatamodel "github.com/frahmantamala/event-permission/internal/core/datamodel/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/core/events"
	"github.com/frahmantamala/event-permission/internal/storage"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/frahmantamala/event-permission/pkg/logger"
	"github.com/google/uuid"
)

// ErrNotPending is returned by Repository.Respond when the conditional
// update matched no pending row.
var ErrNotPending = errors.New("permission request is not pending")

type Order int

const (
	OrderCreatedDesc Order = iota
	OrderRespondedDesc
)

// Filter narrows list and count queries. Empty fields do not filter.
type Filter struct {
	StudentID    string
	DepartmentID string
	Statuses     []Status
	Order        Order
	Limit        int
}

type Repository interface {
	Create(ctx context.Context, req *prDatamodel.PermissionRequest) error
	GetByID(ctx context.Context, id string) (*prDatamodel.PermissionRequest, error)
	List(ctx context.Context, filter Filter) ([]*prDatamodel.PermissionRequest, error)
	CountByStatus(ctx context.Context, filter Filter) ([]prDatamodel.StatusCount, error)
	CountDistinctStudents(ctx context.Context, departmentID string) (int64, error)
	Respond(ctx context.Context, id string, resp Response) error
}

type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type DocumentStore interface {
	Upload(ctx context.Context, ownerID, folder, filename string, body io.Reader) (storage.Object, error)
	Remove(ctx context.Context, path string) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Counts is derived from the rows on every call.
type Counts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Total    int64 `json:"total"`
}

// Detail is a request as a responder sees it.
type Detail struct {
	Request    *PermissionRequest `json:"request"`
	CanRespond bool               `json:"can_respond"`
	Notice     string             `json:"notice,omitempty"`
}

type Service struct {
	repo           Repository
	users          UserDirectory
	documents      DocumentStore
	publisher      Publisher
	maxUploadBytes int64
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(repo Repository, users UserDirectory, documents DocumentStore, publisher Publisher, maxUploadBytes int64, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		users:          users,
		documents:      documents,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromOr(ctx, s.logger)
}

// Create validates the form, snapshots the student's profile, uploads both
// documents and inserts a pending request. Any failure before the insert
// leaves no row behind.
func (s *Service) Create(ctx context.Context, session internal.Session, dto CreateRequestDTO, proof, letter *Document) (*PermissionRequest, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateDocuments(proof, letter, s.maxUploadBytes); err != nil {
		return nil, err
	}

	student, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		s.log(ctx).Error("failed to load student profile", "error", err, "user_id", session.UserID)
		return nil, internal.NewInternalError("failed to load student profile", err)
	}
	if !student.Role.IsStudent() {
		return nil, internal.ErrNotStudent
	}

	proofObj, err := s.documents.Upload(ctx, student.ID, storage.FolderProofs, proof.Filename, proof.Body)
	if err != nil {
		return nil, s.uploadError(ctx, "proof", err)
	}
	letterObj, err := s.documents.Upload(ctx, student.ID, storage.FolderLetters, letter.Filename, letter.Body)
	if err != nil {
		s.discard(ctx, proofObj)
		return nil, s.uploadError(ctx, "letter", err)
	}

	req := &PermissionRequest{
		ID:                uuid.NewString(),
		StudentID:         student.ID,
		StudentName:       student.Name,
		StudentRollNumber: student.RollNumberValue(),
		EventName:         dto.EventName,
		EventDate:         dto.EventDate,
		EventLocation:     dto.EventLocation,
		Reason:            dto.Reason,
		Description:       dto.Description,
		ProofURL:          proofObj.URL,
		LetterURL:         letterObj.URL,
		DepartmentID:      dto.DepartmentID,
		Status:            StatusPending,
		CreatedAt:         s.now(),
	}

	if err := s.repo.Create(ctx, ToDataModel(req)); err != nil {
		s.log(ctx).Error("failed to insert permission request", "error", err, "student_id", student.ID)
		s.discard(ctx, proofObj)
		s.discard(ctx, letterObj)
		return nil, internal.NewInternalError("failed to submit request", err)
	}

	s.log(ctx).Info("permission request submitted",
		"request_id", req.ID,
		"student_id", req.StudentID,
		"department_id", req.DepartmentID)

	s.publish(ctx, events.NewRequestSubmittedEvent(req.ID, req.StudentID, req.DepartmentID))

	return req, nil
}

func (s *Service) uploadError(ctx context.Context, which string, err error) error {
	s.log(ctx).Error("document upload failed", "document", which, "error", err)
	if errors.Is(err, storage.ErrTooLarge) {
		return internal.NewValidationFieldError(which+"_file", which+" document is too large", internal.ErrCodeDocumentTooLarge)
	}
	return internal.NewUploadError(fmt.Sprintf("failed to upload %s document", which), err)
}

func (s *Service) discard(ctx context.Context, obj storage.Object) {
	if err := s.documents.Remove(ctx, obj.Path); err != nil {
		s.log(ctx).Warn("failed to remove orphaned document", "path", obj.Path, "error", err)
	}
}

// Respond moves a pending request to approved or rejected. The update is
// conditional on the row still being pending, so of two racing HODs only
// one succeeds.
func (s *Service) Respond(ctx context.Context, session internal.Session, requestID string, dto RespondDTO) (*PermissionRequest, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	responder, err := s.responder(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := access.CanDecide(responder, req.DepartmentID); err != nil {
		s.log(ctx).Warn("respond denied",
			"request_id", requestID,
			"responder_id", responder.UserID,
			"responder_department", responder.Department,
			"request_department", req.DepartmentID,
			"error", err)
		return nil, err
	}

	resp := Response{
		Status:      Status(dto.Status),
		Message:     dto.ResponseMessage,
		RespondedBy: responder.UserID,
		RespondedAt: s.now(),
	}
	if err := req.Apply(resp); err != nil {
		return nil, err
	}

	if err := s.repo.Respond(ctx, requestID, resp); err != nil {
		if errors.Is(err, ErrNotPending) {
			s.log(ctx).Warn("request already responded", "request_id", requestID, "responder_id", responder.UserID)
			return nil, ErrRequestAlreadyResponded
		}
		s.log(ctx).Error("failed to record response", "error", err, "request_id", requestID)
		return nil, internal.NewInternalError("failed to respond to the request", err)
	}

	s.log(ctx).Info("permission request responded",
		"request_id", requestID,
		"status", resp.Status,
		"responder_id", responder.UserID)

	s.publish(ctx, events.NewRequestRespondedEvent(req.ID, req.StudentID, req.DepartmentID, string(resp.Status), responder.UserID))

	return req, nil
}

func (s *Service) Get(ctx context.Context, id string) (*PermissionRequest, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, internal.NewInternalError("failed to load request", err)
	}
	return FromDataModel(row), nil
}

// GetForResponder enforces department scope. A profile lookup failure
// denies access.
func (s *Service) GetForResponder(ctx context.Context, session internal.Session, id string) (*Detail, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	responder, err := s.responder(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := access.CanView(responder, req.DepartmentID); err != nil {
		return nil, err
	}

	detail := &Detail{Request: req}
	if req.IsPending() {
		if decideErr := access.CanDecide(responder, req.DepartmentID); decideErr == nil {
			detail.CanRespond = true
		} else if appErr, ok := internal.IsAppError(decideErr); ok {
			detail.Notice = appErr.Message
		}
	}
	return detail, nil
}

// ListForStudent returns the caller's own requests, newest first.
func (s *Service) ListForStudent(ctx context.Context, session internal.Session, limit int) ([]*PermissionRequest, error) {
	return s.list(ctx, Filter{StudentID: session.UserID, Order: OrderCreatedDesc, Limit: limit})
}

// ListPendingForDepartment returns the responder's department queue.
func (s *Service) ListPendingForDepartment(ctx context.Context, session internal.Session, limit int) ([]*PermissionRequest, error) {
	responder, err := s.responder(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{
		DepartmentID: responder.Department,
		Statuses:     []Status{StatusPending},
		Order:        OrderCreatedDesc,
		Limit:        limit,
	})
}

// History returns processed requests of the responder's department, most
// recently responded first.
func (s *Service) History(ctx context.Context, session internal.Session) ([]*PermissionRequest, error) {
	responder, err := s.responder(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, Filter{
		DepartmentID: responder.Department,
		Statuses:     []Status{StatusApproved, StatusRejected},
		Order:        OrderRespondedDesc,
	})
}

func (s *Service) list(ctx context.Context, filter Filter) ([]*PermissionRequest, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internal.NewInternalError("failed to list requests", err)
	}
	return FromDataModelSlice(rows), nil
}

// Counts aggregates current rows by status.
func (s *Service) Counts(ctx context.Context, filter Filter) (Counts, error) {
	rows, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return Counts{}, internal.NewInternalError("failed to count requests", err)
	}
	var c Counts
	for _, r := range rows {
		switch Status(r.Status) {
		case StatusPending:
			c.Pending = r.Total
		case StatusApproved:
			c.Approved = r.Total
		case StatusRejected:
			c.Rejected = r.Total
		}
		c.Total += r.Total
	}
	return c, nil
}

// Recent lists the newest requests matching filter.
func (s *Service) Recent(ctx context.Context, filter Filter, limit int) ([]*PermissionRequest, error) {
	filter.Order = OrderCreatedDesc
	filter.Limit = limit
	return s.list(ctx, filter)
}

// UniqueStudents counts distinct students who submitted to a department.
func (s *Service) UniqueStudents(ctx context.Context, departmentID string) (int64, error) {
	n, err := s.repo.CountDistinctStudents(ctx, departmentID)
	if err != nil {
		return 0, internal.NewInternalError("failed to count students", err)
	}
	return n, nil
}

// Responder resolves the caller's role and department from the users
// store.
func (s *Service) Responder(ctx context.Context, session internal.Session) (access.Responder, error) {
	return s.responder(ctx, session)
}

func (s *Service) responder(ctx context.Context, session internal.Session) (access.Responder, error) {
	u, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		s.log(ctx).Warn("responder lookup failed, denying", "user_id", session.UserID, "error", err)
		return access.Responder{}, internal.ErrDepartmentMismatch
	}
	r := access.Responder{UserID: u.ID, Role: u.Role, Department: u.DepartmentID()}
	if !r.Role.IsResponder() {
		return access.Responder{}, internal.ErrNotResponder
	}
	// An empty department would otherwise disable the list filter.
	if r.Department == "" {
		return access.Responder{}, internal.ErrDepartmentMismatch
	}
	return r, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx).Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
