package dashboard

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/access"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	"github.com/frahmantamala/event-permission/pkg/logger"
)

// RecentLimit is how many requests each dashboard shows.
const RecentLimit = 5

type Requests interface {
	Counts(ctx context.Context, filter permissionrequest.Filter) (permissionrequest.Counts, error)
	Recent(ctx context.Context, filter permissionrequest.Filter, limit int) ([]*permissionrequest.PermissionRequest, error)
	UniqueStudents(ctx context.Context, departmentID string) (int64, error)
	Responder(ctx context.Context, session internal.Session) (access.Responder, error)
}

type StudentDashboard struct {
	Counts permissionrequest.Counts                `json:"counts"`
	Recent []*permissionrequest.PermissionRequest `json:"recent_requests"`
}

type FacultyDashboard struct {
	Department     string                                 `json:"department"`
	Role           string                                 `json:"role"`
	Counts         permissionrequest.Counts               `json:"counts"`
	UniqueStudents int64                                  `json:"unique_students"`
	RecentPending  []*permissionrequest.PermissionRequest `json:"recent_pending"`
}

type Service struct {
	requests Requests
	logger   *slog.Logger
}

func NewService(requests Requests, logger *slog.Logger) *Service {
	return &Service{requests: requests, logger: logger}
}

// Student aggregates the caller's own requests.
func (s *Service) Student(ctx context.Context, session internal.Session) (*StudentDashboard, error) {
	filter := permissionrequest.Filter{StudentID: session.UserID}

	counts, err := s.requests.Counts(ctx, filter)
	if err != nil {
		return nil, err
	}
	recent, err := s.requests.Recent(ctx, filter, RecentLimit)
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to load recent requests", "error", err, "user_id", session.UserID)
		recent = []*permissionrequest.PermissionRequest{}
	}

	return &StudentDashboard{Counts: counts, Recent: recent}, nil
}

// Faculty aggregates the responder's department.
func (s *Service) Faculty(ctx context.Context, session internal.Session) (*FacultyDashboard, error) {
	responder, err := s.requests.Responder(ctx, session)
	if err != nil {
		return nil, err
	}
	filter := permissionrequest.Filter{DepartmentID: responder.Department}

	counts, err := s.requests.Counts(ctx, filter)
	if err != nil {
		return nil, err
	}
	students, err := s.requests.UniqueStudents(ctx, responder.Department)
	if err != nil {
		return nil, err
	}

	pendingFilter := filter
	pendingFilter.Statuses = []permissionrequest.Status{permissionrequest.StatusPending}
	pending, err := s.requests.Recent(ctx, pendingFilter, RecentLimit)
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to load pending requests", "error", err, "department", responder.Department)
		pending = []*permissionrequest.PermissionRequest{}
	}

	return &FacultyDashboard{
		Department:     responder.Department,
		Role:           responder.Role.String(),
		Counts:         counts,
		UniqueStudents: students,
		RecentPending:  pending,
	}, nil
}
