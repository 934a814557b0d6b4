package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/transport"
	"github.com/frahmantamala/event-permission/pkg/logger"
)

type ServiceAPI interface {
	Student(ctx context.Context, session internal.Session) (*StudentDashboard, error)
	Faculty(ctx context.Context, session internal.Session) (*FacultyDashboard, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// StudentDashboard handles GET /student/dashboard
func (h *Handler) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	view, err := h.Service.Student(r.Context(), session)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

// FacultyDashboard handles GET /faculty/dashboard
func (h *Handler) FacultyDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	view, err := h.Service.Faculty(r.Context(), session)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}
