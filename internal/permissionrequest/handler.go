package permissionrequest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/access"
	"github.com/frahmantamala/event-permission/internal/core/common/validation"
	"github.com/frahmantamala/event-permission/internal/transport"
	"github.com/frahmantamala/event-permission/pkg/logger"
	"github.com/go-chi/chi"
)

const (
	FormFieldProof  = "proofFile"
	FormFieldLetter = "letterFile"

	multipartMemory = 8 << 20
)

type ServiceAPI interface {
	Create(ctx context.Context, session internal.Session, dto CreateRequestDTO, proof, letter *Document) (*PermissionRequest, error)
	Respond(ctx context.Context, session internal.Session, requestID string, dto RespondDTO) (*PermissionRequest, error)
	GetForResponder(ctx context.Context, session internal.Session, id string) (*Detail, error)
	ListForStudent(ctx context.Context, session internal.Session, limit int) ([]*PermissionRequest, error)
	ListPendingForDepartment(ctx context.Context, session internal.Session, limit int) ([]*PermissionRequest, error)
	History(ctx context.Context, session internal.Session) ([]*PermissionRequest, error)
}

type Handler struct {
	*transport.BaseHandler
	Service        ServiceAPI
	MaxUploadBytes int64
}

func NewHandler(service ServiceAPI, maxUploadBytes int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler:    transport.NewBaseHandler(lg),
		Service:        service,
		MaxUploadBytes: maxUploadBytes,
	}
}

type FormView struct {
	View   string   `json:"view"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
	Files  []string `json:"files"`
}

// NewRequestForm handles GET /student/new-request
func (h *Handler) NewRequestForm(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, FormView{
		View:   "new-request",
		Action: "/student/new-request",
		Fields: []string{"event_name", "event_date", "event_location", "reason", "description", "department_id"},
		Files:  []string{FormFieldProof, FormFieldLetter},
	})
}

// CreateRequest handles POST /student/new-request as multipart/form-data.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.Logger.Error("CreateRequest: session not found in context")
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 2*h.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.HandleServiceError(w, internal.NewValidationError("upload exceeds the size limit", internal.ErrCodeDocumentTooLarge))
			return
		}
		h.Logger.Warn("CreateRequest: invalid multipart body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	dto := CreateRequestDTO{
		EventName:     r.FormValue("event_name"),
		EventDate:     r.FormValue("event_date"),
		EventLocation: r.FormValue("event_location"),
		Reason:        r.FormValue("reason"),
		Description:   r.FormValue("description"),
		DepartmentID:  r.FormValue("department_id"),
	}

	proof, closeProof := formDocument(r, FormFieldProof)
	defer closeProof()
	letter, closeLetter := formDocument(r, FormFieldLetter)
	defer closeLetter()

	req, err := h.Service.Create(r.Context(), session, dto, proof, letter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateRequest: request submitted", "request_id", req.ID, "student_id", session.UserID)

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"request":     req,
		"redirect_to": access.PathStudentDashboard,
	})
}

// formDocument returns nil when the part is absent.
func formDocument(r *http.Request, field string) (*Document, func()) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, func() {}
	}
	return documentFrom(file, header), func() { _ = file.Close() }
}

func documentFrom(file multipart.File, header *multipart.FileHeader) *Document {
	return &Document{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}

// MyRequests handles GET /student/my-requests
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	requests, err := h.Service.ListForStudent(r.Context(), session, 0)
	if err != nil {
		h.Logger.Error("MyRequests: failed to list requests", "error", err, "user_id", session.UserID)
		requests = []*PermissionRequest{}
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// PendingRequests handles GET /faculty/requests
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	requests, err := h.Service.ListPendingForDepartment(r.Context(), session, 0)
	if err != nil {
		if appErr, isApp := internal.IsAppError(err); isApp && appErr.Type == internal.ErrorTypeForbidden {
			h.HandleServiceError(w, err)
			return
		}
		h.Logger.Error("PendingRequests: failed to list requests", "error", err, "user_id", session.UserID)
		requests = []*PermissionRequest{}
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// History handles GET /faculty/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	requests, err := h.Service.History(r.Context(), session)
	if err != nil {
		if appErr, isApp := internal.IsAppError(err); isApp && appErr.Type == internal.ErrorTypeForbidden {
			h.HandleServiceError(w, err)
			return
		}
		h.Logger.Error("History: failed to list requests", "error", err, "user_id", session.UserID)
		requests = []*PermissionRequest{}
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// GetRequest handles GET /faculty/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	id := chi.URLParam(r, "id")
	if err := validation.ValidateID("id", id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	detail, err := h.Service.GetForResponder(r.Context(), session, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, detail)
}

// RespondRequest handles POST /faculty/requests/{id}
func (h *Handler) RespondRequest(w http.ResponseWriter, r *http.Request) {
	session, ok := internal.SessionFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrSessionRequired)
		return
	}

	id := chi.URLParam(r, "id")
	if err := validation.ValidateID("id", id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto RespondDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Warn("RespondRequest: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := h.Service.Respond(r.Context(), session, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"request":     req,
		"redirect_to": "/faculty/requests",
	})
}
