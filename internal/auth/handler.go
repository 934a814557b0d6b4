package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/event-permission/internal/access"
	"github.com/frahmantamala/event-permission/internal/transport"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/frahmantamala/event-permission/pkg/logger"
)

type ServiceAPI interface {
	SignUp(ctx context.Context, dto RegisterDTO) (*user.User, error)
	SignIn(ctx context.Context, dto LoginDTO) (*SignInResult, error)
	SignOut(ctx context.Context, token string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  SessionCookie
}

func NewHandler(svc ServiceAPI, cookie SessionCookie) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Cookie:      cookie,
	}
}

// FormView describes a page the client renders.
type FormView struct {
	View   string   `json:"view"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
}

// LoginForm handles GET /login. Signed-in users never get here; the access
// gate redirects them to their dashboard.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, FormView{
		View:   "login",
		Action: access.PathLogin,
		Fields: []string{"email", "password"},
	})
}

// RegisterForm handles GET /register
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, FormView{
		View:   "register",
		Action: access.PathRegister,
		Fields: []string{"email", "password", "name", "role", "roll_number", "department"},
	})
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.SignIn(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Cookie.Set(w, result.Token, result.ExpiresAt)
	h.WriteJSON(w, http.StatusOK, result)
}

// Register handles POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.Service.SignUp(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("registration failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":        u,
		"redirect_to": access.PathLogin,
	})
}

// Logout handles POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.Cookie.TokenFromRequest(r)
	if token != "" {
		if err := h.Service.SignOut(r.Context(), token); err != nil {
			h.HandleServiceError(w, err)
			return
		}
	}

	h.Cookie.Clear(w)
	h.WriteJSON(w, http.StatusOK, map[string]string{"redirect_to": access.PathLogin})
}
