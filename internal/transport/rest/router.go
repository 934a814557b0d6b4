package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/event-permission/internal/auth"
	"github.com/frahmantamala/event-permission/internal/dashboard"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	"github.com/frahmantamala/event-permission/internal/storage"
	"github.com/frahmantamala/event-permission/internal/transport/middleware"
	"github.com/frahmantamala/event-permission/internal/transport/swagger"
	"github.com/frahmantamala/event-permission/internal/user"
	"github.com/frahmantamala/event-permission/pkg/metrics"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Dependencies is everything the route table needs. Nil handlers leave
// their routes unregistered.
type Dependencies struct {
	DB               *sql.DB
	Sessions         middleware.SessionResolver
	Roles            middleware.RoleLookup
	Cookie           auth.SessionCookie
	AuthHandler      *auth.Handler
	UserHandler      *user.Handler
	RequestHandler   *permissionrequest.Handler
	DashboardHandler *dashboard.Handler
	Documents        *storage.DocumentStore
	Metrics          *metrics.Metrics
	MetricsPath      string
	OpenAPIPath      string
	AllowedOrigins   []string
	Logger           *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies) {
	healthHandler := NewHealthHandler(deps.DB)
	if deps.Documents != nil {
		healthHandler.AddCheck("documents", deps.Documents.Check)
	}

	// Apply global middleware
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.AccessGate(deps.Sessions, deps.Roles, deps.Cookie, deps.Logger))

	openAPIPath := deps.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, deps.Metrics.Handler())
	}

	if deps.Documents != nil {
		router.Handle(storage.PublicPrefix+"*", deps.Documents.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)
	})

	if deps.AuthHandler != nil {
		router.Get("/login", deps.AuthHandler.LoginForm)
		router.Post("/login", deps.AuthHandler.Login)
		router.Get("/register", deps.AuthHandler.RegisterForm)
		router.Post("/register", deps.AuthHandler.Register)
		router.Post("/logout", deps.AuthHandler.Logout)
	}

	if deps.UserHandler != nil {
		router.With(middleware.RequireSession(deps.Sessions, deps.Roles, deps.Cookie)).
			Get("/me", deps.UserHandler.GetCurrentUser)
	}

	// The access gate has already admitted only students here.
	router.Route("/student", func(sr chi.Router) {
		if deps.DashboardHandler != nil {
			sr.Get("/dashboard", deps.DashboardHandler.StudentDashboard)
		}
		if deps.RequestHandler != nil {
			sr.Get("/new-request", deps.RequestHandler.NewRequestForm)
			sr.Post("/new-request", deps.RequestHandler.CreateRequest)
			sr.Get("/my-requests", deps.RequestHandler.MyRequests)
		}
	})

	// Faculty and HOD only.
	router.Route("/faculty", func(fr chi.Router) {
		if deps.DashboardHandler != nil {
			fr.Get("/dashboard", deps.DashboardHandler.FacultyDashboard)
		}
		if deps.RequestHandler != nil {
			fr.Get("/requests", deps.RequestHandler.PendingRequests)
			fr.Get("/requests/{id}", deps.RequestHandler.GetRequest)
			fr.Post("/requests/{id}", deps.RequestHandler.RespondRequest)
			fr.Get("/history", deps.RequestHandler.History)
		}
	})
}
