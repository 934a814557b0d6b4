package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/event-permission/internal"
	"github.com/frahmantamala/event-permission/internal/auth"
	authredis "github.com/frahmantamala/event-permission/internal/auth/redis"
	"github.com/frahmantamala/event-permission/internal/core/events"
	"github.com/frahmantamala/event-permission/internal/dashboard"
	"github.com/frahmantamala/event-permission/internal/permissionrequest"
	requestPostgres "github.com/frahmantamala/event-permission/internal/permissionrequest/postgres"
	"github.com/frahmantamala/event-permission/internal/storage"
	"github.com/frahmantamala/event-permission/internal/transport/middleware"
	"github.com/frahmantamala/event-permission/internal/transport/rest"
	"github.com/frahmantamala/event-permission/internal/user"
	userPostgres "github.com/frahmantamala/event-permission/internal/user/postgres"
	"github.com/frahmantamala/event-permission/pkg/metrics"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that serves the access gate, dashboards and permission requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Bus    *events.EventBus
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		if err := deps.Bus.Drain(ctx); err != nil {
			deps.Logger.Error("Event handlers did not finish", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := setupLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	revocations, err := initRevocationStore(config.Session)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	documents, err := storage.NewLocalDocumentStore(
		config.Storage.BaseDir,
		config.Storage.PublicBaseURL,
		config.Storage.MaxUploadBytes,
		lg.With("component", "storage"),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	bus := events.NewEventBus(lg.With("component", "events"))

	var m *metrics.Metrics
	if config.Observability.Metrics.Enabled {
		m = metrics.New()
		m.Subscribe(bus)
	}

	userService := user.NewService(userPostgres.NewUserRepository(db), lg.With("component", "user"))

	authService := auth.NewService(
		userService,
		auth.NewJWTTokenGenerator(config.Security.JWTSecret, config.Security.SessionDuration),
		revocations,
		config.Security.BCryptCost,
		lg.With("component", "auth"),
	)

	requestService := permissionrequest.NewService(
		requestPostgres.NewPermissionRequestRepository(gormDB),
		userService,
		documents,
		bus,
		config.Storage.MaxUploadBytes,
		lg.With("component", "permission_request"),
	)

	dashboardService := dashboard.NewService(requestService, lg.With("component", "dashboard"))

	cookie := auth.SessionCookie{
		Name:   config.Security.CookieName,
		Secure: config.Security.CookieSecure,
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Dependencies{
		DB:               db.DB,
		Sessions:         authService,
		Roles:            userService,
		Cookie:           cookie,
		AuthHandler:      auth.NewHandler(authService, cookie),
		UserHandler:      user.NewHandler(userService),
		RequestHandler:   permissionrequest.NewHandler(requestService, config.Storage.MaxUploadBytes),
		DashboardHandler: dashboard.NewHandler(dashboardService),
		Documents:        documents,
		Metrics:          m,
		MetricsPath:      config.Observability.Metrics.Path,
		AllowedOrigins:   middleware.SplitOrigins(config.Server.AllowedOrigins),
		Logger:           lg,
	})

	return &Dependencies{
		Config: config,
		DB:     db,
		Gorm:   gormDB,
		Bus:    bus,
		Router: router,
		Logger: lg,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool so both repositories draw on one set of
// connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func initRevocationStore(cfg internal.SessionConfig) (auth.RevocationStore, error) {
	if cfg.Backend != "redis" {
		return auth.NewMemoryRevocationStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := authredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return authredis.NewRevocationStore(client), nil
}
