package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/academic"
	httpapi "github.com/redgumnet/edgegate/internal/gateway/http"
	"github.com/redgumnet/edgegate/internal/gateway/service"
	"github.com/redgumnet/edgegate/internal/gateway/store"
	"github.com/redgumnet/edgegate/internal/gateway/store/drivers/sqlite"
	"github.com/redgumnet/edgegate/internal/gateway/upstream"
	"github.com/redgumnet/edgegate/pkg/jwtx"
	"github.com/redgumnet/edgegate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	keys     *jwtx.KeyCache
	verifier *jwtx.Verifier
	registry *upstream.Registry

	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService
	academicService     *academic.Service

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "edge-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("GATEWAY_ISSUER_URL is required")
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("GATEWAY_JWT_SECRET is required")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// One key cache for the whole process; every verification shares it.
	app.keys = jwtx.NewKeyCache(nil)
	app.verifier = jwtx.NewVerifier(cfg.JWKSURL(), []byte(cfg.SharedSecret), app.keys, app.logger)

	app.registry = upstream.NewRegistry(nil, cfg.Upstreams)

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"upstreams", app.registry.Names(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	app.auditService = &service.AuditService{
		Store:  app.db,
		Logger: app.logger,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)

	app.academicService = &academic.Service{
		Portal:       academic.NewClient(app.cfg.AcademicPortalURL, nil),
		Registry:     app.registry,
		AuthUpstream: app.cfg.AuthUpstreamName,
		ResetPath:    app.cfg.AcademicResetPath,
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		app.keys,
		app.cfg.AdminToken,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Registry = app.registry
	router.AuditService = app.auditService
	router.AcademicService = app.academicService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
