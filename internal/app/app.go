package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"timesheets/internal/config"
	apierrors "timesheets/internal/errors"
	"timesheets/internal/infrastructure"
	customMiddleware "timesheets/internal/middleware"
	"timesheets/internal/services"
	"timesheets/internal/storage"
	handlers "timesheets/internal/transport/http"
	"timesheets/pkg/contracts"
)

// AppName is reported in startup logs.
const AppName = "timesheets"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	Store         storage.Store
	Sweeper       *storage.Sweeper
	Services      *ServiceContainer
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Timesheet *services.TimesheetService
	Health    *services.HealthService
}

// New wires the application from cfg. Nothing is started until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("storage_backend", cfg.Storage.Backend))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, contracts.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()
	return app, nil
}

// initializeServices opens the store and builds the services on top of it.
func (a *Application) initializeServices(ctx context.Context) error {
	store, err := storage.New(ctx, a.Config.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", a.Config.Storage.Backend, err)
	}
	a.Store = store

	a.Services = &ServiceContainer{
		Timesheet: services.NewTimesheetService(store, services.TimesheetOptions{
			Sheet:               a.Config.Upload.Sheet,
			DeleteAfterDownload: a.Config.Storage.DeleteAfterDownload,
			Metrics:             a.Metrics,
			Tracer:              a.OTelProviders.Tracer,
		}, a.Logger),
		Health: services.NewHealthService(contracts.Version, contracts.BuildTime,
			a.Config.Storage.Backend, store, a.Logger),
	}

	a.Sweeper = storage.NewSweeper(store,
		a.Config.Storage.Retention,
		a.Config.Storage.SweepInterval,
		a.Metrics,
		a.Logger)
	return nil
}

// setupRouter builds the middleware chain and mounts the handlers.
// Order: RequestID, RealIP, OTel, logger, recoverer, then the rest.
func (a *Application) setupRouter() error {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	pages, err := handlers.NewPages(a.Logger)
	if err != nil {
		return err
	}
	timesheetHandler := handlers.NewTimesheetHandler(a.Services.Timesheet, pages,
		errorHandler, a.Config.Upload.MaxBytes, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// Prometheus scrapes outside the instrumented group.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		timesheetHandler.Routes(r)

		api := timesheetHandler.APIRoutes()
		healthHandler.Routes(api)
		r.Mount("/api", api)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server and the retention sweeper on ln. When ctx is
// cancelled, or either of them fails, the server is shut down gracefully
// and telemetry is flushed.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(ctx, "Application started",
			slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// Stop gracefully stops the server and flushes telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
