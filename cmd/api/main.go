package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nutrilab/docs"
	"nutrilab/internal/ai"
	"nutrilab/internal/config"
	"nutrilab/internal/database"
	"nutrilab/internal/database/migration"
	"nutrilab/internal/extract"
	handlers "nutrilab/internal/http/handler"
	"nutrilab/internal/http/middleware"
	"nutrilab/internal/logging"
	tracing "nutrilab/internal/otel"
	"nutrilab/internal/repository/postgres"
	"nutrilab/internal/service"
	"nutrilab/internal/storage"
	"nutrilab/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// @title       NutriLab API
// @version     1.0
// @description Lab report and meal photo uploads with AI extraction.
// @BasePath    /
// @securityDefinitions.apikey AdminToken
// @in          header
// @name        Authorization
// @description Bearer <ADMIN_TOKEN>
func main() {
	// Load configuration from defaults, the optional YAML file and the environment (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Error("startup_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	// PostgreSQL pool on pgx, traced through otelsql
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		return err
	}

	// S3-compatible object storage (MinIO-supported)
	objStore, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	fetchClient := &http.Client{
		Timeout:   cfg.Documents.FetchTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	fetcher := extract.NewFetcher(fetchClient, objStore, cfg.Documents.Root, cfg.Documents.MaxBytes)
	extractor := extract.NewExtractor(fetcher, log)

	aiClient, err := ai.NewClient(cfg.LLM, nil, log)
	if err != nil {
		return fmt.Errorf("init ai client: %w", err)
	}

	// Repositories and services
	postRepo := postgres.NewPostPostgres(db)

	metrics, err := worker.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register worker metrics: %w", err)
	}
	processor := worker.NewProcessor(postRepo, extractor, aiClient, log)
	scheduler := worker.NewScheduler(cfg.Worker, worker.NewScanner(postRepo, cfg.Worker.ClaimLease), processor, log, metrics)

	services := handlers.Services{
		Posts:      service.NewPostService(objStore, postRepo),
		Admin:      service.NewAdminService(postRepo, processor, fetcher, aiClient, cfg.Worker.ClaimLease),
		Export:     service.NewExportService(postRepo, log),
		Pipeline:   scheduler,
		AdminToken: cfg.AdminToken,
	}
	if cfg.AdminToken == "" {
		log.Warn("admin_routes_disabled", "reason", "ADMIN_TOKEN is not set")
	}

	httpMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(cfg.Documents.MaxBytes) + 1<<20,
		DisableStartupMessage: true,
	})

	// Global middleware: tracing, X-Request-ID, JSON request logs, request metrics
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, services)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	if cfg.Worker.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	} else {
		log.Info("worker.disabled")
	}

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("http_server_started", "addr", addr)
		listenErr <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown_started")
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("worker shutdown: %w", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info("shutdown_complete")
	return nil
}
