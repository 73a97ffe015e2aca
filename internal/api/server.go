package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/sketchlab-dev/previewd/internal/bundler"
	"github.com/sketchlab-dev/previewd/internal/config"
	"github.com/sketchlab-dev/previewd/internal/database"
	"github.com/sketchlab-dev/previewd/internal/observability"
	"github.com/sketchlab-dev/previewd/internal/preview"
	"github.com/sketchlab-dev/previewd/internal/project"
)

// Server represents the HTTP server
type Server struct {
	app            *fiber.App
	config         *config.Config
	db             *database.Connection
	tracer         *observability.Tracer
	metrics        *observability.Metrics
	previewHandler *PreviewHandler
	startTime      time.Time
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *database.Connection) *Server {
	app := fiber.New(fiber.Config{
		ServerHeader:          "Previewd",
		AppName:               "Previewd v1.0.0",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: !cfg.Debug,
		ErrorHandler:          customErrorHandler,
		Prefork:               false,
	})

	tracer, err := observability.NewTracer(context.Background(), cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize OpenTelemetry tracer, tracing will be disabled")
		tracer = observability.NoopTracer()
	}

	metrics := observability.NewMetrics()

	store := project.NewStore(db.Pool())
	builder := bundler.NewBuilder(cfg.Preview)
	assembler := preview.NewAssembler(cfg.Preview, builder.Classifier().Tables())

	server := &Server{
		app:            app,
		config:         cfg,
		db:             db,
		tracer:         tracer,
		metrics:        metrics,
		previewHandler: NewPreviewHandler(store, builder, assembler, metrics, tracer, cfg.Preview.BundleTimeout),
		startTime:      time.Now(),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

// setupMiddlewares sets up global middlewares
func (s *Server) setupMiddlewares() {
	s.app.Use(requestid.New())

	if s.config.Debug {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
		}))
	}

	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.config.Debug,
	}))

	// Preview documents are embedded cross-origin by the authoring host.
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.Server.CORSOrigins,
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	s.app.Use(s.metrics.MetricsMiddleware())

	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))
}

// setupRoutes sets up all routes
func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", s.metrics.Handler())

	s.app.Get("/preview/:projectId", s.previewHandler.HandlePreview)
}

// handleHealth reports service and database health
func (s *Server) handleHealth(c *fiber.Ctx) error {
	s.metrics.UpdateUptime(s.startTime)

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := fiber.StatusOK
	if err := s.db.Pool().Ping(ctx); err != nil {
		dbStatus = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   dbStatus,
		"database": dbStatus,
		"uptime":   time.Since(s.startTime).String(),
	})
}

// App returns the underlying Fiber app, used by tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shutdown tracer cleanly")
		}
	}
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("Server error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
