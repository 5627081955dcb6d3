// Package server exposes the HTTP surface: the carrier webhook, share pages
// for rendered profiles, probe and metrics endpoints, and a small API-key
// protected admin API over sessions and profiles.
package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/profile-agent/internal/conversation"
	"github.com/tandemhq/profile-agent/internal/health"
	"github.com/tandemhq/profile-agent/internal/metrics"
	"github.com/tandemhq/profile-agent/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	AdminAPIKey string
	CORSOrigins string
}

// TokenVerifier resolves a share-page token back to a profile ID.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server is the Fiber application for the profile agent.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	config   Config
	logger   zerolog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(
	cfg Config,
	orch *conversation.Orchestrator,
	store *session.Store,
	verifier TokenVerifier,
	checker *health.Checker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:      app,
		handlers: NewHandlers(orch, store, verifier, checker, logger),
		config:   cfg,
		logger:   logger.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg)
	s.setupRoutes(m)
	return s
}

func (s *Server) setupMiddleware(cfg Config) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// tag every request; carriers and the render service echo the header
	// back, which is how webhook deliveries are matched to our logs
	s.app.Use(func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.New().String()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDKey, reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, DELETE, OPTIONS",
		}))
	}
}

func (s *Server) setupRoutes(m *metrics.Metrics) {
	// carrier webhook; auth is the carrier's problem, delivery must be fast
	s.app.Post("/webhook/sms", s.handlers.InboundSMS)

	// public share pages for rendered profiles
	s.app.Get("/p/:token", s.handlers.SharePage)

	// probes and metrics
	s.app.Get("/healthz", s.handlers.Liveness)
	s.app.Get("/readyz", s.handlers.Readiness)
	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// admin API
	v1 := s.app.Group("/api/v1", newAuthMiddleware(s.config.AdminAPIKey, s.logger))
	v1.Get("/sessions", s.handlers.ListSessions)
	v1.Get("/sessions/:id", s.handlers.GetSession)
	v1.Delete("/sessions/:id", s.handlers.DeleteSession)
	v1.Get("/profiles/:id", s.handlers.GetProfile)
	v1.Get("/health", s.handlers.HealthDetail)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("http server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "an internal error occurred"
		}
		return c.Status(code).JSON(fiber.Map{"error": detail})
	}
}
