// Package server exposes turns over HTTP. Turns stream as server-sent
// events (or WebSocket frames); sessions are persisted between turns so a
// client only sends the new message.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/event"
	"github.com/Iron-Ham/ideaforge/internal/logging"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/store"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

// Runner runs one turn. *turn.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req turn.Request, em stream.Emitter) (*turn.TurnResult, error)
}

// Sessions is the persistence the session routes need. *store.Store
// implements it.
type Sessions interface {
	CreateSession(ctx context.Context, in store.NewSession) (*store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	ListSessions(ctx context.Context, limit int) ([]store.Session, error)
	SetCompactSummary(ctx context.Context, id, summary string) error
	SaveTurn(ctx context.Context, rec store.TurnRecord) error
	LatestTurn(ctx context.Context, sessionID string) (*store.TurnRecord, error)
	ListEvolution(ctx context.Context, sessionID string) ([]scorecard.EvolutionEntry, error)
	AddReflection(ctx context.Context, sessionID string, r reflection.StagedReflection) error
	ListReflections(ctx context.Context, sessionID string) ([]reflection.StagedReflection, error)
}

// Options configure a Server.
type Options struct {
	// AllowedOrigins are glob patterns matched against the Origin header.
	AllowedOrigins []string
	// WebSocket enables GET /ws/turn.
	WebSocket bool
	// BodyLimitKB caps request bodies; zero keeps fiber's default.
	BodyLimitKB int
	// EvolutionTurns is how many earlier turns of score changes a session
	// turn forwards to the orchestrator.
	EvolutionTurns int
	// DefaultLevel and DefaultPersonas fill new sessions.
	DefaultLevel    string
	DefaultPersonas []string
	// Stats, when set, is reported by /healthz.
	Stats *event.Stats
}

// Server is the HTTP surface.
type Server struct {
	app      *fiber.App
	runner   Runner
	sessions Sessions
	logger   *logging.Logger
	opts     Options
	origins  *originMatcher

	// ctx bounds every turn; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the fiber app. sessions may be nil, in which case only the
// stateless routes are mounted.
func New(runner Runner, sessions Sessions, logger *logging.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	origins, err := newOriginMatcher(opts.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:   runner,
		sessions: sessions,
		logger:   logger,
		opts:     opts,
		origins:  origins,
		ctx:      ctx,
		cancel:   cancel,
	}

	cfg := fiber.Config{
		AppName:               "ideaforge",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	}
	if opts.BodyLimitKB > 0 {
		cfg.BodyLimit = opts.BodyLimitKB * 1024
	}
	s.app = fiber.New(cfg)
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: s.logPanic}))
	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	s.app.Use(s.logRequests)
	s.app.Use(s.cors)

	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")
	api.Post("/turn", s.handleTurn)

	if s.sessions != nil {
		api.Get("/sessions", s.handleListSessions)
		api.Post("/sessions", s.handleCreateSession)
		api.Get("/sessions/:id", s.handleGetSession)
		api.Post("/sessions/:id/turns", s.handleSessionTurn)
		api.Post("/sessions/:id/reflections", s.handleAddReflection)
		api.Put("/sessions/:id/summary", s.handleSetSummary)
	}

	if s.opts.WebSocket {
		s.app.Get("/ws/turn", requireUpgrade, websocket.New(s.handleWebSocket))
	}
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr, "websocket", s.opts.WebSocket)
	return s.app.Listen(addr)
}

// Shutdown cancels running turns and stops the server, waiting at most
// timeout for open connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	body := fiber.Map{"status": "ok"}
	if s.opts.Stats != nil {
		body["turns"] = s.opts.Stats.Snapshot()
	}
	return c.JSON(body)
}

// handleError maps domain errors onto HTTP statuses. Messages of server
// errors are only returned when they are safe to show.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code >= fiber.StatusInternalServerError:
		s.logger.Error("request failed", "path", c.Path(), "severity", errors.GetSeverity(err).String(), "error", err)
		if !errors.IsUserFacing(err) {
			msg = fiber.ErrInternalServerError.Message
		}
	case errors.IsSemanticError(err):
		s.logger.Debug("request rejected", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errors.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, errors.ErrTurnExists):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
