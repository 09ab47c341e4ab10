package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/chative-commerce/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
	toolx "github.com/tanpawarit/chative-commerce/agent/tool"
)

// Config is loaded with the HTTP prefix.
type Config struct {
	Addr           string        `default:":8080"`
	BodyLimit      int           `envconfig:"BODY_LIMIT" split_words:"true" default:"65536"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" split_words:"true" default:"90s"`
}

// ChatService is what the HTTP layer needs from the session service.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (contractx.SessionResponse, error)
	Session(ctx context.Context, sessionID string) (*statex.Session, error)
	Reset(ctx context.Context, sessionID string) error
}

var _ ChatService = (*orchestratorx.Orchestrator)(nil)

type Server struct {
	app      *fiber.App
	cfg      Config
	chat     ChatService
	validate *validator.Validate
}

func New(cfg Config, chat ChatService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	s := &Server{
		app:      app,
		cfg:      cfg,
		chat:     chat,
		validate: toolx.NewValidator(),
	}
	s.registerRoutes(app)
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/v1")
	v1.Post("/chat", s.Chat)
	v1.Get("/sessions/:id", s.GetSession)
	v1.Delete("/sessions/:id", s.ResetSession)
}

func (s *Server) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:  "invalid request",
			Fields: toolx.InvalidFields(err),
		})
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	resp, err := s.chat.HandleMessage(ctx, req.SessionID, req.Message)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) GetSession(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	sess, err := s.chat.Session(ctx, c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(newSessionView(sess))
}

func (s *Server) ResetSession(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.chat.Reset(ctx, c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, orchestratorx.ErrInvalidSession), errors.Is(err, orchestratorx.ErrInvalidMessage):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, statex.ErrStateNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{Error: "request timed out"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
}
