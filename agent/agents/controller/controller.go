package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	routerx "github.com/tanpawarit/chative-commerce/agent/agents/router"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

const (
	FallbackMessage  = "I'm having trouble processing your request. Please try again."
	timeoutMessage   = "Sorry, that took longer than expected and nothing was changed. Please try again."
	cancelledMessage = "Your request was cancelled before it finished, so nothing was changed."
	emptyTurnMessage = "Could you tell me what you're looking for, or which product you'd like to order?"
)

// Handler processes one turn. It returns an error only when ctx ended before
// the turn was answered; every other failure is reported in the result.
type Handler interface {
	Process(ctx context.Context, turn statex.Turn) (contractx.HandlerResult, error)
}

type IntentResolver interface {
	Resolve(ctx context.Context, turn string, history []contractx.Message) (routerx.Decision, error)
}

type Config struct {
	// HandlerTimeout bounds each intent resolution and handler call. Zero
	// leaves only the caller's deadline.
	HandlerTimeout time.Duration `envconfig:"TURN_TIMEOUT" split_words:"true" default:"60s"`
}

// Handlers are the collaborators shared by every conversation.
type Handlers struct {
	Resolver IntentResolver
	Search   Handler
	Order    Handler
}

func (h Handlers) Validate() error {
	if h.Resolver == nil {
		return errors.New("intent resolver is required")
	}
	if h.Search == nil {
		return errors.New("search handler is required")
	}
	if h.Order == nil {
		return errors.New("order handler is required")
	}
	return nil
}

// Controller routes the turns of one conversation and owns its mode. One
// turn runs at a time.
type Controller struct {
	session  *statex.Session
	handlers Handlers
	cfg      Config
	logger   zerolog.Logger
}

func New(session *statex.Session, handlers Handlers, cfg Config) (*Controller, error) {
	if session == nil {
		return nil, statex.ErrNilSessionState
	}
	if err := handlers.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		session:  session,
		handlers: handlers,
		cfg:      cfg,
		logger:   log.With().Str("session_id", session.ID).Logger(),
	}, nil
}

func (c *Controller) Session() *statex.Session {
	return c.session
}

// Process answers one user turn. It always returns a response; failures
// degrade to an apology or a clarifying question.
func (c *Controller) Process(ctx context.Context, text string, history []contractx.Message) contractx.SessionResponse {
	text = strings.TrimSpace(text)
	if text == "" {
		return reply(contractx.HandlerRouter, emptyTurnMessage)
	}

	snap := c.session.Snapshot()
	turn := c.session.NewTurn(text, history)
	logger := c.logger.With().Str("mode", string(c.session.Mode())).Logger()

	first := contractx.HandlerOrder
	if c.session.Mode() != statex.ModeOrderLocked {
		d, err := c.resolve(ctx, text, history)
		if err != nil {
			if ctx.Err() != nil {
				return c.abort(ctx, snap, contractx.HandlerRouter, err)
			}
			logger.Warn().Err(err).Msg("intent resolution failed")
			return reply(contractx.HandlerRouter, FallbackMessage)
		}
		switch d.Route {
		case routerx.RouteSearch:
			first = contractx.HandlerSearch
		case routerx.RouteOrder:
			first = contractx.HandlerOrder
		default:
			logger.Info().Str("reason", d.Reason).Msg("answered directly")
			return reply(contractx.HandlerRouter, d.Reply)
		}
	}

	res, err := c.invoke(ctx, first, turn)
	if err != nil {
		if ctx.Err() != nil || timedOut(err) {
			return c.abort(ctx, snap, first, err)
		}
		c.session.Restore(snap)
		logger.Error().Err(err).Str("handler", string(first)).Msg("handler failed, session restored")
		return reply(first, FallbackMessage)
	}
	c.observe(first, res)

	target, ok := res.TransferTarget()
	if !ok || target == first {
		c.settle(first, res)
		logger.Info().Str("handler", string(first)).Str("next_mode", string(c.session.Mode())).Msg("turn handled")
		return respond(first, res)
	}

	handoff := c.session.Snapshot()
	c.enter(target)
	logger.Info().
		Str("handler", string(first)).
		Str("transfer", string(target)).
		Str("reason", res.Transfer.Reason).
		Msg("handing off")

	second, err := c.invoke(ctx, target, turn)
	if err != nil {
		if ctx.Err() != nil {
			return c.abort(ctx, snap, target, err)
		}
		logger.Warn().Err(err).Str("handler", string(target)).Msg("transfer target failed, keeping first reply")
		c.session.Restore(handoff)
		c.settle(first, res)
		return respond(first, res)
	}
	c.observe(target, second)

	if back, ok := second.TransferTarget(); ok && back == first {
		// Effects of a placed order are kept.
		if status, _ := second.OrderStatus(); status != contractx.OrderCompleted {
			c.session.Restore(handoff)
		}
		logger.Warn().
			Err(contractx.ErrBounceDetected).
			Str("handler", string(first)).
			Str("bounce", string(target)).
			Msg("transfer bounced, keeping first reply")
		c.settle(first, res)
		return respond(first, res)
	}

	c.settle(target, second)
	logger.Info().Str("handler", string(target)).Str("next_mode", string(c.session.Mode())).Msg("turn handled after transfer")
	return respond(target, second)
}

func (c *Controller) resolve(ctx context.Context, text string, history []contractx.Message) (routerx.Decision, error) {
	hctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.handlers.Resolver.Resolve(hctx, text, history)
}

func (c *Controller) invoke(ctx context.Context, kind contractx.HandlerKind, turn statex.Turn) (contractx.HandlerResult, error) {
	h := c.handler(kind)
	if h == nil {
		return contractx.HandlerResult{}, fmt.Errorf("%w: no handler for %q", contractx.ErrValidation, kind)
	}

	hctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := h.Process(hctx, turn)
	if err != nil {
		return contractx.HandlerResult{}, err
	}
	if got := res.Handler(); got != "" && got != kind {
		return contractx.HandlerResult{}, fmt.Errorf("%w: %s handler returned a %s result", contractx.ErrMalformedResult, kind, got)
	}
	return res, nil
}

func (c *Controller) handler(kind contractx.HandlerKind) Handler {
	switch kind {
	case contractx.HandlerSearch:
		return c.handlers.Search
	case contractx.HandlerOrder:
		return c.handlers.Order
	default:
		return nil
	}
}

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.HandlerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.HandlerTimeout)
}

// observe clears the cart once for each completed order.
func (c *Controller) observe(kind contractx.HandlerKind, res contractx.HandlerResult) {
	if kind != contractx.HandlerOrder {
		return
	}
	if status, ok := res.OrderStatus(); ok && status == contractx.OrderCompleted {
		c.session.Cart.Clear()
		c.session.Checkout.Clear()
	}
}

// enter sets the mode for a transfer into target.
func (c *Controller) enter(target contractx.HandlerKind) {
	if target == contractx.HandlerOrder {
		c.session.SetMode(statex.ModeOrderLocked)
		return
	}
	c.session.SetMode(statex.ModeFree)
}

// settle sets the mode from the status kind reported for itself. Search is
// only reached from free mode or by leaving order, so it always means free.
func (c *Controller) settle(kind contractx.HandlerKind, res contractx.HandlerResult) {
	if kind != contractx.HandlerOrder {
		c.session.SetMode(statex.ModeFree)
		return
	}
	status, _ := res.OrderStatus()
	if status.Terminal() {
		c.session.SetMode(statex.ModeFree)
		return
	}
	c.session.SetMode(statex.ModeOrderLocked)
}

// abort rewinds the session to its pre-turn state.
func (c *Controller) abort(ctx context.Context, snap statex.Snapshot, kind contractx.HandlerKind, err error) contractx.SessionResponse {
	c.session.Restore(snap)
	if errors.Is(ctx.Err(), context.Canceled) {
		c.logger.Warn().Err(err).Str("handler", string(kind)).Msg("turn cancelled, session restored")
		return reply(kind, cancelledMessage)
	}
	c.logger.Warn().Err(err).Str("handler", string(kind)).Msg("turn timed out, session restored")
	return reply(kind, timeoutMessage)
}

func timedOut(err error) bool {
	return errors.Is(err, contractx.ErrCollaboratorTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func respond(kind contractx.HandlerKind, res contractx.HandlerResult) contractx.SessionResponse {
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = FallbackMessage
	}
	out := contractx.SessionResponse{
		Message:   msg,
		HandledBy: kind,
		Products:  res.Products(),
	}
	if p, ok := res.Payload.(contractx.OrderPayload); ok {
		out.OrderStatus = p.Status
		out.OrderID = p.OrderID
	}
	return out
}

func reply(kind contractx.HandlerKind, message string) contractx.SessionResponse {
	return contractx.SessionResponse{Message: message, HandledBy: kind}
}
