package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	controllerx "github.com/tanpawarit/chative-commerce/agent/agents/controller"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	nodex "github.com/tanpawarit/chative-commerce/agent/nodes"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

// Config is loaded with the CHAT prefix.
type Config struct {
	// HistoryLimit caps the stored messages per session.
	HistoryLimit int `envconfig:"HISTORY_LIMIT" split_words:"true" default:"20"`
}

// Orchestrator serves conversations addressed by session id: each turn
// loads the session, runs it through a controller and saves it back.
type Orchestrator struct {
	store    statex.Store
	handlers controllerx.Handlers
	turn     controllerx.Config

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	historyLimit int
	locks        *sessionLocks

	now func() time.Time
}

func New(
	store statex.Store,
	handlers controllerx.Handlers,
	turn controllerx.Config,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if err := handlers.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:        store,
		handlers:     handlers,
		turn:         turn,
		historyLimit: cfg.HistoryLimit,
		locks:        newSessionLocks(),
		now:          time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one turn. Turns for the same session id are serialized.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (contractx.SessionResponse, error) {
	unlock := o.locks.lock(strings.TrimSpace(sessionID))
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		return contractx.SessionResponse{}, err
	}
	return out.Response, nil
}

// Session returns the stored state of a conversation.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*statex.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return o.store.Load(ctx, sessionID)
}

// Reset forgets a conversation: mode, cart, checkout and history.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	unlock := o.locks.lock(sessionID)
	defer unlock()
	return o.store.Delete(ctx, sessionID)
}

type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[string]*lockEntry)}
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
