package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	controllerx "github.com/tanpawarit/chative-commerce/agent/agents/controller"
	routerx "github.com/tanpawarit/chative-commerce/agent/agents/router"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]statex.Snapshot
	saveErr  error
	saves    int
	deleted  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]statex.Snapshot)}
}

func (f *fakeStore) Load(ctx context.Context, sessionID string) (*statex.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.sessions[sessionID]
	if !ok {
		return nil, statex.ErrStateNotFound
	}
	return statex.FromSnapshot(snap), nil
}

func (f *fakeStore) Save(ctx context.Context, s *statex.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.sessions[s.ID] = s.Snapshot()
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	f.deleted = append(f.deleted, sessionID)
	return nil
}

type fakeResolver struct {
	mu       sync.Mutex
	decision routerx.Decision
	calls    int
}

func (f *fakeResolver) Resolve(ctx context.Context, turn string, history []contractx.Message) (routerx.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.decision, nil
}

type fakeHandler struct {
	mu       sync.Mutex
	process  func(ctx context.Context, turn statex.Turn) (contractx.HandlerResult, error)
	calls    int
	lastTurn statex.Turn
}

func (f *fakeHandler) Process(ctx context.Context, turn statex.Turn) (contractx.HandlerResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastTurn = turn
	f.mu.Unlock()
	return f.process(ctx, turn)
}

func orderHandler(status contractx.OrderStatus) *fakeHandler {
	return &fakeHandler{process: func(context.Context, statex.Turn) (contractx.HandlerResult, error) {
		return contractx.HandlerResult{
			Message: "What's your full name?",
			Payload: contractx.OrderPayload{Status: status},
		}, nil
	}}
}

func searchHandler() *fakeHandler {
	return &fakeHandler{process: func(context.Context, statex.Turn) (contractx.HandlerResult, error) {
		return contractx.HandlerResult{
			Message: "Here are some laptops.",
			Payload: contractx.SearchPayload{Products: []contractx.ProductInfo{{ProductID: "TECH-007"}}},
		}, nil
	}}
}

func newOrchestrator(t *testing.T, store statex.Store, resolver *fakeResolver, search, order *fakeHandler, cfg Config) *Orchestrator {
	t.Helper()
	o, err := New(store, controllerx.Handlers{Resolver: resolver, Search: search, Order: order}, controllerx.Config{HandlerTimeout: time.Second}, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	handlers := controllerx.Handlers{Resolver: &fakeResolver{}, Search: searchHandler(), Order: orderHandler(contractx.OrderCollectingInfo)}
	if _, err := New(nil, handlers, controllerx.Config{}, Config{}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(newFakeStore(), controllerx.Handlers{}, controllerx.Config{}, Config{}); err == nil {
		t.Fatal("expected error for missing handlers")
	}
}

func TestHandleMessagePersistsModeAcrossTurns(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteOrder}}
	order := orderHandler(contractx.OrderCollectingInfo)
	o := newOrchestrator(t, store, resolver, searchHandler(), order, Config{})
	ctx := context.Background()

	resp, err := o.HandleMessage(ctx, "s-1", "buy TECH-007")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resp.HandledBy != contractx.HandlerOrder || resp.OrderStatus != contractx.OrderCollectingInfo {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if _, err := o.HandleMessage(ctx, "s-1", "Jane Doe"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resolver.calls != 1 {
		t.Fatalf("resolver calls = %d, locked turns must skip it", resolver.calls)
	}
	if len(order.lastTurn.History) != 2 || order.lastTurn.History[0].Content != "buy TECH-007" {
		t.Fatalf("second turn must see stored history, got %+v", order.lastTurn.History)
	}

	sess, err := o.Session(ctx, "s-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if sess.Mode() != statex.ModeOrderLocked || len(sess.History) != 4 {
		t.Fatalf("unexpected stored session: mode=%q history=%d", sess.Mode(), len(sess.History))
	}
}

func TestHandleMessageValidatesInput(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, newFakeStore(), &fakeResolver{}, searchHandler(), orderHandler(contractx.OrderCollectingInfo), Config{})

	if _, err := o.HandleMessage(context.Background(), " ", "hello"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := o.HandleMessage(context.Background(), "s-1", "  "); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleMessageSaveFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.saveErr = errors.New("redis unavailable")
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteSearch}}
	o := newOrchestrator(t, store, resolver, searchHandler(), orderHandler(contractx.OrderCollectingInfo), Config{})

	if _, err := o.HandleMessage(context.Background(), "s-1", "laptops"); err == nil {
		t.Fatal("expected save error")
	}
}

func TestHistoryLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteSearch}}
	o := newOrchestrator(t, store, resolver, searchHandler(), orderHandler(contractx.OrderCollectingInfo), Config{HistoryLimit: 4})

	for i := range 5 {
		if _, err := o.HandleMessage(context.Background(), "s-1", fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}
	sess, err := o.Session(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if len(sess.History) != 4 || sess.History[2].Content != "turn 4" {
		t.Fatalf("unexpected history: %+v", sess.History)
	}
}

func TestResetForgetsSession(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteOrder}}
	o := newOrchestrator(t, store, resolver, searchHandler(), orderHandler(contractx.OrderCollectingInfo), Config{})
	ctx := context.Background()

	if _, err := o.HandleMessage(ctx, "s-1", "buy TECH-007"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if err := o.Reset(ctx, "s-1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := o.Session(ctx, "s-1"); !errors.Is(err, statex.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after reset, got %v", err)
	}
	if _, err := o.HandleMessage(ctx, "s-1", "laptops"); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resolver.calls != 2 {
		t.Fatalf("reset session must start free, resolver calls = %d", resolver.calls)
	}
	if err := o.Reset(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestCancelledTurnIsNotSaved(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeStore()
	order := &fakeHandler{process: func(hctx context.Context, turn statex.Turn) (contractx.HandlerResult, error) {
		cancel()
		return contractx.HandlerResult{}, fmt.Errorf("%w: %v", contractx.ErrCollaboratorTimeout, hctx.Err())
	}}
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteOrder}}
	o := newOrchestrator(t, store, resolver, searchHandler(), order, Config{})

	_, _ = o.HandleMessage(ctx, "s-1", "buy TECH-007")

	if store.saves != 0 {
		t.Fatalf("cancelled turn saved %d times", store.saves)
	}
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := &fakeResolver{decision: routerx.Decision{Route: routerx.RouteSearch}}
	o := newOrchestrator(t, store, resolver, searchHandler(), orderHandler(contractx.OrderCollectingInfo), Config{})

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.HandleMessage(context.Background(), "s-1", fmt.Sprintf("turn %d", i)); err != nil {
				t.Errorf("HandleMessage() error = %v", err)
			}
		}()
	}
	wg.Wait()

	sess, err := o.Session(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if len(sess.History) != 20 {
		t.Fatalf("history = %d messages, want 20 (no lost updates)", len(sess.History))
	}
	if len(o.locks.entries) != 0 {
		t.Fatalf("session locks leaked: %d", len(o.locks.entries))
	}
}
