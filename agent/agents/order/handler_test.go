package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
	toolx "github.com/tanpawarit/chative-commerce/agent/tool"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	block     bool
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

type fakeCatalog struct {
	products map[string]contractx.Product
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (contractx.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return contractx.Product{}, contractx.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetByIDOrExactName(ctx context.Context, text string) (contractx.Product, error) {
	return f.GetByID(ctx, text)
}

func (f *fakeCatalog) IsAvailable(ctx context.Context, id string) (bool, error) {
	p, ok := f.products[id]
	return ok && p.StockStatus.Available(), nil
}

type fakeOrders struct {
	created []contractx.CreateOrderInput
	err     error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, in contractx.CreateOrderInput) (contractx.OrderReceipt, error) {
	if f.err != nil {
		return contractx.OrderReceipt{}, f.err
	}
	f.created = append(f.created, in)
	return contractx.OrderReceipt{OrderID: "ORD-1A2B3C4D", Total: in.Total(), CreatedAt: time.Now()}, nil
}

func call(name string, args map[string]any) schema.ToolCall {
	raw, _ := json.Marshal(args)
	return schema.ToolCall{Function: schema.FunctionCall{Name: name, Arguments: string(raw)}}
}

func plan(calls ...schema.ToolCall) *schema.Message {
	return &schema.Message{Role: schema.Assistant, ToolCalls: calls}
}

type fixture struct {
	handler *Handler
	model   *fakeToolCallingModel
	orders  *fakeOrders
	session *statex.Session
}

func newFixture(t *testing.T, limits Limits, responses ...*schema.Message) *fixture {
	t.Helper()
	catalog := &fakeCatalog{products: map[string]contractx.Product{
		"TECH-007": {ID: "TECH-007", Name: "UltraBook 14", Price: 1000, Category: "laptops", StockStatus: contractx.StockIn},
		"TECH-012": {ID: "TECH-012", Name: "Silent Mouse", Price: 25, Category: "accessories", StockStatus: contractx.StockLow},
		"TECH-020": {ID: "TECH-020", Name: "Action Cam", Price: 199, Category: "cameras", StockStatus: contractx.StockOut},
		"TECH-030": {ID: "TECH-030", Name: "USB Hub", Price: 30, Category: "accessories", StockStatus: contractx.StockIn},
		"TECH-031": {ID: "TECH-031", Name: "HDMI Cable", Price: 10, Category: "accessories", StockStatus: contractx.StockIn},
	}}
	orders := &fakeOrders{}
	gateway, err := toolx.NewGateway(catalog, orders)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	model := &fakeToolCallingModel{responses: responses}
	h, err := New(context.Background(), model, "order prompt", gateway, limits)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{
		handler: h,
		model:   model,
		orders:  orders,
		session: statex.NewSession("s1", time.Now()),
	}
}

func (f *fixture) run(t *testing.T, text string) contractx.HandlerResult {
	t.Helper()
	res, err := f.handler.Process(context.Background(), f.session.NewTurn(text, nil))
	if err != nil {
		t.Fatalf("Process(%q) error = %v", text, err)
	}
	return res
}

func statusOf(t *testing.T, res contractx.HandlerResult) contractx.OrderStatus {
	t.Helper()
	status, ok := res.OrderStatus()
	if !ok {
		t.Fatalf("result has no order payload: %#v", res)
	}
	return status
}

func (f *fixture) fillCustomer() {
	f.session.Checkout.SetField(statex.FieldName, "Jane Doe")
	f.session.Checkout.SetField(statex.FieldEmail, "jane@example.com")
	f.session.Checkout.SetField(statex.FieldShippingAddress, "12 Market Street, Springfield")
}

func TestOrderBuyAsksForDetails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(),
		plan(call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-007", "quantity": 1})),
	)

	res := f.run(t, "buy TECH-007")
	if statusOf(t, res) != contractx.OrderCollectingInfo {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if f.session.Cart.Len() != 1 {
		t.Fatalf("expected one cart line, got %#v", f.session.Cart.Items())
	}
	if !strings.Contains(res.Message, "full name") {
		t.Fatalf("expected a question for the name, got %q", res.Message)
	}
}

func TestOrderFullFlowCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(),
		plan(call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-007", "quantity": 2})),
		plan(
			call(toolx.ToolSetCustomer, map[string]any{"field": "name", "value": "Jane Doe"}),
			call(toolx.ToolSetCustomer, map[string]any{"field": "email", "value": "jane@example.com"}),
			call(toolx.ToolSetCustomer, map[string]any{"field": "shipping_address", "value": "12 Market Street, Springfield"}),
		),
		plan(call(toolx.ToolConfirm, nil)),
	)

	f.run(t, "I want two TECH-007")

	res := f.run(t, "Jane Doe, jane@example.com, 12 Market Street, Springfield")
	if statusOf(t, res) != contractx.OrderConfirming {
		t.Fatalf("expected confirming after details, got %s", statusOf(t, res))
	}
	if !strings.Contains(res.Message, "Order summary") {
		t.Fatalf("expected a summary, got %q", res.Message)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("no order may be created before confirmation")
	}

	res = f.run(t, "yes, place it")
	if statusOf(t, res) != contractx.OrderCompleted {
		t.Fatalf("expected completed, got %s: %s", statusOf(t, res), res.Message)
	}
	payload := res.Payload.(contractx.OrderPayload)
	if payload.OrderID != "ORD-1A2B3C4D" {
		t.Fatalf("unexpected order id: %q", payload.OrderID)
	}
	if len(f.orders.created) != 1 || f.orders.created[0].Total() != 2000 {
		t.Fatalf("unexpected orders: %#v", f.orders.created)
	}
	if f.session.Cart.Len() != 1 {
		t.Fatal("the handler must leave clearing the cart to its caller")
	}
}

func TestOrderAddressAloneNeverCreatesOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(),
		plan(
			call(toolx.ToolSetCustomer, map[string]any{"field": "shipping_address", "value": "12 Market Street, Springfield"}),
			call(toolx.ToolConfirm, nil),
		),
	)
	if _, err := f.session.Cart.Add(context.Background(), f.handler.gateway.Catalog(), "TECH-007", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	f.session.Checkout.SetField(statex.FieldName, "Jane Doe")
	f.session.Checkout.SetField(statex.FieldEmail, "jane@example.com")

	res := f.run(t, "12 Market Street, Springfield")
	if len(f.orders.created) != 0 {
		t.Fatal("an address must never create an order")
	}
	if statusOf(t, res) != contractx.OrderConfirming {
		t.Fatalf("expected the summary to be shown, got %s", statusOf(t, res))
	}
}

func TestOrderConfirmWithoutSummaryShowsSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), plan(call(toolx.ToolConfirm, nil)))
	if _, err := f.session.Cart.Add(context.Background(), f.handler.gateway.Catalog(), "TECH-007", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	f.fillCustomer()

	res := f.run(t, "yes")
	if len(f.orders.created) != 0 {
		t.Fatal("confirm without a displayed summary must not create an order")
	}
	if statusOf(t, res) != contractx.OrderConfirming {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if !f.session.Checkout.ReadyToConfirm(f.session.Cart) {
		t.Fatal("summary should now be recorded")
	}
}

func TestOrderCartChangeVoidsSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(),
		plan(
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-012", "quantity": 1}),
			call(toolx.ToolConfirm, nil),
		),
	)
	if _, err := f.session.Cart.Add(context.Background(), f.handler.gateway.Catalog(), "TECH-007", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	f.fillCustomer()
	f.session.Checkout.MarkSummaryShown(f.session.Cart)

	res := f.run(t, "add a mouse too and yes confirm")
	if len(f.orders.created) != 0 {
		t.Fatal("a changed cart must be summarized again before ordering")
	}
	if statusOf(t, res) != contractx.OrderConfirming {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if !strings.Contains(res.Message, "limited stock") {
		t.Fatalf("expected low stock note, got %q", res.Message)
	}
}

func TestOrderValidationBound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Limits{MaxValidations: 3, MaxOrderAttempts: 1},
		plan(
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-007", "quantity": 1}),
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-012", "quantity": 1}),
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-030", "quantity": 1}),
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-031", "quantity": 1}),
		),
	)

	res := f.run(t, "add the laptop, mouse, hub and cable")
	if f.session.Cart.Len() != 3 {
		t.Fatalf("expected 3 validated products, got %d", f.session.Cart.Len())
	}
	if statusOf(t, res) != contractx.OrderCollectingInfo {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if !strings.Contains(res.Message, "up to 3 products") {
		t.Fatalf("expected bound explanation, got %q", res.Message)
	}
}

func TestOrderAllCandidatesFailWithEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(),
		plan(
			call(toolx.ToolAddItem, map[string]any{"product_id": "TECH-020", "quantity": 1}),
			call(toolx.ToolAddItem, map[string]any{"product_id": "NOPE-999", "quantity": 1}),
		),
	)

	res := f.run(t, "buy the action cam and NOPE-999")
	if statusOf(t, res) != contractx.OrderFailed {
		t.Fatalf("expected failed, got %s", statusOf(t, res))
	}
	if !strings.Contains(res.Message, "Action Cam") || !strings.Contains(res.Message, "out of stock") {
		t.Fatalf("unexpected message: %q", res.Message)
	}
	if !f.session.Cart.IsEmpty() {
		t.Fatalf("cart must stay empty: %#v", f.session.Cart.Items())
	}
}

func TestOrderViewCartTotal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), plan(call(toolx.ToolViewCart, nil)))
	catalog := f.handler.gateway.Catalog()
	if _, err := f.session.Cart.Add(context.Background(), catalog, "TECH-007", 2); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	if _, err := f.session.Cart.Add(context.Background(), catalog, "TECH-012", 2); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	res := f.run(t, "view my cart")
	if !strings.Contains(res.Message, "Total: $2050.00") {
		t.Fatalf("expected total in message, got %q", res.Message)
	}
}

func TestOrderRemoveMissingItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), plan(call(toolx.ToolRemoveItem, map[string]any{"product_id": "tech-999"})))

	res := f.run(t, "remove TECH-999")
	if !strings.Contains(res.Message, "TECH-999 isn't in your cart") {
		t.Fatalf("unexpected message: %q", res.Message)
	}
}

func TestOrderTransferToSearch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), plan(call(toolx.ToolTransferSearch, map[string]any{"reason": "browse headphones"})))

	res := f.run(t, "actually, search for headphones")
	target, ok := res.TransferTarget()
	if !ok || target != contractx.HandlerSearch {
		t.Fatalf("expected transfer to search, got %#v", res.Transfer)
	}
}

func TestOrderMalformedPlanKeepsCollecting(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), &schema.Message{Role: schema.Assistant})

	res := f.run(t, "uh")
	if statusOf(t, res) != contractx.OrderCollectingInfo {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if res.Message != fallbackMessage {
		t.Fatalf("unexpected message: %q", res.Message)
	}
}

func TestOrderPersistenceFailureKeepsSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits(), plan(call(toolx.ToolConfirm, nil)))
	f.orders.err = errors.New("connection refused")
	if _, err := f.session.Cart.Add(context.Background(), f.handler.gateway.Catalog(), "TECH-007", 1); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	f.fillCustomer()
	f.session.Checkout.MarkSummaryShown(f.session.Cart)

	res := f.run(t, "yes")
	if statusOf(t, res) != contractx.OrderCollectingInfo {
		t.Fatalf("unexpected status: %s", statusOf(t, res))
	}
	if !f.session.Checkout.ReadyToConfirm(f.session.Cart) {
		t.Fatal("a failed write must not void the displayed summary")
	}
}

func TestOrderCancelledTurnReturnsError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultLimits())
	f.model.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.handler.Process(ctx, f.session.NewTurn("buy TECH-007", nil))
	if !errors.Is(err, contractx.ErrCollaboratorTimeout) {
		t.Fatalf("expected ErrCollaboratorTimeout, got %v", err)
	}
}

func TestIsAffirmative(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"Yes", "yes please!", "OK, go ahead", "place the order"} {
		if !isAffirmative(text) {
			t.Fatalf("expected %q to be affirmative", text)
		}
	}
	for _, text := range []string{
		"12 Market Street, Springfield", "no", "wait, yesterday I said",
		"No, that's not correct", "I'm not sure", "no don't place the order", "not okay",
		"yes, but cancel the mouse", "ok stop", "dont do it", "that isn't right",
	} {
		if isAffirmative(text) {
			t.Fatalf("expected %q not to be affirmative", text)
		}
	}
}
