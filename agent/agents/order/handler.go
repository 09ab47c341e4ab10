package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	llmx "github.com/tanpawarit/chative-commerce/agent/llm"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
	toolx "github.com/tanpawarit/chative-commerce/agent/tool"
)

// Limits bound the work of one turn.
type Limits struct {
	MaxValidations   int `envconfig:"MAX_VALIDATIONS" split_words:"true" default:"3"`
	MaxOrderAttempts int `envconfig:"MAX_CREATE_ATTEMPTS" split_words:"true" default:"1"`
}

func DefaultLimits() Limits {
	return Limits{MaxValidations: 3, MaxOrderAttempts: 1}
}

func (l Limits) normalize() Limits {
	d := DefaultLimits()
	if l.MaxValidations <= 0 {
		l.MaxValidations = d.MaxValidations
	}
	if l.MaxOrderAttempts <= 0 {
		l.MaxOrderAttempts = d.MaxOrderAttempts
	}
	return l
}

// Handler runs the purchase flow: cart changes, customer details, summary,
// confirmation and order creation. It reports its status explicitly; the
// caller clears the cart after a completed order.
type Handler struct {
	gateway *toolx.Gateway
	runner  *llmx.ToolRunner
	limits  Limits
}

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	gateway *toolx.Gateway,
	limits Limits,
) (*Handler, error) {
	if gateway == nil {
		return nil, errors.New("order gateway is required")
	}
	runner, err := llmx.NewToolRunner(ctx, chatModel, toolx.OrderTools(), systemPrompt, "order.tool_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile order graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Handler{
		gateway: gateway,
		runner:  runner,
		limits:  limits.normalize(),
	}, nil
}

// turnState collects what happened while running one turn's actions.
type turnState struct {
	lines []string

	attempted int
	failed    int

	summaryShown bool
	mutated      bool
	cancelled    bool
	stopAdds     bool

	receipt  *contractx.OrderReceipt
	transfer *contractx.TransferRequest
}

func (t *turnState) say(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

// Process returns an error only when ctx ends before the turn is answered.
func (h *Handler) Process(ctx context.Context, turn statex.Turn) (contractx.HandlerResult, error) {
	if turn.Cart == nil || turn.Checkout == nil {
		return contractx.HandlerResult{}, fmt.Errorf("%w: order turn without cart or checkout", contractx.ErrValidation)
	}

	res := h.runner.Run(ctx, h.planInput(turn), turn.History)

	switch res.Outcome {
	case llmx.OutcomeStructured:
	case llmx.OutcomeTimeout:
		if err := ctx.Err(); err != nil {
			return contractx.HandlerResult{}, fmt.Errorf("%w: order plan: %v", contractx.ErrCollaboratorTimeout, err)
		}
		log.Warn().Err(res.Err).Msg("order plan timed out")
		return h.result(timeoutMessage, contractx.OrderCollectingInfo, nil), nil
	case llmx.OutcomeNoStructured:
		log.Warn().Err(res.Err).Str("raw", res.Raw).Msg("order plan had no structured result")
		return h.result(fallbackMessage, contractx.OrderCollectingInfo, nil), nil
	default:
		if err := ctx.Err(); err != nil {
			return contractx.HandlerResult{}, fmt.Errorf("%w: order plan: %v", contractx.ErrCollaboratorTimeout, err)
		}
		log.Error().Err(res.Err).Msg("order plan failed")
		return h.result(fallbackMessage, contractx.OrderCollectingInfo, nil), nil
	}

	plan := res.Value
	st := &turnState{}
	budget := toolx.NewBudget(h.limits.MaxValidations, h.limits.MaxOrderAttempts)

	for _, call := range plan.Calls {
		act, err := decodeAction(call)
		if err != nil {
			if errors.Is(err, contractx.ErrInvalidQuantity) {
				st.attempted++
				st.failed++
				st.say("Quantities need to be whole numbers of at least 1.")
				continue
			}
			log.Warn().Err(err).Str("tool", call.Tool).Msg("skipping undecodable order action")
			continue
		}
		h.apply(ctx, turn, budget, st, act)
		if err := ctx.Err(); err != nil {
			return contractx.HandlerResult{}, fmt.Errorf("%w: order action %s: %v", contractx.ErrCollaboratorTimeout, act.tool(), err)
		}
		if st.receipt != nil || st.cancelled || st.transfer != nil {
			break
		}
	}

	if st.receipt == nil && !st.cancelled && st.transfer == nil {
		h.nextStep(turn, st, plan.Content)
	}

	status := h.status(turn, st)
	message := strings.Join(st.lines, "\n\n")
	if message == "" {
		message = strings.TrimSpace(plan.Content)
	}
	if message == "" {
		message = fallbackMessage
	}

	out := h.result(message, status, st.transfer)
	if st.receipt != nil {
		payload := out.Payload.(contractx.OrderPayload)
		payload.OrderID = st.receipt.OrderID
		out.Payload = payload
	}

	log.Info().
		Str("handler", string(contractx.HandlerOrder)).
		Str("status", string(status)).
		Int("actions", len(plan.Calls)).
		Int("cart_items", turn.Cart.Len()).
		Bool("transfer", st.transfer != nil).
		Msg("order turn handled")
	return out, nil
}

func (h *Handler) planInput(turn statex.Turn) map[string]any {
	return map[string]any{
		"turn":           strings.TrimSpace(turn.Text),
		"cart":           turn.Cart.View(),
		"customer":       turn.Checkout.Customer,
		"missing_fields": turn.Checkout.MissingFields(),
		"summary_shown":  turn.Checkout.ReadyToConfirm(turn.Cart),
	}
}

func (h *Handler) apply(ctx context.Context, turn statex.Turn, budget *toolx.Budget, st *turnState, act action) {
	switch a := act.(type) {
	case addItem:
		h.addItem(ctx, turn, budget, st, a)
	case removeItem:
		if turn.Cart.Remove(a.ProductID) {
			st.mutated = true
			turn.Checkout.InvalidateSummary()
			st.say("Removed %s from your cart. Cart total: $%.2f.", a.ProductID, turn.Cart.Total())
		} else {
			st.say("%s isn't in your cart.", a.ProductID)
		}
	case viewCart:
		st.say("%s", renderCart(turn.Cart.View()))
	case setCustomer:
		h.setCustomer(turn, st, a)
	case showSummary:
		h.showSummary(turn, st)
	case confirmOrder:
		h.confirm(ctx, turn, budget, st)
	case cancelOrder:
		turn.Checkout.Reset()
		st.cancelled = true
		if turn.Cart.IsEmpty() {
			st.say("Okay, I've stopped the checkout.")
		} else {
			st.say("Okay, I've stopped the checkout. Your cart is kept in case you change your mind.")
		}
	case transferSearch:
		reason := a.Reason
		if reason == "" {
			reason = "product search"
		}
		st.transfer = &contractx.TransferRequest{Target: contractx.HandlerSearch, Reason: reason}
	}
}

func (h *Handler) addItem(ctx context.Context, turn statex.Turn, budget *toolx.Budget, st *turnState, a addItem) {
	if st.stopAdds {
		return
	}
	st.attempted++

	added, err := h.gateway.AddItem(ctx, budget, turn.Cart, a.ProductID, a.Quantity)
	if err != nil {
		st.failed++
		switch {
		case errors.Is(err, toolx.ErrBudgetExhausted):
			st.stopAdds = true
			st.say("I can check up to %d products per message. Please send the remaining products in your next message.", h.limits.MaxValidations)
		case errors.Is(err, contractx.ErrProductNotFound):
			st.say("Product %s not found. Please check the product ID or search for the product first.", a.ProductID)
		case errors.Is(err, contractx.ErrOutOfStock):
			st.say("Sorry, %s (ID: %s) is currently out of stock. Would you like me to suggest similar products?", h.productName(ctx, a.ProductID), a.ProductID)
		case errors.Is(err, contractx.ErrInvalidQuantity):
			st.say("Quantities need to be whole numbers of at least 1.")
		default:
			log.Error().Err(err).Str("product_id", a.ProductID).Msg("product validation failed")
			st.say("I couldn't check %s right now. Please try again in a moment.", a.ProductID)
		}
		return
	}

	st.mutated = true
	turn.Checkout.InvalidateSummary()

	verb := "Added"
	if added.Replaced {
		verb = "Updated"
	}
	line := fmt.Sprintf("%s %d x %s (ID: %s) at $%.2f each. Subtotal: $%.2f. Cart total: $%.2f.",
		verb, added.Item.Quantity, added.Item.ProductName, added.Item.ProductID,
		added.Item.UnitPrice, added.LineSubtotal, added.CartTotal)
	if added.LowStock {
		line += " Note: this item has limited stock available."
	}
	st.say("%s", line)
}

func (h *Handler) setCustomer(turn statex.Turn, st *turnState, a setCustomer) {
	label := fieldLabel(a.Field)
	if err := h.gateway.CheckField(a.Field, a.Value); err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			log.Warn().Str("field", a.Field).Msg("unknown customer field")
			return
		}
		st.say("That %s doesn't look right. Could you check it and send it again?", label)
		return
	}
	if turn.Checkout.SetField(a.Field, a.Value) {
		st.mutated = true
		turn.Checkout.InvalidateSummary()
		st.say("Thanks, I've noted your %s.", label)
	}
}

func (h *Handler) showSummary(turn statex.Turn, st *turnState) {
	if turn.Cart.IsEmpty() {
		st.say("Your cart is empty, so there is nothing to summarize yet.")
		return
	}
	if missing := turn.Checkout.MissingFields(); len(missing) > 0 {
		return
	}
	turn.Checkout.MarkSummaryShown(turn.Cart)
	st.summaryShown = true
	st.say("%s", renderSummary(turn.Cart.View(), turn.Checkout.Customer))
}

// confirm places the order only when a summary of exactly this cart and
// customer was displayed in an earlier turn and the customer agreed.
func (h *Handler) confirm(ctx context.Context, turn statex.Turn, budget *toolx.Budget, st *turnState) {
	switch {
	case turn.Cart.IsEmpty():
		st.say("Your cart is empty. What would you like to order?")
		return
	case st.summaryShown || st.mutated:
		return
	case len(turn.Checkout.MissingFields()) > 0:
		return
	case !turn.Checkout.ReadyToConfirm(turn.Cart):
		h.showSummary(turn, st)
		return
	case !isAffirmative(turn.Text):
		st.say("Just to be sure: reply yes to place the order, or tell me what to change.")
		return
	}

	st.attempted++
	items := turn.Cart.Items()
	receipt, err := h.gateway.PlaceOrder(ctx, budget, turn.Checkout.Customer, items)
	if err != nil {
		st.failed++
		switch {
		case errors.Is(err, toolx.ErrBudgetExhausted):
			st.say("I've already tried to place this order once in this message. Please reply yes again to retry.")
		case errors.Is(err, contractx.ErrOutOfStock):
			turn.Checkout.InvalidateSummary()
			st.say("Sorry, an item in your cart just went out of stock. Please remove it or pick an alternative.")
		case errors.Is(err, contractx.ErrCustomerIncomplete):
			turn.Checkout.InvalidateSummary()
			st.say("Some of your details look incomplete. Please check your name, email and shipping address.")
		default:
			log.Error().Err(err).Msg("order creation failed")
			st.say("I couldn't place your order right now. Please reply yes to try again.")
		}
		return
	}

	st.receipt = &receipt
	st.say("%s", renderConfirmation(receipt, items, turn.Checkout.Customer))
}

// nextStep adds the follow-up the customer needs to move the order forward.
func (h *Handler) nextStep(turn statex.Turn, st *turnState, content string) {
	if st.summaryShown {
		st.say("Reply yes to place the order, or tell me what to change.")
		return
	}
	if turn.Cart.IsEmpty() {
		if len(st.lines) == 0 && strings.TrimSpace(content) == "" {
			st.say("What would you like to order? You can give me a product ID such as TECH-007.")
		}
		return
	}
	if missing := turn.Checkout.MissingFields(); len(missing) > 0 {
		if len(st.lines) > 0 || strings.TrimSpace(content) == "" {
			st.say("%s", askFor(missing[0]))
		}
		return
	}
	if !turn.Checkout.ReadyToConfirm(turn.Cart) && st.mutated {
		h.showSummary(turn, st)
		if st.summaryShown {
			st.say("Reply yes to place the order, or tell me what to change.")
		}
	}
}

func (h *Handler) status(turn statex.Turn, st *turnState) contractx.OrderStatus {
	switch {
	case st.receipt != nil:
		return contractx.OrderCompleted
	case st.cancelled:
		return contractx.OrderFailed
	case st.attempted > 0 && st.failed == st.attempted && turn.Cart.IsEmpty():
		return contractx.OrderFailed
	case st.summaryShown:
		return contractx.OrderConfirming
	default:
		return contractx.OrderCollectingInfo
	}
}

func (h *Handler) result(message string, status contractx.OrderStatus, transfer *contractx.TransferRequest) contractx.HandlerResult {
	return contractx.HandlerResult{
		Message:  message,
		Transfer: transfer,
		Payload:  contractx.OrderPayload{Status: status},
	}
}

func (h *Handler) productName(ctx context.Context, id string) string {
	p, err := h.gateway.Catalog().GetByID(ctx, id)
	if err != nil || p.Name == "" {
		return id
	}
	return p.Name
}

var affirmatives = []string{
	"yes", "yep", "yeah", "yup", "sure", "ok", "okay", "confirm", "confirmed",
	"correct", "absolutely", "proceed", "go ahead", "place the order", "place my order",
	"place it", "do it", "sounds good", "looks good", "please do",
}

// negations veto a confirmation anywhere in the turn. "t" is what is left of
// contractions such as "don't" and "isn't".
var negations = map[string]bool{
	"no": true, "not": true, "nope": true, "never": true, "dont": true, "t": true,
	"cancel": true, "wait": true, "stop": true, "hold": true,
}

func isAffirmative(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, w := range words {
		if negations[w] {
			return false
		}
	}
	normalized := " " + strings.Join(words, " ") + " "
	for _, a := range affirmatives {
		if strings.Contains(normalized, " "+a+" ") {
			return true
		}
	}
	return false
}
