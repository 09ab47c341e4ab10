package tool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

var ErrBudgetExhausted = errors.New("per-turn budget exhausted")

// Budget counts what is left of one turn's allowance. Not safe for
// concurrent use.
type Budget struct {
	validations   int
	orderAttempts int
}

func NewBudget(maxValidations, maxOrderAttempts int) *Budget {
	return &Budget{validations: maxValidations, orderAttempts: maxOrderAttempts}
}

func (b *Budget) Validations() int   { return b.validations }
func (b *Budget) OrderAttempts() int { return b.orderAttempts }

// Gateway executes cart and order operations against the catalog and the
// order repository, charging each call to a Budget.
type Gateway struct {
	catalog  contractx.Catalog
	orders   contractx.OrderRepository
	notifier contractx.OrderNotifier
	validate *validator.Validate
	rules    map[string]string
}

type GatewayOption func(*Gateway)

func WithNotifier(n contractx.OrderNotifier) GatewayOption {
	return func(g *Gateway) {
		g.notifier = n
	}
}

func NewGateway(catalog contractx.Catalog, orders contractx.OrderRepository, opts ...GatewayOption) (*Gateway, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if orders == nil {
		return nil, errors.New("order repository is required")
	}

	g := &Gateway{
		catalog:  catalog,
		orders:   orders,
		validate: NewValidator(),
		rules:    customerRules(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *Gateway) Catalog() contractx.Catalog {
	return g.catalog
}

func (g *Gateway) AddItem(
	ctx context.Context,
	budget *Budget,
	cart *statex.Cart,
	productID string,
	quantity int,
) (statex.AddResult, error) {
	if budget.validations <= 0 {
		return statex.AddResult{}, fmt.Errorf("%w: product validations", ErrBudgetExhausted)
	}
	budget.validations--
	return cart.Add(ctx, g.catalog, productID, quantity)
}

// CheckField validates one customer detail against the Customer rules.
func (g *Gateway) CheckField(field, value string) error {
	rule, ok := g.rules[field]
	if !ok {
		return fmt.Errorf("%w: unknown customer field %q", contractx.ErrValidation, field)
	}
	if err := g.validate.Var(strings.TrimSpace(value), rule); err != nil {
		return fmt.Errorf("%w: %s", contractx.ErrCustomerIncomplete, field)
	}
	return nil
}

// PlaceOrder re-checks the items and the customer, then creates the order.
// A notification failure is logged and does not fail the order.
func (g *Gateway) PlaceOrder(
	ctx context.Context,
	budget *Budget,
	customer contractx.Customer,
	items []contractx.CartItem,
) (contractx.OrderReceipt, error) {
	if budget.orderAttempts <= 0 {
		return contractx.OrderReceipt{}, fmt.Errorf("%w: order attempts", ErrBudgetExhausted)
	}
	budget.orderAttempts--

	if len(items) == 0 {
		return contractx.OrderReceipt{}, contractx.ErrEmptyCart
	}
	if err := g.validate.Struct(customer); err != nil {
		return contractx.OrderReceipt{}, fmt.Errorf("%w: %s", contractx.ErrCustomerIncomplete, strings.Join(InvalidFields(err), ", "))
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return contractx.OrderReceipt{}, fmt.Errorf("%w: %s quantity=%d", contractx.ErrInvalidItems, it.ProductID, it.Quantity)
		}
		ok, err := g.catalog.IsAvailable(ctx, it.ProductID)
		if err != nil {
			return contractx.OrderReceipt{}, err
		}
		if !ok {
			return contractx.OrderReceipt{}, fmt.Errorf("%w: %s", contractx.ErrOutOfStock, it.ProductName)
		}
	}

	in := contractx.CreateOrderInput{Customer: customer, Items: items}
	receipt, err := g.orders.CreateOrder(ctx, in)
	if err != nil {
		return contractx.OrderReceipt{}, err
	}

	if g.notifier != nil {
		if err := g.notifier.OrderCreated(ctx, receipt, in); err != nil {
			log.Warn().Err(err).Str("order_id", receipt.OrderID).Msg("order notification failed")
		}
	}
	return receipt, nil
}

// NewValidator reports field names by their json tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

// InvalidFields lists the json names of the fields that failed validation.
func InvalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

func customerRules() map[string]string {
	t := reflect.TypeOf(contractx.Customer{})
	rules := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		rules[jsonName(f)] = f.Tag.Get("validate")
	}
	return rules
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
