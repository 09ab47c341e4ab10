package order

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	toolx "github.com/tanpawarit/chative-commerce/agent/tool"
)

// action is one operation the order handler can run. The set is closed.
type action interface {
	tool() string
}

type addItem struct {
	ProductID string
	Quantity  int
}

type removeItem struct {
	ProductID string
}

type viewCart struct{}

type setCustomer struct {
	Field string
	Value string
}

type showSummary struct{}

type confirmOrder struct{}

type cancelOrder struct{}

type transferSearch struct {
	Reason string
}

func (addItem) tool() string        { return toolx.ToolAddItem }
func (removeItem) tool() string     { return toolx.ToolRemoveItem }
func (viewCart) tool() string       { return toolx.ToolViewCart }
func (setCustomer) tool() string    { return toolx.ToolSetCustomer }
func (showSummary) tool() string    { return toolx.ToolShowSummary }
func (confirmOrder) tool() string   { return toolx.ToolConfirm }
func (cancelOrder) tool() string    { return toolx.ToolCancel }
func (transferSearch) tool() string { return toolx.ToolTransferSearch }

func decodeAction(req contractx.ToolRequest) (action, error) {
	switch req.Tool {
	case toolx.ToolAddItem:
		id := stringArg(req.Args, "product_id")
		if id == "" {
			return nil, fmt.Errorf("%w: add_item without product_id", contractx.ErrSchemaViolation)
		}
		qty, err := intArg(req.Args, "quantity", 1)
		if err != nil {
			return nil, err
		}
		return addItem{ProductID: strings.ToUpper(id), Quantity: qty}, nil
	case toolx.ToolRemoveItem:
		id := stringArg(req.Args, "product_id")
		if id == "" {
			return nil, fmt.Errorf("%w: remove_item without product_id", contractx.ErrSchemaViolation)
		}
		return removeItem{ProductID: strings.ToUpper(id)}, nil
	case toolx.ToolViewCart:
		return viewCart{}, nil
	case toolx.ToolSetCustomer:
		field := strings.ToLower(stringArg(req.Args, "field"))
		if field == "address" {
			field = "shipping_address"
		}
		return setCustomer{Field: field, Value: stringArg(req.Args, "value")}, nil
	case toolx.ToolShowSummary:
		return showSummary{}, nil
	case toolx.ToolConfirm:
		return confirmOrder{}, nil
	case toolx.ToolCancel:
		return cancelOrder{}, nil
	case toolx.ToolTransferSearch:
		return transferSearch{Reason: stringArg(req.Args, "reason")}, nil
	default:
		return nil, fmt.Errorf("%w: unknown order tool %q", contractx.ErrSchemaViolation, req.Tool)
	}
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// intArg reads a whole number. A missing value yields def; fractional or
// non-numeric values are rejected.
func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %s=%v", contractx.ErrInvalidQuantity, key, t)
		}
		return int(t), nil
	case int:
		return t, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", contractx.ErrInvalidQuantity, key, t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s has type %T", contractx.ErrInvalidQuantity, key, v)
	}
}
