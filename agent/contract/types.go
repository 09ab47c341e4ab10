package contract

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// HandlerKind identifies who produced a reply.
type HandlerKind string

const (
	HandlerSearch HandlerKind = "search"
	HandlerOrder  HandlerKind = "order"
	// HandlerRouter tags replies the controller produced itself (clarifying
	// questions, greetings, degraded answers).
	HandlerRouter HandlerKind = "router"
)

func (k HandlerKind) Valid() bool {
	return k == HandlerSearch || k == HandlerOrder
}

func ParseHandlerKind(raw string) (HandlerKind, bool) {
	switch HandlerKind(strings.ToLower(strings.TrimSpace(raw))) {
	case HandlerSearch, "rag", "product_search":
		return HandlerSearch, true
	case HandlerOrder, "place_order":
		return HandlerOrder, true
	default:
		return "", false
	}
}

type StockStatus string

const (
	StockIn  StockStatus = "in_stock"
	StockLow StockStatus = "low_stock"
	StockOut StockStatus = "out_of_stock"
)

func (s StockStatus) Available() bool {
	return s == StockIn || s == StockLow
}

type Product struct {
	ID          string      `json:"product_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Category    string      `json:"category"`
	StockStatus StockStatus `json:"stock_status"`
}

type ProductInfo struct {
	ProductID   string      `json:"product_id"`
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	Category    string      `json:"category"`
	StockStatus StockStatus `json:"stock_status"`
}

func NewProductInfo(p Product) ProductInfo {
	return ProductInfo{
		ProductID:   p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		StockStatus: p.StockStatus,
	}
}

type CartItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

type OrderStatus string

const (
	OrderCollectingInfo OrderStatus = "collecting_info"
	OrderConfirming     OrderStatus = "confirming"
	OrderCompleted      OrderStatus = "completed"
	OrderFailed         OrderStatus = "failed"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// ToolRequest is one tool call emitted by a model.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type TransferRequest struct {
	Target HandlerKind `json:"target"`
	Reason string      `json:"reason,omitempty"`
}

// Payload is the handler-specific part of a HandlerResult.
type Payload interface {
	handler() HandlerKind
}

type SearchPayload struct {
	Products []ProductInfo `json:"products"`
}

func (SearchPayload) handler() HandlerKind { return HandlerSearch }

type OrderPayload struct {
	Status  OrderStatus `json:"status"`
	OrderID string      `json:"order_id,omitempty"`
}

func (OrderPayload) handler() HandlerKind { return HandlerOrder }

type HandlerResult struct {
	Message  string           `json:"message"`
	Transfer *TransferRequest `json:"transfer_request,omitempty"`
	Payload  Payload          `json:"payload,omitempty"`
}

// Handler reports which handler produced the result, derived from the payload.
func (r HandlerResult) Handler() HandlerKind {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.handler()
}

func (r HandlerResult) OrderStatus() (OrderStatus, bool) {
	p, ok := r.Payload.(OrderPayload)
	if !ok {
		return "", false
	}
	return p.Status, true
}

func (r HandlerResult) Products() []ProductInfo {
	p, ok := r.Payload.(SearchPayload)
	if !ok {
		return nil
	}
	return p.Products
}

func (r HandlerResult) TransferTarget() (HandlerKind, bool) {
	if r.Transfer == nil || !r.Transfer.Target.Valid() {
		return "", false
	}
	return r.Transfer.Target, true
}

type SessionResponse struct {
	Message     string        `json:"message"`
	HandledBy   HandlerKind   `json:"handled_by"`
	Products    []ProductInfo `json:"products,omitempty"`
	OrderStatus OrderStatus   `json:"order_status,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
}

type Customer struct {
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=8"`
}

type CreateOrderInput struct {
	Customer Customer   `json:"customer"`
	Items    []CartItem `json:"items"`
}

func (in CreateOrderInput) Total() float64 {
	var total float64
	for _, it := range in.Items {
		total += it.Subtotal()
	}
	return total
}

type OrderReceipt struct {
	OrderID   string    `json:"order_id"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}
