package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown order status %q", contractx.ErrValidation, raw)
	}
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              int64        `bun:"id,pk,autoincrement"`
	OrderID         string       `bun:"order_id,notnull,unique"`
	CustomerName    string       `bun:"customer_name,notnull"`
	CustomerEmail   string       `bun:"customer_email,notnull"`
	ShippingAddress string       `bun:"shipping_address,notnull"`
	TotalAmount     float64      `bun:"total_amount,notnull"`
	Status          Status       `bun:"status,notnull,default:'pending'"`
	CreatedAt       time.Time    `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt       time.Time    `bun:"updated_at,notnull,default:current_timestamp"`
	Items           []*OrderItem `bun:"rel:has-many,join:order_id=order_id"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64   `bun:"id,pk,autoincrement"`
	OrderID     string  `bun:"order_id,notnull"`
	ProductID   string  `bun:"product_id,notnull"`
	ProductName string  `bun:"product_name,notnull"`
	Quantity    int     `bun:"quantity,notnull"`
	UnitPrice   float64 `bun:"unit_price,notnull"`
	Subtotal    float64 `bun:"subtotal,notnull"`
}

func newOrder(orderID string, in contractx.CreateOrderInput, now time.Time) *Order {
	o := &Order{
		OrderID:         orderID,
		CustomerName:    strings.TrimSpace(in.Customer.Name),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.Customer.Email)),
		ShippingAddress: strings.TrimSpace(in.Customer.ShippingAddress),
		TotalAmount:     in.Total(),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]*OrderItem, 0, len(in.Items)),
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, &OrderItem{
			OrderID:     orderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
		})
	}
	return o
}

func (o *Order) Receipt() contractx.OrderReceipt {
	return contractx.OrderReceipt{
		OrderID:   o.OrderID,
		Total:     o.TotalAmount,
		CreatedAt: o.CreatedAt,
	}
}
