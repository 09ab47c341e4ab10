package qstash

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const EventOrderCreated = "order.created"

type OrderCreatedEvent struct {
	Event         string               `json:"event"`
	OrderID       string               `json:"order_id"`
	Total         float64              `json:"total"`
	CreatedAt     time.Time            `json:"created_at"`
	CustomerName  string               `json:"customer_name"`
	CustomerEmail string               `json:"customer_email"`
	Items         []contractx.CartItem `json:"items"`
}

// OrderNotifier publishes one order.created message per order.
type OrderNotifier struct {
	client      *Client
	destination string
}

var _ contractx.OrderNotifier = (*OrderNotifier)(nil)

func NewOrderNotifier(client *Client, destination string) *OrderNotifier {
	return &OrderNotifier{client: client, destination: destination}
}

func (n *OrderNotifier) OrderCreated(ctx context.Context, receipt contractx.OrderReceipt, in contractx.CreateOrderInput) error {
	event := OrderCreatedEvent{
		Event:         EventOrderCreated,
		OrderID:       receipt.OrderID,
		Total:         receipt.Total,
		CreatedAt:     receipt.CreatedAt,
		CustomerName:  in.Customer.Name,
		CustomerEmail: in.Customer.Email,
		Items:         in.Items,
	}
	id, err := n.client.Publish(ctx, n.destination, event,
		WithDeduplicationID(receipt.OrderID),
		WithForwardHeader("Event", EventOrderCreated),
	)
	if err != nil {
		return err
	}
	log.Debug().Str("order_id", receipt.OrderID).Str("message_id", id).Msg("order notification published")
	return nil
}
