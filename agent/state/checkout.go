package state

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldShippingAddress = "shipping_address"
)

// Checkout tracks the customer details collected so far and whether an order
// summary has been shown for the current cart.
type Checkout struct {
	Customer contractx.Customer `json:"customer"`

	// SummaryShown is set when an order summary was displayed. The fingerprint
	// pins the cart and customer it described; any later change voids it.
	SummaryShown       bool   `json:"summary_shown"`
	SummaryFingerprint string `json:"summary_fingerprint,omitempty"`
}

func (c *Checkout) SetField(field, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch field {
	case FieldName:
		c.Customer.Name = value
	case FieldEmail:
		c.Customer.Email = value
	case FieldShippingAddress:
		c.Customer.ShippingAddress = value
	default:
		return false
	}
	return true
}

// MissingFields lists required customer fields in the order they are asked.
func (c *Checkout) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Customer.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(c.Customer.Email) == "" {
		missing = append(missing, FieldEmail)
	}
	if strings.TrimSpace(c.Customer.ShippingAddress) == "" {
		missing = append(missing, FieldShippingAddress)
	}
	return missing
}

func (c *Checkout) MarkSummaryShown(cart *Cart) {
	c.SummaryShown = true
	c.SummaryFingerprint = Fingerprint(cart, c.Customer)
}

func (c *Checkout) InvalidateSummary() {
	c.SummaryShown = false
	c.SummaryFingerprint = ""
}

// ReadyToConfirm reports whether a summary for exactly this cart and customer
// was displayed before.
func (c *Checkout) ReadyToConfirm(cart *Cart) bool {
	if !c.SummaryShown || cart.IsEmpty() {
		return false
	}
	return c.SummaryFingerprint == Fingerprint(cart, c.Customer)
}

// Reset drops the summary but keeps customer details for a follow-up order.
func (c *Checkout) Reset() {
	c.InvalidateSummary()
}

// Clear forgets the customer and the summary once an order is placed.
func (c *Checkout) Clear() {
	*c = Checkout{}
}

func Fingerprint(cart *Cart, customer contractx.Customer) string {
	var b strings.Builder
	for _, it := range cart.Items() {
		fmt.Fprintf(&b, "%s:%d:%.2f;", it.ProductID, it.Quantity, it.UnitPrice)
	}
	fmt.Fprintf(&b, "|%s|%s|%s",
		strings.TrimSpace(customer.Name),
		strings.ToLower(strings.TrimSpace(customer.Email)),
		strings.TrimSpace(customer.ShippingAddress),
	)
	return b.String()
}
