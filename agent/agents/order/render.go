package order

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

const (
	fallbackMessage = "I'm having trouble processing your order. Please try again."
	timeoutMessage  = "Sorry, that took longer than expected on my side. Could you say that again?"
)

func renderCart(view statex.CartView) string {
	if len(view.Items) == 0 {
		return "Your cart is empty."
	}
	var b strings.Builder
	b.WriteString("Your cart:\n")
	writeLines(&b, view.Items)
	fmt.Fprintf(&b, "Total: $%.2f", view.Total)
	return b.String()
}

func renderSummary(view statex.CartView, customer contractx.Customer) string {
	var b strings.Builder
	b.WriteString("Order summary:\n")
	writeLines(&b, view.Items)
	fmt.Fprintf(&b, "Total: $%.2f\n\n", view.Total)
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nShipping to: %s", customer.Name, customer.Email, customer.ShippingAddress)
	return b.String()
}

func renderConfirmation(receipt contractx.OrderReceipt, items []contractx.CartItem, customer contractx.Customer) string {
	var b strings.Builder
	b.WriteString("Order placed successfully!\n\n")
	fmt.Fprintf(&b, "Order ID: %s\nCustomer: %s\nEmail: %s\n\nItems:\n", receipt.OrderID, customer.Name, customer.Email)
	writeLines(&b, items)
	fmt.Fprintf(&b, "\nTotal: $%.2f\n\n", receipt.Total)
	fmt.Fprintf(&b, "Shipping to: %s\n\n", customer.ShippingAddress)
	fmt.Fprintf(&b, "You'll receive a confirmation email at %s. Estimated delivery: 3-5 business days.", customer.Email)
	return b.String()
}

func writeLines(b *strings.Builder, items []contractx.CartItem) {
	for _, it := range items {
		fmt.Fprintf(b, "- %dx %s (ID: %s) @ $%.2f each = $%.2f\n",
			it.Quantity, it.ProductName, it.ProductID, it.UnitPrice, it.Subtotal())
	}
}

func askFor(field string) string {
	switch field {
	case statex.FieldName:
		return "What's your full name?"
	case statex.FieldEmail:
		return "What email address should we send the order confirmation to?"
	case statex.FieldShippingAddress:
		return "What's the complete shipping address (street, city, state, zip)?"
	default:
		return "Could you tell me your " + fieldLabel(field) + "?"
	}
}

func fieldLabel(field string) string {
	switch field {
	case statex.FieldShippingAddress:
		return "shipping address"
	default:
		return strings.ReplaceAll(field, "_", " ")
	}
}
