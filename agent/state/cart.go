package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Cart is an ordered set of line items keyed by product id.
type Cart struct {
	items []contractx.CartItem
}

type AddResult struct {
	Item         contractx.CartItem
	LineSubtotal float64
	CartTotal    float64
	Replaced     bool
	LowStock     bool
}

type CartView struct {
	Items []contractx.CartItem `json:"items"`
	Total float64              `json:"total"`
}

func NewCart(items ...contractx.CartItem) *Cart {
	c := &Cart{}
	c.replace(items)
	return c
}

// Add validates the product against the catalog and inserts it, or replaces
// the quantity of an existing line. The cart is untouched on error.
func (c *Cart) Add(ctx context.Context, catalog contractx.Catalog, productID string, quantity int) (AddResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return AddResult{}, fmt.Errorf("%w: empty product id", contractx.ErrProductNotFound)
	}
	if quantity <= 0 {
		return AddResult{}, fmt.Errorf("%w: got %d", contractx.ErrInvalidQuantity, quantity)
	}
	if catalog == nil {
		return AddResult{}, errors.New("catalog is required")
	}

	product, err := catalog.GetByID(ctx, productID)
	if err != nil {
		return AddResult{}, err
	}
	available, err := catalog.IsAvailable(ctx, product.ID)
	if err != nil {
		return AddResult{}, err
	}
	if !available {
		return AddResult{}, fmt.Errorf("%w: %s (%s)", contractx.ErrOutOfStock, product.Name, product.ID)
	}

	item := contractx.CartItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
	}

	replaced := false
	if idx := c.indexOf(product.ID); idx >= 0 {
		c.items[idx] = item
		replaced = true
	} else {
		c.items = append(c.items, item)
	}

	return AddResult{
		Item:         item,
		LineSubtotal: item.Subtotal(),
		CartTotal:    c.Total(),
		Replaced:     replaced,
		LowStock:     product.StockStatus == contractx.StockLow,
	}, nil
}

// Remove deletes the line for productID. It reports false when the product
// was not in the cart.
func (c *Cart) Remove(productID string) bool {
	idx := c.indexOf(strings.TrimSpace(productID))
	if idx < 0 {
		return false
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return true
}

func (c *Cart) View() CartView {
	return CartView{
		Items: c.Items(),
		Total: c.Total(),
	}
}

func (c *Cart) Clear() {
	c.items = nil
}

func (c *Cart) Items() []contractx.CartItem {
	if c == nil || len(c.items) == 0 {
		return nil
	}
	return append([]contractx.CartItem(nil), c.items...)
}

func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

func (c *Cart) Total() float64 {
	if c == nil {
		return 0
	}
	var total float64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// replace loads items keeping the first position of each product id and the
// last quantity written for it.
func (c *Cart) replace(items []contractx.CartItem) {
	c.items = nil
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			continue
		}
		if idx := c.indexOf(it.ProductID); idx >= 0 {
			c.items[idx] = it
			continue
		}
		c.items = append(c.items, it)
	}
}
