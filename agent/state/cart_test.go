package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

type fakeCatalog struct {
	products map[string]contractx.Product
	lookups  int
}

func newFakeCatalog(products ...contractx.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]contractx.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (contractx.Product, error) {
	f.lookups++
	p, ok := f.products[id]
	if !ok {
		return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, id)
	}
	return p, nil
}

func (f *fakeCatalog) GetByIDOrExactName(ctx context.Context, text string) (contractx.Product, error) {
	if p, err := f.GetByID(ctx, text); err == nil {
		return p, nil
	}
	for _, p := range f.products {
		if strings.EqualFold(p.Name, text) {
			return p, nil
		}
	}
	return contractx.Product{}, contractx.ErrProductNotFound
}

func (f *fakeCatalog) IsAvailable(ctx context.Context, id string) (bool, error) {
	p, ok := f.products[id]
	return ok && p.StockStatus.Available(), nil
}

var (
	laptop = contractx.Product{ID: "TECH-007", Name: "UltraBook 14", Price: 1299.99, Category: "laptops", StockStatus: contractx.StockIn}
	mouse  = contractx.Product{ID: "TECH-012", Name: "Silent Mouse", Price: 25.5, Category: "accessories", StockStatus: contractx.StockLow}
	camera = contractx.Product{ID: "TECH-020", Name: "Action Cam", Price: 199, Category: "cameras", StockStatus: contractx.StockOut}
)

func TestCartAddReplacesQuantity(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	catalog := newFakeCatalog(laptop)

	if _, err := cart.Add(context.Background(), catalog, "TECH-007", 2); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	res, err := cart.Add(context.Background(), catalog, "TECH-007", 5)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	items := cart.Items()
	if len(items) != 1 {
		t.Fatalf("expected one cart line, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", items[0].Quantity)
	}
	if !res.Replaced {
		t.Fatal("expected second add to report a replace")
	}
	if res.LineSubtotal != 5*laptop.Price {
		t.Fatalf("unexpected subtotal: %v", res.LineSubtotal)
	}
}

func TestCartAddIsIdempotent(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	catalog := newFakeCatalog(laptop, mouse)

	for i := 0; i < 3; i++ {
		if _, err := cart.Add(context.Background(), catalog, "TECH-012", 2); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	view := cart.View()
	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart after repeated add: %#v", view.Items)
	}
	if view.Total != 51 {
		t.Fatalf("unexpected total: %v", view.Total)
	}
}

func TestCartAddRejectionsLeaveCartUntouched(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	catalog := newFakeCatalog(laptop, camera)
	if _, err := cart.Add(context.Background(), catalog, "TECH-007", 1); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	_, err := cart.Add(context.Background(), catalog, "NOPE-1", 1)
	if !errors.Is(err, contractx.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	_, err = cart.Add(context.Background(), catalog, "TECH-020", 1)
	if !errors.Is(err, contractx.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	_, err = cart.Add(context.Background(), catalog, "TECH-007", 0)
	if !errors.Is(err, contractx.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	items := cart.Items()
	if len(items) != 1 || items[0].ProductID != "TECH-007" || items[0].Quantity != 1 {
		t.Fatalf("cart mutated by rejected adds: %#v", items)
	}
}

func TestCartRemoveNotInCart(t *testing.T) {
	t.Parallel()

	cart := NewCart(contractx.CartItem{ProductID: "TECH-007", ProductName: "UltraBook 14", Quantity: 1, UnitPrice: 10})

	if cart.Remove("TECH-999") {
		t.Fatal("expected Remove of unknown product to report false")
	}
	if !cart.Remove("TECH-007") {
		t.Fatal("expected Remove of existing product to report true")
	}
	if !cart.IsEmpty() {
		t.Fatalf("expected empty cart, got %#v", cart.Items())
	}
}

func TestCartViewTotal(t *testing.T) {
	t.Parallel()

	cart := NewCart(
		contractx.CartItem{ProductID: "A", ProductName: "A", Quantity: 2, UnitPrice: 10.25},
		contractx.CartItem{ProductID: "B", ProductName: "B", Quantity: 3, UnitPrice: 4},
	)

	view := cart.View()
	if view.Total != 32.5 {
		t.Fatalf("unexpected total: %v", view.Total)
	}

	view.Items[0].Quantity = 99
	if cart.Items()[0].Quantity != 2 {
		t.Fatal("View must not expose internal storage")
	}
}

func TestSessionRestoreKeepsCartPointer(t *testing.T) {
	t.Parallel()

	sess := NewSession("s1", fixedNow)
	sess.Cart = NewCart(contractx.CartItem{ProductID: "A", ProductName: "A", Quantity: 1, UnitPrice: 1})
	snap := sess.Snapshot()

	cart := sess.Cart
	cart.Clear()
	sess.SetMode(ModeOrderLocked)
	sess.Checkout.SetField(FieldName, "Jane Doe")

	sess.Restore(snap)

	if sess.Cart != cart {
		t.Fatal("Restore must keep the shared cart pointer")
	}
	if cart.Len() != 1 {
		t.Fatalf("expected cart restored, got %#v", cart.Items())
	}
	if sess.Mode() != ModeFree {
		t.Fatalf("expected mode restored to free, got %s", sess.Mode())
	}
	if sess.Checkout.Customer.Name != "" {
		t.Fatalf("expected checkout restored, got %#v", sess.Checkout.Customer)
	}
}
