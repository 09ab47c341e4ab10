package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	ordersx "github.com/tanpawarit/chative-commerce/agent/orders"
)

type fakeTurns struct {
	replies []contractx.SessionResponse
	err     error
	texts   []string
}

func (f *fakeTurns) HandleMessage(ctx context.Context, sessionID, text string) (contractx.SessionResponse, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return contractx.SessionResponse{}, f.err
	}
	resp := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return resp, nil
}

func TestRunChatLoop(t *testing.T) {
	t.Parallel()

	svc := &fakeTurns{replies: []contractx.SessionResponse{
		{Message: "Here are some laptops.", HandledBy: contractx.HandlerSearch, Products: []contractx.ProductInfo{{ProductID: "TECH-007"}}},
		{Message: "What's your full name?", HandledBy: contractx.HandlerOrder, OrderStatus: contractx.OrderCollectingInfo},
	}}
	in := strings.NewReader("show me laptops\n\nbuy TECH-007\nquit\nnever read\n")
	var out bytes.Buffer

	if err := runChat(context.Background(), in, &out, svc, "s-1", true); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}

	if len(svc.texts) != 2 || svc.texts[1] != "buy TECH-007" {
		t.Fatalf("unexpected turns: %v", svc.texts)
	}
	got := out.String()
	for _, want := range []string{
		"Assistant: Here are some laptops.",
		"[handled_by=search products=1]",
		"[handled_by=order status=collecting_info]",
		"Goodbye!",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunChatKeepsGoingAfterErrors(t *testing.T) {
	t.Parallel()

	svc := &fakeTurns{err: errors.New("store down")}
	var out bytes.Buffer

	if err := runChat(context.Background(), strings.NewReader("hello\nhi again\n"), &out, svc, "s-1", false); err != nil {
		t.Fatalf("runChat() error = %v", err)
	}
	if len(svc.texts) != 2 {
		t.Fatalf("expected both turns attempted, got %v", svc.texts)
	}
	if !strings.Contains(out.String(), "something went wrong") {
		t.Fatalf("missing error notice:\n%s", out.String())
	}
}

func TestIsExit(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"exit", "QUIT", "Exit"} {
		if !isExit(text) {
			t.Fatalf("isExit(%q) = false", text)
		}
	}
	if isExit("exit please") {
		t.Fatal("only the bare word ends the chat")
	}
}

func TestPrintOrder(t *testing.T) {
	t.Parallel()

	o := &ordersx.Order{
		OrderID:       "ORD-1A2B3C4D",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		TotalAmount:   1799.97,
		Status:        ordersx.StatusPending,
		CreatedAt:     time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Items: []*ordersx.OrderItem{
			{ProductID: "TECH-007", ProductName: "ASUS ROG Zephyrus G14", Quantity: 1, UnitPrice: 1599.99, Subtotal: 1599.99},
		},
	}
	var out bytes.Buffer
	printOrder(&out, o)
	for _, want := range []string{"Order ORD-1A2B3C4D (pending)", "TECH-007", "Total: $1799.97"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	printOrderTable(&out, nil)
	if !strings.Contains(out.String(), "No orders found.") {
		t.Fatalf("unexpected empty table: %s", out.String())
	}
}

func TestRootVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("version output = %q", out.String())
	}
}
