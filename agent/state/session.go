package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Mode is the routing mode of a conversation.
//   - ModeFree: every turn goes through intent resolution.
//   - ModeOrderLocked: every turn goes straight to the order handler.
type Mode string

const (
	ModeFree        Mode = "free"
	ModeOrderLocked Mode = "order_locked"
)

func (m Mode) Valid() bool {
	return m == ModeFree || m == ModeOrderLocked
}

// Session is the per-conversation state owned by one controller.
// It is not safe for concurrent use; a conversation processes one turn at a time.
type Session struct {
	ID       string
	History  []contractx.Message
	Cart     *Cart
	Checkout *Checkout

	mode      Mode
	UpdatedAt time.Time
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Cart:      NewCart(),
		Checkout:  &Checkout{},
		mode:      ModeFree,
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Mode() Mode {
	if s == nil || s.mode == "" {
		return ModeFree
	}
	return s.mode
}

// SetMode is reserved for the session controller's transition rules.
func (s *Session) SetMode(m Mode) {
	if !m.Valid() {
		m = ModeFree
	}
	s.mode = m
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// AppendExchange records one completed turn.
func (s *Session) AppendExchange(userTurn, reply string) {
	s.History = append(s.History,
		contractx.UserMessage(userTurn),
		contractx.AssistantMessage(reply),
	)
}

// TrimHistory keeps the most recent limit messages. Zero or less keeps all.
func (s *Session) TrimHistory(limit int) {
	if limit <= 0 || len(s.History) <= limit {
		return
	}
	s.History = append([]contractx.Message(nil), s.History[len(s.History)-limit:]...)
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	if !s.Mode().Valid() {
		return fmt.Errorf("%w: mode %q", contractx.ErrValidation, s.mode)
	}
	if s.Cart != nil {
		for _, it := range s.Cart.Items() {
			if it.Quantity <= 0 || strings.TrimSpace(it.ProductID) == "" {
				return fmt.Errorf("%w: cart item %+v", contractx.ErrValidation, it)
			}
		}
	}
	return nil
}

/* ------------------------------- Snapshots ------------------------------- */

// Snapshot is the serialisable form of a Session.
type Snapshot struct {
	SessionID string               `json:"session_id"`
	Mode      Mode                 `json:"mode"`
	Cart      []contractx.CartItem `json:"cart,omitempty"`
	Checkout  Checkout             `json:"checkout"`
	History   []contractx.Message  `json:"history,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		Mode:      s.Mode(),
		History:   append([]contractx.Message(nil), s.History...),
		UpdatedAt: s.UpdatedAt,
	}
	if s.Cart != nil {
		snap.Cart = s.Cart.Items()
	}
	if s.Checkout != nil {
		snap.Checkout = *s.Checkout
	}
	return snap
}

// FromSnapshot rebuilds a Session.
func FromSnapshot(snap Snapshot) *Session {
	checkout := snap.Checkout
	s := &Session{
		ID:        snap.SessionID,
		History:   append([]contractx.Message(nil), snap.History...),
		Cart:      NewCart(snap.Cart...),
		Checkout:  &checkout,
		UpdatedAt: snap.UpdatedAt,
	}
	s.SetMode(snap.Mode)
	return s
}

// Restore rewinds mode, cart and checkout to snap. The Cart and Checkout
// pointers are kept so handlers holding them observe the rollback.
func (s *Session) Restore(snap Snapshot) {
	s.SetMode(snap.Mode)
	if s.Cart == nil {
		s.Cart = NewCart()
	}
	s.Cart.replace(snap.Cart)
	if s.Checkout == nil {
		s.Checkout = &Checkout{}
	}
	*s.Checkout = snap.Checkout
	s.History = append(s.History[:0:0], snap.History...)
}

// Turn is what a handler sees of one user turn. Cart and Checkout are the
// session's own records; history excludes the current turn.
type Turn struct {
	Text     string
	History  []contractx.Message
	Cart     *Cart
	Checkout *Checkout
}

func (s *Session) NewTurn(text string, history []contractx.Message) Turn {
	if s.Cart == nil {
		s.Cart = NewCart()
	}
	if s.Checkout == nil {
		s.Checkout = &Checkout{}
	}
	return Turn{
		Text:     text,
		History:  history,
		Cart:     s.Cart,
		Checkout: s.Checkout,
	}
}
