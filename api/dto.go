package api

import (
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type SessionView struct {
	SessionID string               `json:"session_id"`
	Mode      statex.Mode          `json:"mode"`
	Cart      []contractx.CartItem `json:"cart"`
	Total     float64              `json:"total"`
	Customer  contractx.Customer   `json:"customer"`
	Messages  int                  `json:"messages"`
}

func newSessionView(s *statex.Session) SessionView {
	view := s.Cart.View()
	return SessionView{
		SessionID: s.ID,
		Mode:      s.Mode(),
		Cart:      view.Items,
		Total:     view.Total,
		Customer:  s.Checkout.Customer,
		Messages:  len(s.History),
	}
}
