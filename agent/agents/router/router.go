package router

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	llmx "github.com/tanpawarit/chative-commerce/agent/llm"
)

type Route string

const (
	RouteSearch  Route = "search"
	RouteOrder   Route = "order"
	RouteClarify Route = "clarify"
)

// Decision is the resolved intent of one turn. Reply is set for clarify.
type Decision struct {
	Route  Route
	Reply  string
	Reason string
}

// Capabilities describe each handler to the intent model.
var Capabilities = map[contractx.HandlerKind]string{
	contractx.HandlerSearch: "Finds products in the catalog by name, ID, category or features, and answers questions about price, stock and specifications.",
	contractx.HandlerOrder:  "Manages the shopping cart, collects name, email and shipping address, shows an order summary and places the order after confirmation.",
}

type routerLLMOutput struct {
	Route  string `json:"route"`
	Reply  string `json:"reply"`
	Reason string `json:"reason"`
}

// Resolver picks the handler for a turn in free mode.
type Resolver struct {
	runner *llmx.Runner[routerLLMOutput]
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Resolver, error) {
	runner, err := llmx.NewRunner[routerLLMOutput](ctx, chatModel, systemPrompt, "router.intent_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Resolver{runner: runner}, nil
}

// Resolve never guesses: anything the model cannot place is returned as an
// error for the caller to answer with a neutral reply.
func (r *Resolver) Resolve(ctx context.Context, turn string, history []contractx.Message) (Decision, error) {
	res := r.runner.Run(ctx, map[string]any{
		"turn": turn,
		"capabilities": map[string]string{
			string(contractx.HandlerSearch): Capabilities[contractx.HandlerSearch],
			string(contractx.HandlerOrder):  Capabilities[contractx.HandlerOrder],
		},
	}, history)

	switch res.Outcome {
	case llmx.OutcomeStructured:
	case llmx.OutcomeTimeout:
		log.Warn().Err(res.Err).Msg("intent resolution timed out")
		return Decision{}, res.Err
	case llmx.OutcomeNoStructured:
		log.Warn().Err(res.Err).Str("raw", res.Raw).Msg("intent resolution returned no structured result")
		return Decision{}, res.Err
	default:
		log.Error().Err(res.Err).Msg("intent resolution failed")
		return Decision{}, res.Err
	}

	out := res.Value
	d := Decision{
		Reply:  strings.TrimSpace(out.Reply),
		Reason: strings.TrimSpace(out.Reason),
	}

	raw := strings.ToLower(strings.TrimSpace(out.Route))
	if kind, ok := contractx.ParseHandlerKind(raw); ok {
		d.Route = Route(kind)
	} else if raw == string(RouteClarify) || raw == "orchestrator" || raw == "direct" {
		d.Route = RouteClarify
	} else {
		return Decision{}, fmt.Errorf("%w: unknown route=%q", contractx.ErrMalformedResult, out.Route)
	}

	if d.Route == RouteClarify && d.Reply == "" {
		return Decision{}, fmt.Errorf("%w: clarify route without reply", contractx.ErrMalformedResult)
	}

	log.Debug().Str("route", string(d.Route)).Str("reason", d.Reason).Msg("intent resolved")
	return d, nil
}
