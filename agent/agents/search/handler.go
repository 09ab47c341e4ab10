package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	llmx "github.com/tanpawarit/chative-commerce/agent/llm"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

const DefaultTopK = 5

// Product IDs look like TECH-007.
var productIDPattern = regexp.MustCompile(`\b[A-Z]{2,}-\d{2,}\b`)

type searchPlan struct {
	Lookup     string `json:"lookup"`
	Query      string `json:"query"`
	TransferTo string `json:"transfer_to"`
}

type searchAnswer struct {
	Message string `json:"message"`
}

// Handler answers product-discovery turns. It only reads the catalog and the
// search index; products in its result always come from them.
type Handler struct {
	catalog  contractx.Catalog
	searcher contractx.Searcher
	planner  *llmx.Runner[searchPlan]
	answerer *llmx.Runner[searchAnswer]
	topK     int
}

type Option func(*Handler)

func WithTopK(k int) Option {
	return func(h *Handler) {
		if k > 0 {
			h.topK = k
		}
	}
}

type Prompts struct {
	Plan   string
	Answer string
}

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	prompts Prompts,
	catalog contractx.Catalog,
	searcher contractx.Searcher,
	opts ...Option,
) (*Handler, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}

	planner, err := llmx.NewRunner[searchPlan](ctx, chatModel, prompts.Plan, "search.plan_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile search plan graph: %v", contractx.ErrModelInvoke, err)
	}
	answerer, err := llmx.NewRunner[searchAnswer](ctx, chatModel, prompts.Answer, "search.answer_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile search answer graph: %v", contractx.ErrModelInvoke, err)
	}

	h := &Handler{
		catalog:  catalog,
		searcher: searcher,
		planner:  planner,
		answerer: answerer,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Process returns an error only when ctx ends before the turn is answered.
func (h *Handler) Process(ctx context.Context, turn statex.Turn) (contractx.HandlerResult, error) {
	text := strings.TrimSpace(turn.Text)
	plan := h.plan(ctx, text, turn.History)
	if err := ctx.Err(); err != nil {
		return contractx.HandlerResult{}, fmt.Errorf("%w: search plan: %v", contractx.ErrCollaboratorTimeout, err)
	}

	products, err := h.find(ctx, plan, text)
	if err != nil {
		return contractx.HandlerResult{}, err
	}

	result := contractx.HandlerResult{
		Payload: contractx.SearchPayload{Products: toProductInfos(products)},
	}
	if kind, ok := contractx.ParseHandlerKind(plan.TransferTo); ok && kind == contractx.HandlerOrder {
		result.Transfer = &contractx.TransferRequest{Target: contractx.HandlerOrder, Reason: "purchase intent"}
	}

	result.Message = h.answer(ctx, text, turn.History, products)
	if err := ctx.Err(); err != nil {
		return contractx.HandlerResult{}, fmt.Errorf("%w: search answer: %v", contractx.ErrCollaboratorTimeout, err)
	}

	log.Info().
		Str("handler", string(contractx.HandlerSearch)).
		Int("products", len(products)).
		Bool("transfer", result.Transfer != nil).
		Msg("search turn handled")
	return result, nil
}

func (h *Handler) plan(ctx context.Context, text string, history []contractx.Message) searchPlan {
	res := h.planner.Run(ctx, map[string]any{"turn": text}, history)

	switch res.Outcome {
	case llmx.OutcomeStructured:
		p := res.Value
		p.Lookup = strings.TrimSpace(p.Lookup)
		p.Query = strings.TrimSpace(p.Query)
		if p.Query == "" {
			p.Query = text
		}
		return p
	case llmx.OutcomeTimeout:
		log.Warn().Err(res.Err).Msg("search plan timed out, searching with the raw turn")
	case llmx.OutcomeNoStructured:
		log.Warn().Err(res.Err).Msg("search plan had no structured result, searching with the raw turn")
	default:
		log.Error().Err(res.Err).Msg("search plan failed, searching with the raw turn")
	}
	return searchPlan{Query: text}
}

// find tries an exact id-or-name match first and falls back to semantic search.
func (h *Handler) find(ctx context.Context, plan searchPlan, text string) ([]contractx.Product, error) {
	for _, candidate := range lookupCandidates(plan, text) {
		p, err := h.catalog.GetByIDOrExactName(ctx, candidate)
		if err == nil {
			return []contractx.Product{p}, nil
		}
		if !errors.Is(err, contractx.ErrProductNotFound) {
			log.Warn().Err(err).Str("lookup", candidate).Msg("catalog lookup failed")
		}
	}

	products, err := h.searcher.Search(ctx, plan.Query, h.topK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: semantic search: %v", contractx.ErrCollaboratorTimeout, ctxErr)
		}
		log.Warn().Err(err).Str("query", plan.Query).Msg("semantic search failed")
		return nil, nil
	}
	return dedupe(products, h.topK), nil
}

func (h *Handler) answer(ctx context.Context, text string, history []contractx.Message, products []contractx.Product) string {
	if len(products) == 0 {
		return noProductsMessage
	}

	res := h.answerer.Run(ctx, map[string]any{
		"turn":     text,
		"products": products,
	}, history)

	switch res.Outcome {
	case llmx.OutcomeStructured:
		msg := strings.TrimSpace(res.Value.Message)
		if msg == "" {
			break
		}
		if unknown := unknownProductIDs(msg, products); len(unknown) > 0 {
			log.Warn().Strs("ids", unknown).Msg("search answer mentioned products outside the result, using plain listing")
			break
		}
		return msg
	case llmx.OutcomeTimeout:
		log.Warn().Err(res.Err).Msg("search answer timed out, using plain listing")
	case llmx.OutcomeNoStructured:
		log.Warn().Err(res.Err).Msg("search answer had no structured result, using plain listing")
	default:
		log.Error().Err(res.Err).Msg("search answer failed, using plain listing")
	}
	return renderProducts(products)
}

func lookupCandidates(plan searchPlan, text string) []string {
	var out []string
	if plan.Lookup != "" {
		out = append(out, plan.Lookup)
	}
	if text != "" && !strings.EqualFold(text, plan.Lookup) {
		out = append(out, text)
	}
	return out
}

func dedupe(products []contractx.Product, k int) []contractx.Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]contractx.Product, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
		if k > 0 && len(out) == k {
			break
		}
	}
	return out
}

func toProductInfos(products []contractx.Product) []contractx.ProductInfo {
	out := make([]contractx.ProductInfo, 0, len(products))
	for _, p := range products {
		out = append(out, contractx.NewProductInfo(p))
	}
	return out
}

func unknownProductIDs(message string, products []contractx.Product) []string {
	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[strings.ToUpper(p.ID)] = struct{}{}
	}
	var unknown []string
	for _, id := range productIDPattern.FindAllString(message, -1) {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}
