package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	controllerx "github.com/tanpawarit/chative-commerce/agent/agents/controller"
	orderagent "github.com/tanpawarit/chative-commerce/agent/agents/order"
	orchestratorx "github.com/tanpawarit/chative-commerce/agent/agents/orchestrator"
	routerx "github.com/tanpawarit/chative-commerce/agent/agents/router"
	searchagent "github.com/tanpawarit/chative-commerce/agent/agents/search"
	catalogx "github.com/tanpawarit/chative-commerce/agent/catalog"
	llmx "github.com/tanpawarit/chative-commerce/agent/llm"
	ordersx "github.com/tanpawarit/chative-commerce/agent/orders"
	promptx "github.com/tanpawarit/chative-commerce/agent/prompt"
	searchx "github.com/tanpawarit/chative-commerce/agent/search"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
	toolx "github.com/tanpawarit/chative-commerce/agent/tool"
	configx "github.com/tanpawarit/chative-commerce/pkg/config"
	qstashx "github.com/tanpawarit/chative-commerce/pkg/qstash"
)

// app holds everything a conversation needs.
type app struct {
	service *orchestratorx.Orchestrator
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	models, err := llmx.NewModels(ctx, *llmCfg)
	if err != nil {
		return nil, err
	}

	catalog, err := openCatalog()
	if err != nil {
		return nil, err
	}

	searchCfg, err := configx.New[searchx.Config]("SEARCH")
	if err != nil {
		return nil, err
	}
	searcher, closeIndex, err := openSearcher(*searchCfg, catalog)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeIndex)

	db, err := openDatabase()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	var gatewayOpts []toolx.GatewayOption
	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if qstashCfg.Enabled() {
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return nil, err
		}
		gatewayOpts = append(gatewayOpts, toolx.WithNotifier(qstashx.NewOrderNotifier(client, qstashCfg.Destination)))
	}
	gateway, err := toolx.NewGateway(catalog, ordersx.NewRepository(db), gatewayOpts...)
	if err != nil {
		return nil, err
	}

	resolver, err := routerx.New(ctx, models.Router, prompts.Router)
	if err != nil {
		return nil, err
	}
	search, err := searchagent.New(ctx, models.Search, searchagent.Prompts{
		Plan:   prompts.SearchPlan,
		Answer: prompts.SearchAnswer,
	}, catalog, searcher, searchagent.WithTopK(searchCfg.TopK))
	if err != nil {
		return nil, err
	}
	limits, err := configx.New[orderagent.Limits]("ORDER")
	if err != nil {
		return nil, err
	}
	order, err := orderagent.New(ctx, models.Order, prompts.Order, gateway, *limits)
	if err != nil {
		return nil, err
	}

	storeCfg, err := configx.New[statex.StoreConfig]("SESSION")
	if err != nil {
		return nil, err
	}
	store, err := statex.NewStore(*storeCfg)
	if err != nil {
		return nil, err
	}

	turnCfg, err := configx.New[controllerx.Config]("CHAT")
	if err != nil {
		return nil, err
	}
	svcCfg, err := configx.New[orchestratorx.Config]("CHAT")
	if err != nil {
		return nil, err
	}
	a.service, err = orchestratorx.New(store, controllerx.Handlers{
		Resolver: resolver,
		Search:   search,
		Order:    order,
	}, *turnCfg, *svcCfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_driver", storeCfg.Driver).
		Bool("notifications", qstashCfg.Enabled()).
		Msg("assistant ready")
	ok = true
	return a, nil
}

func openCatalog() (*catalogx.Catalog, error) {
	cfg, err := configx.New[catalogx.Config]("CATALOG")
	if err != nil {
		return nil, err
	}
	return catalogx.New(*cfg)
}

func openSearcher(cfg searchx.Config, catalog *catalogx.Catalog) (*searchx.Semantic, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	embedder, err := searchx.NewOpenAIEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	index, err := searchx.NewQdrantIndex(cfg)
	if err != nil {
		return nil, nil, err
	}
	searcher, err := searchx.NewSemantic(embedder, index, searchx.WithCatalog(catalog))
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	return searcher, index.Close, nil
}

func openDatabase() (*bun.DB, error) {
	cfg, err := configx.New[ordersx.Config]("DATABASE")
	if err != nil {
		return nil, err
	}
	return ordersx.Open(*cfg)
}

func openRepository() (*ordersx.Repository, func(), error) {
	db, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return ordersx.NewRepository(db), func() { _ = db.Close() }, nil
}

var errUsage = errors.New("invalid usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}
