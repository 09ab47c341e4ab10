package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Models holds one chat model per caller.
type Models struct {
	Router einomodel.ToolCallingChatModel
	Search einomodel.ToolCallingChatModel
	Order  einomodel.ToolCallingChatModel
}

func NewModels(ctx context.Context, cfg Config) (Models, error) {
	if err := cfg.Validate(); err != nil {
		return Models{}, err
	}

	build := func(kind contractx.HandlerKind) (einomodel.ToolCallingChatModel, error) {
		mc := cfg.OpenRouterFor(kind)
		m, err := mc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, kind, err)
		}
		return m, nil
	}

	var (
		out Models
		err error
	)
	if out.Router, err = build(contractx.HandlerRouter); err != nil {
		return Models{}, err
	}
	if out.Search, err = build(contractx.HandlerSearch); err != nil {
		return Models{}, err
	}
	if out.Order, err = build(contractx.HandlerOrder); err != nil {
		return Models{}, err
	}
	return out, nil
}
