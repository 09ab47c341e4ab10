package orchestratornode

import (
	"context"
	"fmt"

	controllerx "github.com/tanpawarit/chative-commerce/agent/agents/controller"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// RunTurn hands the turn to a controller over the loaded session and records
// the exchange in its history.
func RunTurn(ctx context.Context, in *GraphState, handlers controllerx.Handlers, cfg controllerx.Config) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	ctrl, err := controllerx.New(in.Session, handlers, cfg)
	if err != nil {
		return nil, err
	}

	history := append([]contractx.Message(nil), in.Session.History...)
	in.Response = ctrl.Process(ctx, in.Text, history)

	if ctx.Err() != nil {
		in.Aborted = true
		return in, nil
	}
	in.Session.AppendExchange(in.Text, in.Response.Message)
	return in, nil
}
