package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
	statex "github.com/tanpawarit/chative-commerce/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Load(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrStateNotFound):
		log.Ctx(ctx).Debug().Str("session_id", in.SessionID).Msg("starting new session")
		sess = statex.NewSession(in.SessionID, in.Now)
	default:
		return nil, err
	}

	in.Session = sess
	return in, nil
}
