package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	resp := in.Response
	resp.Message = strings.TrimSpace(resp.Message)
	if resp.Message == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced an empty message", contractx.ErrValidation)
	}
	if resp.HandledBy == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced no handler tag", contractx.ErrValidation)
	}
	return GraphOutput{Response: resp}, nil
}
