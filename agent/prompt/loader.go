package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Templates are formatted as FString, so they must not contain braces.
var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/search_plan.txt
	searchPlanRaw string

	//go:embed template/search_answer.txt
	searchAnswerRaw string

	//go:embed template/order.txt
	orderRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router       string
	SearchPlan   string
	SearchAnswer string
	Order        string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:       strings.TrimSpace(routerRaw),
		SearchPlan:   strings.TrimSpace(searchPlanRaw),
		SearchAnswer: strings.TrimSpace(searchAnswerRaw),
		Order:        strings.TrimSpace(orderRaw),
	}
}

func (p PromptSet) Validate() error {
	named := map[string]string{
		"router":        p.Router,
		"search_plan":   p.SearchPlan,
		"search_answer": p.SearchAnswer,
		"order":         p.Order,
	}
	for name, body := range named {
		if body == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
		if strings.ContainsAny(body, "{}") {
			return fmt.Errorf("%w: %s prompt contains braces", contractx.ErrValidation, name)
		}
	}
	return nil
}
