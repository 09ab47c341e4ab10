package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Outcome classifies a model call. Callers switch over it instead of
// inspecting errors.
type Outcome string

const (
	OutcomeStructured   Outcome = "structured"
	OutcomeNoStructured Outcome = "no_structured"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeFailed       Outcome = "failed"
)

// Result is the outcome of one model call. Value is only meaningful when
// Outcome is OutcomeStructured. Raw keeps the model text for any outcome that
// reached the model.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Raw     string
	Err     error
}

func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeStructured
}

// Runner asks a chat model for a JSON object decoded into T.
type Runner[T any] struct {
	name   string
	graph  compose.Runnable[map[string]any, *schema.Message]
	parser schema.MessageParser[T]
}

func NewRunner[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	name string,
) (*Runner[T], error) {
	graph, err := compileChatGraph(ctx, chatModel, systemPrompt, name)
	if err != nil {
		return nil, err
	}
	return &Runner[T]{
		name:  name,
		graph: graph,
		parser: schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
			ParseFrom: schema.MessageParseFromContent,
		}),
	}, nil
}

func (r *Runner[T]) Run(ctx context.Context, input any, history []contractx.Message) Result[T] {
	msg, res := invoke[T](ctx, r.graph, r.name, input, history)
	if msg == nil {
		return res
	}

	res.Raw = msg.Content
	content := stripCodeFence(msg.Content)
	if content == "" {
		res.Outcome = OutcomeNoStructured
		res.Err = fmt.Errorf("%w: %s returned empty content", contractx.ErrMalformedResult, r.name)
		return res
	}

	value, err := r.parser.Parse(ctx, &schema.Message{Role: schema.Assistant, Content: content})
	if err != nil {
		log.Debug().Str("graph", r.name).Str("raw", msg.Content).Err(err).Msg("structured parse failed")
		res.Outcome = OutcomeNoStructured
		res.Err = fmt.Errorf("%w: %s: %v", contractx.ErrMalformedResult, r.name, err)
		return res
	}

	res.Outcome = OutcomeStructured
	res.Value = value
	return res
}

// ToolPlan is what a tool-calling model answered: zero or more tool calls and
// any free text that came with them.
type ToolPlan struct {
	Calls   []contractx.ToolRequest
	Content string
}

// ToolRunner asks a tool-calling chat model to pick from a fixed tool set.
type ToolRunner struct {
	name    string
	graph   compose.Runnable[map[string]any, *schema.Message]
	allowed map[string]struct{}
}

func NewToolRunner(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
	systemPrompt string,
	name string,
) (*ToolRunner, error) {
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for %s: %v", contractx.ErrModelInvoke, name, err)
	}
	graph, err := compileChatGraph(ctx, toolModel, systemPrompt, name)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowed[t.Name] = struct{}{}
	}

	return &ToolRunner{name: name, graph: graph, allowed: allowed}, nil
}

func (r *ToolRunner) Run(ctx context.Context, input any, history []contractx.Message) Result[ToolPlan] {
	msg, res := invoke[ToolPlan](ctx, r.graph, r.name, input, history)
	if msg == nil {
		return res
	}
	res.Raw = msg.Content

	calls, err := toToolRequests(msg.ToolCalls)
	if err == nil {
		for _, c := range calls {
			if _, ok := r.allowed[c.Tool]; !ok {
				err = fmt.Errorf("tool=%s is not allowed", c.Tool)
				break
			}
		}
	}
	if err != nil {
		res.Outcome = OutcomeNoStructured
		res.Err = fmt.Errorf("%w: %s: %v", contractx.ErrMalformedResult, r.name, err)
		return res
	}

	content := strings.TrimSpace(msg.Content)
	if len(calls) == 0 && content == "" {
		res.Outcome = OutcomeNoStructured
		res.Err = fmt.Errorf("%w: %s returned neither tool calls nor content", contractx.ErrMalformedResult, r.name)
		return res
	}

	res.Outcome = OutcomeStructured
	res.Value = ToolPlan{Calls: calls, Content: content}
	return res
}

func invoke[T any](
	ctx context.Context,
	graph compose.Runnable[map[string]any, *schema.Message],
	name string,
	input any,
	history []contractx.Message,
) (*schema.Message, Result[T]) {
	var res Result[T]

	payload, err := encodeInput(input)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%w: marshal %s input: %v", contractx.ErrValidation, name, err)
		return nil, res
	}

	msg, err := graph.Invoke(ctx, map[string]any{
		"input":   payload,
		"history": toSchemaMessages(history),
	})
	if err != nil {
		if isTimeout(ctx, err) {
			res.Outcome = OutcomeTimeout
			res.Err = fmt.Errorf("%w: %s: %v", contractx.ErrCollaboratorTimeout, name, err)
			return nil, res
		}
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, name, err)
		return nil, res
	}
	if msg == nil {
		res.Outcome = OutcomeNoStructured
		res.Err = fmt.Errorf("%w: %s returned no message", contractx.ErrMalformedResult, name)
		return nil, res
	}
	return msg, res
}

func compileChatGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	name string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}
	if chatModel == nil {
		return nil, fmt.Errorf("%w: %s has no chat model", contractx.ErrValidation, name)
	}

	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add %s prompt node: %w", name, err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add %s model node: %w", name, err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add %s edge %s->%s: %w", name, edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(name))
	if err != nil {
		return nil, fmt.Errorf("compile %s graph: %w", name, err)
	}
	return runner, nil
}

func encodeInput(input any) (string, error) {
	if s, ok := input.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toSchemaMessages(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(content))
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(content, nil))
		}
	}
	return out
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, errors.New("tool call name is empty")
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("invalid args for tool=%s: %v", name, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{Tool: name, Args: args})
	}
	return reqs, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Models often wrap JSON in a markdown fence.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
