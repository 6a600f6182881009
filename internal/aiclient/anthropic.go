package aiclient

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts anthropic-sdk-go's Messages API to ChatCompleter.
// The SDK was already present in the corpus's dependency graph via
// TaskWing's Eino Claude integration; it is promoted here to a direct,
// first-class dependency since this spec talks to it without an
// intervening agent framework (see DESIGN.md).
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an adapter for the given model (e.g.
// "claude-3-5-sonnet-latest").
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &c, model: model}
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, params Params) (Response, error) {
	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			req.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case RoleAssistant:
			req.Messages = append(req.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			content := m.Content
			if params.JSONOutput {
				content += "\n\nRespond with a single JSON object and nothing else."
			}
			req.Messages = append(req.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Content: text,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// classifyAnthropicError maps an SDK error into TransportError or
// ProviderError per spec.md §4.5's failure mapping. The SDK's own
// *anthropic.Error carries a status code for protocol-level failures;
// anything else is treated as a transport failure.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if ok := errorsAs(err, &apiErr); ok {
		return &ProviderError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return &TransportError{Provider: "anthropic", Err: err}
}

func errorsAs(err error, target **anthropic.Error) bool {
	for err != nil {
		if apiErr, ok := err.(*anthropic.Error); ok {
			*target = apiErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
