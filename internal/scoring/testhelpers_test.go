package scoring

import (
	"context"

	"github.com/reposcorer/reposcorer/internal/aiclient"
)

// captureCompleter records the last user message's content and delegates
// to onChat to produce the response body.
type captureCompleter struct {
	onChat func(userContent string) string
}

func (c captureCompleter) Chat(_ context.Context, messages []aiclient.Message, _ aiclient.Params) (aiclient.Response, error) {
	var userContent string
	for _, m := range messages {
		if m.Role == aiclient.RoleUser {
			userContent = m.Content
		}
	}
	return aiclient.Response{Content: c.onChat(userContent), Usage: aiclient.Usage{TotalTokens: 10}}, nil
}
