package aiclient

import (
	"context"
	"time"
)

// backoffUnit is the linear backoff step between retries, per spec.md
// §4.5 ("wait ~300ms × attempt number before retrying").
const backoffUnit = 300 * time.Millisecond

// SafeJSONChat calls client.Chat with JSON output forced on, repairs and
// parses the response into T, and retries on either a transport/provider
// failure or a parse failure up to maxRetries times. It never returns an
// error: exhausting all attempts yields a nil result, which callers treat
// as a scoring failure for that unit of work rather than aborting the run.
// Usage is accumulated across every attempt, including failed ones, since
// the caller still paid for the tokens.
func SafeJSONChat[T any](ctx context.Context, client ChatCompleter, messages []Message, params Params, maxRetries int) (*T, Usage) {
	return safeJSONChat[T](ctx, client, messages, params, maxRetries, time.Sleep)
}

func safeJSONChat[T any](ctx context.Context, client ChatCompleter, messages []Message, params Params, maxRetries int, sleep func(time.Duration)) (*T, Usage) {
	params.JSONOutput = true

	var total Usage
	attempts := maxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleep(backoffUnit * time.Duration(attempt))
		}

		resp, err := client.Chat(ctx, messages, params)
		total = total.Add(resp.Usage)
		if err != nil {
			continue
		}

		parsed, err := ExtractAndParseJSON[T](resp.Content)
		if err != nil {
			continue
		}
		return &parsed, total
	}

	return nil, total
}
