// Package tokenizer provides the process-wide token-counting primitive used
// throughout reposcorer for chunk and group budget arithmetic.
package tokenizer

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the BPE encoding family used for counting. cl100k_base is the
// encoding shared by OpenAI- and Anthropic-oriented tooling in the corpus;
// fidelity to any one vendor's exact count is explicitly a non-goal (spec
// §4.1), so a single fixed encoding is used regardless of which AI adapter a
// run ultimately talks to.
const Encoding = "cl100k_base"

// estimatorDivisor backs the degraded-mode character estimator.
const estimatorDivisor = 4

var (
	initOnce sync.Once
	mu       sync.RWMutex
	enc      *tiktoken.Tiktoken
	degraded bool
)

// Init loads the BPE encoding once per process. Safe to call multiple times;
// only the first call does work. If the encoding cannot be loaded (for
// example TIKTOKEN_CACHE_DIR is unreachable in an offline sandbox), Init
// falls back to a character-estimator and logs a degraded-mode warning —
// counts remain available, just less exact.
func Init() {
	initOnce.Do(func() {
		e, err := tiktoken.GetEncoding(Encoding)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			degraded = true
			slog.Warn("tokenizer: falling back to character estimator", "encoding", Encoding, "error", err)
			return
		}
		enc = e
	})
}

// Shutdown releases the singleton so a later Init call re-loads cleanly.
// Intended for test isolation between runs that exercise Init's failure
// path; production callers need not invoke it.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	enc = nil
	degraded = false
	initOnce = sync.Once{}
}

// Count returns the token count of text under the process-wide encoding.
// Count("") is 0. Count is pure, deterministic, and goroutine-safe; Init
// must have been called first (Count treats an un-initialized tokenizer as
// degraded rather than panicking, so tests that forget Init still get a
// usable, if approximate, count).
func Count(text string) int {
	if text == "" {
		return 0
	}

	mu.RLock()
	e := enc
	deg := degraded
	mu.RUnlock()

	if e == nil || deg {
		return estimate(text)
	}
	return len(e.Encode(text, nil, nil))
}

// estimate is the degraded-mode fallback: roughly four characters per token.
func estimate(text string) int {
	n := len(text) / estimatorDivisor
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// Degraded reports whether the singleton is running on the character
// estimator rather than the real BPE encoding.
func Degraded() bool {
	mu.RLock()
	defer mu.RUnlock()
	return degraded || enc == nil
}
