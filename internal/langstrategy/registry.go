package langstrategy

import (
	"path/filepath"
	"strings"
	"sync"
)

// Registry maps a file extension to the LanguageStrategy that handles it.
// Mirrors the corpus's parser-registry factory pattern: safe for concurrent
// use, extensions normalized to a lowercase leading dot.
type Registry struct {
	mu                  sync.RWMutex
	strategies          map[string]LanguageStrategy
	fallback            LanguageStrategy
	forceSimpleStrategy bool
}

// NewRegistry creates a registry pre-populated with the four built-in
// strategies. forceSimpleStrategy, when true, makes For always return the
// simple-text strategy regardless of extension — the escape hatch spec.md
// §4.3 calls out for collapsing to the atomic strategy.
func NewRegistry(forceSimpleStrategy bool) *Registry {
	r := &Registry{
		strategies:          make(map[string]LanguageStrategy),
		fallback:            NewSimpleTextStrategy(),
		forceSimpleStrategy: forceSimpleStrategy,
	}

	goStrat := NewGoStrategy()
	for _, ext := range []string{".go"} {
		r.Register(ext, goStrat)
	}

	structured := NewStructuredStrategy()
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".sol"} {
		r.Register(ext, structured)
	}

	declarative := NewDeclarativeStrategy()
	for _, ext := range []string{".json", ".yaml", ".yml", ".toml", ".md"} {
		r.Register(ext, declarative)
	}

	return r
}

// Register adds or replaces the strategy for ext (with or without leading dot).
func (r *Registry) Register(ext string, strategy LanguageStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[normalizeExtension(ext)] = strategy
}

// For returns the strategy for filePath's extension, or the simple-text
// fallback if none is registered or forceSimpleStrategy is set.
func (r *Registry) For(filePath string) LanguageStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.forceSimpleStrategy {
		return r.fallback
	}

	ext := normalizeExtension(filepath.Ext(filePath))
	if s, ok := r.strategies[ext]; ok {
		return s
	}
	return r.fallback
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
