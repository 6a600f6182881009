// Package util provides shared utility functions.
package util

import (
	"context"
	"errors"
	"fmt"
)

// Standard ID lengths for reposcorer entities.
const (
	// DefaultShortIDLength is the default number of characters for short IDs.
	DefaultShortIDLength = 8
	// MaxAmbiguousCandidates is the max number of candidates to show in ambiguous error.
	MaxAmbiguousCandidates = 5
)

// Errors returned by ID resolution functions.
var (
	ErrAmbiguousID = errors.New("ambiguous ID prefix")
	ErrNotFound    = errors.New("not found")
)

// ShortID returns a shortened version of an ID, for display in logs and CLI
// output (run IDs are full google/uuid v4 strings, too long to print in
// full on every progress line).
// If n is 0 or negative, DefaultShortIDLength (8) is used.
//
// Examples:
//
//	ShortID("a1b2c3d4-...", 0) → "a1b2c3d4" (8 chars)
//	ShortID("a1b2", 8) → "a1b2" (no truncation if shorter)
func ShortID(id string, n int) string {
	if n <= 0 {
		n = DefaultShortIDLength
	}
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// RunIDPrefixResolver finds run IDs by prefix, so ResolveRunID can accept
// the first characters of a run ID (e.g. 8) instead of the full UUID. Only
// this package's tests implement it.
type RunIDPrefixResolver interface {
	FindRunIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ResolveRunID resolves a run ID or prefix to a full run ID.
//
// Resolution rules:
//  1. If prefix matches exactly one run ID, return that ID.
//  2. If it matches multiple, return ErrAmbiguousID with candidates.
//  3. If it matches none, return ErrNotFound.
func ResolveRunID(ctx context.Context, resolver RunIDPrefixResolver, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("run ID: %w", ErrNotFound)
	}

	candidates, err := resolver.FindRunIDsByPrefix(ctx, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("find run IDs: %w", err)
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("run with prefix %q: %w", idOrPrefix, ErrNotFound)
	case 1:
		return candidates[0], nil
	default:
		shown := candidates
		if len(shown) > MaxAmbiguousCandidates {
			shown = shown[:MaxAmbiguousCandidates]
		}
		return "", fmt.Errorf("%w: prefix %q matches %d runs: %v",
			ErrAmbiguousID, idOrPrefix, len(candidates), shown)
	}
}
