package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFlagged(t *testing.T) {
	selected, flagged := splitFlagged([]string{
		"internal/foo.go",
		"vendor/bar.go # vendored dependency",
		"  ",
		"internal/baz.go",
	})

	assert.Equal(t, []string{"internal/foo.go", "internal/baz.go"}, selected)
	require.Len(t, flagged, 1)
	assert.Equal(t, "vendor/bar.go", flagged[0].Path)
	assert.Equal(t, "vendored dependency", flagged[0].Reason)
}

func TestResolveSelection_ExactAndDirectoryPrefix(t *testing.T) {
	allFiles := []string{"internal/foo.go", "internal/foo_test.go", "internal/bar/a.go", "internal/bar/b.go", "cmd/main.go"}

	resolved, warnings := resolveSelection([]string{"internal/foo.go", "internal/bar"}, allFiles)

	assert.Contains(t, resolved, "internal/foo.go")
	assert.Contains(t, resolved, "internal/bar/a.go")
	assert.Contains(t, resolved, "internal/bar/b.go")
	assert.NotContains(t, resolved, "internal/foo_test.go")
	assert.Empty(t, warnings)
}

func TestResolveSelection_UnmatchedPathWarns(t *testing.T) {
	resolved, warnings := resolveSelection([]string{"does/not/exist.go"}, []string{"cmd/main.go"})
	assert.Empty(t, resolved)
	require.Len(t, warnings, 1)
}

func TestSelector_SelectFiles_ResolvesAgainstTree(t *testing.T) {
	s := &Selector{
		Client:     scriptedCompleter{content: `{"paths": ["internal/foo.go", "vendor/x.go # vendored"]}`},
		MaxRetries: 1,
	}
	selection, err := s.SelectFiles(context.Background(), ProjectContext{PrimaryDomain: "web"}, []string{"internal/foo.go", "vendor/x.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"internal/foo.go"}, selection.Files)
	require.Len(t, selection.Flagged, 1)
	assert.Equal(t, "vendor/x.go", selection.Flagged[0].Path)
}

func TestSelector_InferProjectContext(t *testing.T) {
	s := &Selector{
		Client:     scriptedCompleter{content: `{"project_essence": "a CLI tool", "primary_domain": "devtools", "primary_stack": "Go", "core_concepts": ["cli", "config"]}`},
		MaxRetries: 1,
	}
	ctx, _, err := s.InferProjectContext(context.Background(), "# My Tool", []string{"cmd/main.go"})
	require.NoError(t, err)
	assert.Equal(t, "devtools", ctx.PrimaryDomain)
	assert.Equal(t, []string{"cli", "config"}, ctx.CoreConcepts)
}
