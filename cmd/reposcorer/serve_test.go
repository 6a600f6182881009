package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcorer/reposcorer/internal/config"
)

func TestBuildAIClient_UnknownProviderReturnsError(t *testing.T) {
	_, err := buildAIClient(config.Settings{Provider: "bogus"}, "some-model")
	assert.Error(t, err)
}

func TestBuildAIClient_OpenAI(t *testing.T) {
	client, err := buildAIClient(config.Settings{Provider: config.ProviderOpenAI, APIKey: "key"}, "gpt-5-mini")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildAIClient_Anthropic(t *testing.T) {
	client, err := buildAIClient(config.Settings{Provider: config.ProviderAnthropic, APIKey: "key"}, "claude")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildOrchestrator_WiresDependencies(t *testing.T) {
	dir := t.TempDir()
	settings := config.Settings{
		MaxTokensPerChunk: 800,
		MaxTokensPerGroup: 2500,
		MaxContextTokens:  200,
		ContextItemLimit:  15,
		BatchBudget:       5100,
		DossierBudget:     16000,
		AIMaxRetries:      3,
		CacheRoot:         dir + "/cache",
		ReportsRoot:       dir + "/reports",
		ReposRoot:         dir + "/repos",
		Provider:          config.ProviderOpenAI,
		ScoringModel:      "gpt-5-mini",
		ReviewModel:       "gpt-5-mini",
		APIKey:            "key",
		DossierStrategy:   "global_top_impact",
		HTTPPort:          0,
	}

	o, err := buildOrchestrator(settings)
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
