package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reposcorer/reposcorer/internal/aiclient"
	"github.com/reposcorer/reposcorer/internal/chunker"
	"github.com/reposcorer/reposcorer/internal/config"
	"github.com/reposcorer/reposcorer/internal/httpapi"
	"github.com/reposcorer/reposcorer/internal/langstrategy"
	"github.com/reposcorer/reposcorer/internal/logger"
	"github.com/reposcorer/reposcorer/internal/orchestrator"
	"github.com/reposcorer/reposcorer/internal/reportstore"
	"github.com/reposcorer/reposcorer/internal/repository"
	"github.com/reposcorer/reposcorer/internal/scoring"
	"github.com/reposcorer/reposcorer/internal/tokenizer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP façade that accepts repository-scoring runs",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.Int("http_port", 0, "HTTP port to listen on (overrides config)")
	flags.String("provider", "", "AI provider: openai or anthropic (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	v := newViper()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	settings, err := config.Load(v, configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.SetBasePath(settings.ReportsRoot)

	runLog := logger.NewRunLogger(logger.RunLogConfig{Level: slog.LevelInfo, JSON: false})
	runLog.Info("starting reposcorer", "provider", settings.Provider, "httpPort", settings.HTTPPort)

	tokenizer.Init()
	defer tokenizer.Shutdown()

	o, err := buildOrchestrator(settings)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	server := httpapi.New(settings.HTTPPort, o, settings.AllowedOrigins)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	server.Start(&wg, errChan)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("serve: http server: %w", err)
	case sig := <-sigChan:
		runLog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}

	wg.Wait()
	return nil
}

// buildOrchestrator wires the full dependency chain — acquirer, chunker,
// selector, scoring engine, artifact store — behind the orchestrator's
// narrow interfaces, per SPEC_FULL.md's component list in dependency order.
func buildOrchestrator(settings config.Settings) (*orchestrator.Orchestrator, error) {
	acquirer := repository.New(settings.ReposRoot, nil, false)

	registry := langstrategy.NewRegistry(settings.ForceSimpleStrategy)

	chunkerCfg := chunker.Config{
		MaxTokensPerChunk: settings.MaxTokensPerChunk,
		MaxTokensPerGroup: settings.MaxTokensPerGroup,
		MaxContextTokens:  settings.MaxContextTokens,
		ContextItemLimit:  settings.ContextItemLimit,
	}
	ck := chunker.New(registry, chunkerCfg, tokenizer.Count)

	scoringClient, err := buildAIClient(settings, settings.ScoringModel)
	if err != nil {
		return nil, err
	}
	reviewClient, err := buildAIClient(settings, settings.ReviewModel)
	if err != nil {
		return nil, err
	}

	selector := &scoring.Selector{Client: scoringClient, Model: settings.ScoringModel, MaxRetries: settings.AIMaxRetries}

	engine := &scoring.Engine{
		ScoringClient: scoringClient,
		ReviewClient:  reviewClient,
		Config: scoring.EngineConfig{
			BatchBudget:     settings.BatchBudget,
			DossierBudget:   settings.DossierBudget,
			DossierStrategy: scoring.DossierStrategy(settings.DossierStrategy),
			MaxRetries:      settings.AIMaxRetries,
			ScoringModel:    settings.ScoringModel,
			ReviewModel:     settings.ReviewModel,
		},
	}

	store, err := reportstore.New(settings.ReportsRoot)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	return orchestrator.New(acquirer, ck, selector, engine, store), nil
}

// buildAIClient selects the aiclient.ChatCompleter implementation per
// settings.Provider. AITimeout only bounds the OpenAI adapter's raw HTTP
// client; the Anthropic SDK manages its own transport and retry policy.
func buildAIClient(settings config.Settings, model string) (aiclient.ChatCompleter, error) {
	switch settings.Provider {
	case config.ProviderOpenAI:
		return aiclient.NewOpenAIClient(settings.APIKey, "", model, settings.AITimeout()), nil
	case config.ProviderAnthropic:
		return aiclient.NewAnthropicClient(settings.APIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", settings.Provider)
	}
}
