// Package config centralizes pipeline configuration, loaded from a config
// file, REPOSCORER_-prefixed environment variables, and CLI flags via
// viper, with field-level validation via validator/v10 — grounded on the
// teacher's viper-backed LoadLLMConfig/ResolveAPIKey precedence chain,
// generalized from per-provider LLM settings to the full pipeline's
// enumerated key set.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provider constants for the AI client, grounded on the teacher's
// defaults.go provider-constant pattern.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Settings is the fully resolved pipeline configuration, matching the key
// set enumerated in spec.md §6.
type Settings struct {
	MaxTokensPerChunk    int     `mapstructure:"max_tokens_per_chunk" validate:"gt=0"`
	MaxTokensPerGroup    int     `mapstructure:"max_tokens_per_group" validate:"gt=0"`
	MaxContextTokens     int     `mapstructure:"max_context_tokens" validate:"gt=0"`
	ContextItemLimit     int     `mapstructure:"context_item_limit" validate:"gt=0"`
	BoilerplateThreshold float64 `mapstructure:"boilerplate_threshold" validate:"gte=0,lte=1"`
	BatchBudget          int     `mapstructure:"batch_budget" validate:"gt=0"`
	DossierBudget        int     `mapstructure:"dossier_budget" validate:"gt=0"`
	AITimeoutMS          int     `mapstructure:"ai_timeout_ms" validate:"gt=0"`
	AIMaxRetries         int     `mapstructure:"ai_max_retries" validate:"gte=0"`
	ForceSimpleStrategy  bool    `mapstructure:"force_simple_strategy"`

	CacheRoot   string `mapstructure:"cache_root" validate:"required"`
	ReportsRoot string `mapstructure:"reports_root" validate:"required"`
	ReposRoot   string `mapstructure:"repos_root" validate:"required"`

	Provider        string `mapstructure:"provider" validate:"oneof=openai anthropic"`
	ScoringModel    string `mapstructure:"scoring_model" validate:"required"`
	ReviewModel     string `mapstructure:"review_model" validate:"required"`
	APIKey          string `mapstructure:"api_key" validate:"required"`
	DossierStrategy string `mapstructure:"dossier_strategy" validate:"oneof=global_top_impact top_impact_per_file"`

	HTTPPort       int      `mapstructure:"http_port" validate:"gt=0,lte=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AITimeout is AITimeoutMS as a time.Duration.
func (s Settings) AITimeout() time.Duration {
	return time.Duration(s.AITimeoutMS) * time.Millisecond
}

const envPrefix = "REPOSCORER"

// setDefaults mirrors spec.md §6's stated defaults, grounded on the
// teacher's DefaultModelForProvider-style single-source-of-truth constants.
func setDefaults(v *viper.Viper) {
	v.SetDefault("max_tokens_per_chunk", 800)
	v.SetDefault("max_tokens_per_group", 2500)
	v.SetDefault("max_context_tokens", 200)
	v.SetDefault("context_item_limit", 15)
	v.SetDefault("boilerplate_threshold", 0.6)
	v.SetDefault("batch_budget", 5100)
	v.SetDefault("dossier_budget", 16000)
	v.SetDefault("ai_timeout_ms", 45000)
	v.SetDefault("ai_max_retries", 3)
	v.SetDefault("force_simple_strategy", false)

	v.SetDefault("cache_root", ".reposcorer/cache")
	v.SetDefault("reports_root", ".reposcorer/reports")
	v.SetDefault("repos_root", ".reposcorer/repos")

	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("scoring_model", "gpt-5-mini")
	v.SetDefault("review_model", "gpt-5-mini")
	v.SetDefault("dossier_strategy", "global_top_impact")

	v.SetDefault("http_port", 8080)
}

// BindFlags wires a pflag.FlagSet's reposcorer flags into v so CLI flags
// take precedence over config file and environment values.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{
		"max_tokens_per_chunk", "max_tokens_per_group", "max_context_tokens",
		"context_item_limit", "boilerplate_threshold", "batch_budget",
		"dossier_budget", "ai_timeout_ms", "ai_max_retries",
		"force_simple_strategy", "cache_root", "reports_root", "repos_root",
		"provider", "scoring_model", "review_model", "api_key",
		"dossier_strategy", "http_port",
	} {
		if flag := flags.Lookup(key); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("config: bind flag %s: %w", key, err)
			}
		}
	}
	return nil
}

// configName is the base name (no extension) viper searches for when no
// explicit --config path is given.
const configName = "config"

// addDiscoveryPaths registers the search locations for an undiscovered
// config file, grounded on the teacher's InitConfig: the working directory
// first, then $HOME/.reposcorer, so a project-local config wins over the
// user's global one.
func addDiscoveryPaths(v *viper.Viper) {
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.reposcorer")
	}
	v.SetConfigName(configName)
}

// Load resolves Settings from an optional config file, REPOSCORER_-prefixed
// environment variables, and any flags already bound onto v, in that
// increasing order of precedence, then validates the result. When
// configPath is empty, the config file is discovered the way the teacher's
// InitConfig does: the working directory, then $HOME/.reposcorer/config.*.
func Load(v *viper.Viper, configPath string) (Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	} else {
		addDiscoveryPaths(v)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Settings{}, fmt.Errorf("config: read discovered config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(s); err != nil {
		return Settings{}, fmt.Errorf("config: invalid settings: %w", err)
	}

	return s, nil
}
