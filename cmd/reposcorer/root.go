package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reposcorer/reposcorer/internal/logger"
)

// version is the application version, set via ldflags at build time:
// -ldflags "-X main.version=1.0.0". Defaults to "dev" for local builds.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reposcorer",
	Short: "reposcorer - AI-assisted repository quality scorecards",
	Long: `reposcorer ingests a source repository by URL, infers its domain, selects the
files worth reviewing, chunks them along language-aware boundaries, scores
each chunk group with an AI model, and calibrates the results into one
project scorecard — all pollable over a small HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() {
	initCrashHandler()
	defer logger.HandlePanic()

	rootCmd.SuggestionsMinimumDistance = 2
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (yaml/json/toml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initCrashHandler wires the crash logger's global context before any
// subcommand runs.
func initCrashHandler() {
	logger.SetVersion(version)
	logger.SetBasePath(firstNonEmpty(os.Getenv("REPOSCORER_CACHE_ROOT"), ".reposcorer"))
	if len(os.Args) > 1 {
		logger.SetCommand(os.Args[1])
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// newViper returns a fresh *viper.Viper for a single command invocation
// (one per Execute, so repeated test runs never leak bound state).
func newViper() *viper.Viper {
	return viper.New()
}
