package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	return viper.New()
}

func TestLoad_AppliesDefaults(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")

	s, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 800, s.MaxTokensPerChunk)
	assert.Equal(t, 2500, s.MaxTokensPerGroup)
	assert.Equal(t, 5100, s.BatchBudget)
	assert.Equal(t, 16000, s.DossierBudget)
	assert.Equal(t, ProviderOpenAI, s.Provider)
	assert.Equal(t, "test-key", s.APIKey)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")
	t.Setenv("REPOSCORER_BATCH_BUDGET", "7000")

	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 7000, s.BatchBudget)
}

func TestLoad_MissingAPIKeyFailsValidation(t *testing.T) {
	v := newViper()
	_, err := Load(v, "")
	assert.Error(t, err)
}

func TestLoad_InvalidProviderFailsValidation(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")
	t.Setenv("REPOSCORER_PROVIDER", "bogus")

	_, err := Load(v, "")
	assert.Error(t, err)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")

	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("batch_budget: 9000\n"), 0o644))

	s, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, 9000, s.BatchBudget)
}

func TestLoad_DiscoversConfigFileInWorkingDirectory(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/config.yaml", []byte("batch_budget: 4242\n"), 0o644))
	t.Chdir(dir)

	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 4242, s.BatchBudget)
}

func TestLoad_NoConfigFileFoundIsNotAnError(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")
	t.Chdir(t.TempDir())

	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 5100, s.BatchBudget)
}

func TestBindFlags_FlagOverridesEnv(t *testing.T) {
	v := newViper()
	t.Setenv("REPOSCORER_API_KEY", "test-key")
	t.Setenv("REPOSCORER_BATCH_BUDGET", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch_budget", 0, "")
	require.NoError(t, flags.Set("batch_budget", "1234"))

	require.NoError(t, BindFlags(v, flags))

	s, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 1234, s.BatchBudget)
}
