package config_test

import (
	"os"
	"testing"

	"github.com/adnify/agentcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestSetDefaultsDetectsProviderFromEnv(t *testing.T) {
	clearProviderEnv(t)
	os.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := &config.LLMConfig{}
	cfg.SetDefaults()

	assert.Equal(t, config.ProtocolOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "sk-test", cfg.APIKey)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, 0.7, *cfg.Temperature)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 128000, cfg.ContextLimit)
}

func TestSetDefaultsFallsBackToAnthropicWithNoEnv(t *testing.T) {
	clearProviderEnv(t)
	cfg := &config.LLMConfig{}
	cfg.SetDefaults()
	assert.Equal(t, config.ProtocolAnthropic, cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Model)
}

func TestSetDefaultsDoesNotOverrideExplicitValues(t *testing.T) {
	clearProviderEnv(t)
	temp := 0.2
	cfg := &config.LLMConfig{Provider: config.ProtocolGemini, Model: "custom-model", Temperature: &temp}
	cfg.SetDefaults()
	assert.Equal(t, "custom-model", cfg.Model)
	assert.Equal(t, 0.2, *cfg.Temperature)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := &config.LLMConfig{Provider: "bogus", APIKey: "x"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresAPIKeyUnlessCustom(t *testing.T) {
	cfg := &config.LLMConfig{Provider: config.ProtocolOpenAI}
	assert.Error(t, cfg.Validate())

	cfg2 := &config.LLMConfig{Provider: config.ProtocolCustom, Adapter: &config.AdapterConfig{}}
	assert.NoError(t, cfg2.Validate())
}

func TestValidateRejectsOutOfRangeTemperature(t *testing.T) {
	tooHigh := 3.0
	cfg := &config.LLMConfig{Provider: config.ProtocolOpenAI, APIKey: "x", Temperature: &tooHigh}
	assert.Error(t, cfg.Validate())

	tooLow := -0.1
	cfg2 := &config.LLMConfig{Provider: config.ProtocolOpenAI, APIKey: "x", Temperature: &tooLow}
	assert.Error(t, cfg2.Validate())
}

func TestValidateCustomProviderRequiresAdapter(t *testing.T) {
	cfg := &config.LLMConfig{Provider: config.ProtocolCustom}
	assert.Error(t, cfg.Validate())
}

func TestExpandEnvSubstitutesKnownVars(t *testing.T) {
	os.Setenv("AGENTCORE_TEST_VAR", "resolved")
	defer os.Unsetenv("AGENTCORE_TEST_VAR")

	assert.Equal(t, "value=resolved!", config.ExpandEnv("value=${AGENTCORE_TEST_VAR}!"))
}

func TestExpandEnvLeavesUnresolvedReferencesUntouched(t *testing.T) {
	os.Unsetenv("AGENTCORE_DOES_NOT_EXIST")
	assert.Equal(t, "value=${AGENTCORE_DOES_NOT_EXIST}", config.ExpandEnv("value=${AGENTCORE_DOES_NOT_EXIST}"))
}
