package ioc

import (
	"testing"
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/service/llm"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDevConfig(t *testing.T) {
	viper.Reset()
	viper.SetConfigFile("../config/config.dev.yaml")
	require.NoError(t, viper.ReadInConfig())
}

func TestInitConfigs(t *testing.T) {
	readDevConfig(t)

	sessionCfg := InitSessionConfig()
	assert.Equal(t, "gemini-2.0-flash-exp", sessionCfg.ModelID)
	require.NotNil(t, sessionCfg.Generation.Temperature)
	assert.Equal(t, float32(1), *sessionCfg.Generation.Temperature)
	assert.Equal(t, float32(0.95), sessionCfg.Generation.TopP)
	assert.Equal(t, int32(40), sessionCfg.Generation.TopK)
	assert.Equal(t, int32(8192), sessionCfg.Generation.MaxOutputTokens)
	assert.Equal(t, "text/plain", sessionCfg.Generation.OutputFormat)
	assert.Equal(t, 3, sessionCfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, sessionCfg.Retry.InitialInterval)

	ingestionCfg := InitIngestionConfig()
	assert.Equal(t, 10*time.Second, ingestionCfg.PollInterval)
	assert.Equal(t, 10*time.Minute, ingestionCfg.Timeout)
	require.Len(t, ingestionCfg.Documents, 2)
	assert.Equal(t, "engelliler", ingestionCfg.Documents[0].Alias)
	assert.Equal(t, "application/pdf", ingestionCfg.Documents[1].MIMEType)

	cfg := InitAssistantConfig()
	assert.NotEmpty(t, cfg.SystemInstruction)
	require.NotEmpty(t, cfg.SeedHistory)
	assert.Equal(t, llm.RoleUser, cfg.SeedHistory[0].Role)
	assert.Equal(t, "engelliler", cfg.SeedHistory[4].Parts[0].Document)
	assert.Empty(t, cfg.Queries)
	assert.Empty(t, cfg.ResumeSession)
}

func TestInitGeminiCli_MissingKey(t *testing.T) {
	viper.Reset()
	t.Setenv("GEMINI_API_KEY", "")
	assert.Panics(t, func() {
		InitGeminiCli()
	})
}
