package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.ServerPort)
	assert.Equal(t, "openai", cfg.AIClientType)
	assert.Equal(t, "gpt-4o-mini", cfg.AIModel)
	assert.InDelta(t, 0.4, cfg.AITemperature, 1e-9)
	assert.Equal(t, 120*time.Second, cfg.ScriptTimeout)
	assert.Equal(t, "gpt-4o-mini-tts", cfg.TTSModel)
	assert.Equal(t, "alloy", cfg.TTSVoice)
	assert.Equal(t, 240*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 300*time.Second, cfg.RenderMixTimeout)
	assert.Equal(t, 30*time.Minute, cfg.DownloadTokenTTL)
	assert.False(t, cfg.DownloadSingleUse)
	assert.InDelta(t, 2.5, cfg.MinVideoSeconds, 1e-9)
	assert.Equal(t, "sk-test-key", cfg.AIAPIKey)
	assert.NotEmpty(t, cfg.ScratchDir)
	assert.False(t, cfg.JournalEnabled())
	assert.False(t, cfg.NotifierEnabled())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SERVER_PORT=18080\nDOWNLOAD_SINGLE_USE=true\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	// godotenv не перезаписывает существующие переменные, t.Setenv восстановит их после теста
	t.Setenv("SERVER_PORT", "")
	require.NoError(t, os.Unsetenv("SERVER_PORT"))
	t.Setenv("DOWNLOAD_SINGLE_USE", "")
	require.NoError(t, os.Unsetenv("DOWNLOAD_SINGLE_USE"))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "18080", cfg.ServerPort)
	assert.True(t, cfg.DownloadSingleUse)
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadConfig_OpenAIKeyRequired(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "openai")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_OllamaWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_CLIENT_TYPE", "ollama")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIClientType)
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.AIClientType = "gemini"
	cfg.DownloadTokenTTL = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_CLIENT_TYPE")
	assert.Contains(t, err.Error(), "DOWNLOAD_TOKEN_TTL")
}

func TestConfig_MaskedDSN(t *testing.T) {
	cfg := &Config{DBUser: "ff", DBPassword: "secret", DBHost: "db", DBPort: "5432", DBName: "finishflow", DBSSLMode: "disable"}
	masked := cfg.getMaskedDSN()
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "********@db:5432/finishflow")
}

func TestConfig_GetAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetAllowedOrigins())
}
