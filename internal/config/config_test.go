package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func cleanEnv(t *testing.T) {
	unsetEnv(t, "QUIZFLOW_API_KEY", "OPENAI_API_KEY", "QUIZFLOW_BASE_URL", "QUIZFLOW_MODEL", "QUIZFLOW_LOG_LEVEL")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Model.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.Equal(t, 60*time.Second, cfg.Model.TimeoutDuration())
	assert.Equal(t, 3, cfg.Model.MaxRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultTopic, cfg.Quiz.DefaultTopic)
	assert.Empty(t, cfg.Transcript.Path)
}

func TestLoad_YAML(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.yml", `
model:
  base_url: http://localhost:11434/v1
  model: llama3
  timeout: 2m
  max_retries: 1
logging:
  level: debug
  format: json
transcript:
  path: /tmp/quiz.db
quiz:
  default_topic: Go generics
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "quizflow.yml"), cfg.Source)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Model.BaseURL)
	assert.Equal(t, "llama3", cfg.Model.Model)
	assert.Equal(t, 2*time.Minute, cfg.Model.TimeoutDuration())
	assert.Equal(t, 1, cfg.Model.MaxRetries)
	// Unset keys keep their defaults.
	assert.Equal(t, 60, cfg.Model.RequestsPerMinute)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/tmp/quiz.db", cfg.Transcript.Path)
	assert.Equal(t, "Go generics", cfg.Quiz.DefaultTopic)
}

func TestLoad_YAMLExtension(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.yaml", "model:\n  model: from-yaml\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Model.Model)
}

func TestLoad_TOML(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.toml", `
[model]
model = "gpt-4.1"
requests_per_minute = 10
burst = 2

[a2a]
addr = "0.0.0.0:9000"

[mcp]
http_addr = "127.0.0.1:9100"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.Model.Model)
	assert.Equal(t, 10, cfg.Model.RequestsPerMinute)
	assert.Equal(t, 2, cfg.Model.Burst)
	assert.Equal(t, "0.0.0.0:9000", cfg.A2A.Addr)
	assert.Equal(t, "127.0.0.1:9100", cfg.MCP.HTTPAddr)
}

func TestLoad_YMLWinsOverTOML(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.yml", "model:\n  model: yml\n")
	writeFile(t, dir, "quizflow.toml", "[model]\nmodel = \"toml\"\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "yml", cfg.Model.Model)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	cleanEnv(t)
	unsetEnv(t, "QF_TEST_UNSET")
	t.Setenv("QF_TEST_KEY", "sk-from-env")
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.yml", "model:\n  api_key: ${QF_TEST_KEY}\ntranscript:\n  path: ${QF_TEST_UNSET}\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Model.APIKey)
	assert.Empty(t, cfg.Transcript.Path)
}

func TestLoad_DotEnv(t *testing.T) {
	cleanEnv(t)
	unsetEnv(t, "QF_TEST_DOTENV_MODEL")
	dir := t.TempDir()
	writeFile(t, dir, ".env", "OPENAI_API_KEY=sk-dotenv\nQF_TEST_DOTENV_MODEL=from-dotenv\n")
	writeFile(t, dir, "quizflow.yml", "model:\n  model: ${QF_TEST_DOTENV_MODEL}\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.Model.APIKey)
	assert.Equal(t, "from-dotenv", cfg.Model.Model)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "quizflow.yml", "model:\n  api_key: file-key\n  model: file-model\n")

	t.Setenv("OPENAI_API_KEY", "openai-key")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Model.APIKey, "OPENAI_API_KEY only fills an empty key")

	t.Setenv("QUIZFLOW_API_KEY", "quizflow-key")
	t.Setenv("QUIZFLOW_MODEL", "env-model")
	t.Setenv("QUIZFLOW_BASE_URL", "https://models.example.com/v1")
	t.Setenv("QUIZFLOW_LOG_LEVEL", "warn")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "quizflow-key", cfg.Model.APIKey)
	assert.Equal(t, "env-model", cfg.Model.Model)
	assert.Equal(t, "https://models.example.com/v1", cfg.Model.BaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad yaml", "quizflow.yml", "model: [unterminated", "parse quizflow.yml"},
		{"bad toml", "quizflow.toml", "[model\n", "parse quizflow.toml"},
		{"bad url", "quizflow.yml", "model:\n  base_url: not a url\n", "BaseURL"},
		{"bad level", "quizflow.yml", "logging:\n  level: verbose\n", "Level"},
		{"bad format", "quizflow.yml", "logging:\n  format: xml\n", "Format"},
		{"negative retries", "quizflow.yml", "model:\n  max_retries: -1\n", "MaxRetries"},
		{"bad timeout", "quizflow.yml", "model:\n  timeout: soon\n", "model.timeout"},
		{"zero timeout", "quizflow.yml", "model:\n  timeout: 0s\n", "must be positive"},
		{"bad addr", "quizflow.yml", "a2a:\n  addr: nope\n", "Addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ChatConfig(t *testing.T) {
	cleanEnv(t)
	cfg := Default()
	cfg.Model.APIKey = "k"
	cfg.Model.MaxTokens = 512
	require.NoError(t, cfg.Validate())

	cc := cfg.ChatConfig()
	assert.Equal(t, cfg.Model.BaseURL, cc.BaseURL)
	assert.Equal(t, "k", cc.APIKey)
	assert.Equal(t, 60*time.Second, cc.Timeout)
	assert.Equal(t, 3, cc.MaxRetries)
	assert.Equal(t, 512, cc.MaxTokens)
}
