// Package config loads quizflow settings from quizflow.yml, quizflow.yaml or
// quizflow.toml, with ${VAR} expansion, a .env file and environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/quizflow/internal/agent"
)

// DefaultTopic is offered when the console user enters no topic.
const DefaultTopic = "Azure Functions runtime versions overview"

// Config holds every quizflow setting.
type Config struct {
	Model      ModelConfig      `yaml:"model" toml:"model"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
	Transcript TranscriptConfig `yaml:"transcript" toml:"transcript"`
	A2A        A2AConfig        `yaml:"a2a" toml:"a2a"`
	MCP        MCPConfig        `yaml:"mcp" toml:"mcp"`
	Quiz       QuizConfig       `yaml:"quiz" toml:"quiz"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

// ModelConfig points the agents at an OpenAI-compatible endpoint.
type ModelConfig struct {
	BaseURL           string `yaml:"base_url" toml:"base_url" validate:"required,url"`
	Model             string `yaml:"model" toml:"model" validate:"required"`
	APIKey            string `yaml:"api_key" toml:"api_key"`
	Timeout           string `yaml:"timeout" toml:"timeout"`
	MaxRetries        int    `yaml:"max_retries" toml:"max_retries" validate:"min=0,max=10"`
	RequestsPerMinute int    `yaml:"requests_per_minute" toml:"requests_per_minute" validate:"min=0"`
	Burst             int    `yaml:"burst" toml:"burst" validate:"min=0"`
	MaxTokens         int    `yaml:"max_tokens" toml:"max_tokens" validate:"min=0"`

	timeout time.Duration
}

// LoggingConfig selects log verbosity and rendering.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=text json logfmt"`
}

// TranscriptConfig enables the session transcript store when Path is set.
type TranscriptConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// A2AConfig is the listen address of the A2A agent.
type A2AConfig struct {
	Addr string `yaml:"addr" toml:"addr" validate:"omitempty,hostname_port"`
}

// MCPConfig is the listen address of the streamable HTTP MCP server. Empty
// means stdio only.
type MCPConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr" validate:"omitempty,hostname_port"`
}

// QuizConfig holds console defaults.
type QuizConfig struct {
	DefaultTopic string `yaml:"default_topic" toml:"default_topic"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			Timeout:           "60s",
			MaxRetries:        3,
			RequestsPerMinute: 60,
			Burst:             1,
			timeout:           60 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		A2A:     A2AConfig{Addr: "127.0.0.1:8900"},
		Quiz:    QuizConfig{DefaultTopic: DefaultTopic},
	}
}

var fileNames = []string{"quizflow.yml", "quizflow.yaml", "quizflow.toml"}

// Load reads the first config file found in dir. Without one it returns the
// defaults. A .env file in dir is loaded first; variables already set in the
// environment win over it.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", name, err)
		}
		if err := decode(name, expandEnvVars(string(data)), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		cfg.Source = path
		break
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(name, data string, cfg *Config) error {
	if filepath.Ext(name) == ".toml" {
		_, err := toml.Decode(data, cfg)
		return err
	}
	return yaml.Unmarshal([]byte(data), cfg)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with the
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv overrides file settings from the environment. QUIZFLOW_API_KEY
// wins over OPENAI_API_KEY, which only fills an empty key.
func (c *Config) applyEnv() {
	if v := os.Getenv("QUIZFLOW_API_KEY"); v != "" {
		c.Model.APIKey = v
	} else if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("QUIZFLOW_BASE_URL"); v != "" {
		c.Model.BaseURL = v
	}
	if v := os.Getenv("QUIZFLOW_MODEL"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("QUIZFLOW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks field constraints and parses the model timeout.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}

	c.Model.timeout = 0
	if c.Model.Timeout != "" {
		d, err := time.ParseDuration(c.Model.Timeout)
		if err != nil {
			return fmt.Errorf("config: model.timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("config: model.timeout must be positive, got %s", c.Model.Timeout)
		}
		c.Model.timeout = d
	}
	if c.Quiz.DefaultTopic == "" {
		c.Quiz.DefaultTopic = DefaultTopic
	}
	return nil
}

// TimeoutDuration returns the parsed model timeout, zero when unset.
func (m ModelConfig) TimeoutDuration() time.Duration { return m.timeout }

// ChatConfig converts the model settings for agent.NewChatFactory.
func (c *Config) ChatConfig() agent.ChatConfig {
	return agent.ChatConfig{
		BaseURL:           c.Model.BaseURL,
		Model:             c.Model.Model,
		APIKey:            c.Model.APIKey,
		Timeout:           c.Model.timeout,
		MaxRetries:        c.Model.MaxRetries,
		RequestsPerMinute: c.Model.RequestsPerMinute,
		Burst:             c.Model.Burst,
		MaxTokens:         c.Model.MaxTokens,
	}
}
