package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/time/rate"
)

// Compile-time interface checks.
var (
	_ Factory = (*ChatFactory)(nil)
	_ Agent   = (*ChatAgent)(nil)
	_ Closer  = (*ChatAgent)(nil)
)

// ChatConfig configures agents backed by an OpenAI-compatible chat
// completions endpoint.
type ChatConfig struct {
	BaseURL           string
	Model             string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	Burst             int
	MaxTokens         int
}

// ChatFactory builds ChatAgents that share one HTTP client and one rate
// limiter.
type ChatFactory struct {
	cfg     ChatConfig
	http    *http.Client
	limiter *rate.Limiter
	backoff time.Duration
	logger  *slog.Logger
}

// ChatOption configures a ChatFactory.
type ChatOption func(*ChatFactory)

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ChatOption {
	return func(f *ChatFactory) {
		f.http = hc
	}
}

// WithLogger sets the logger used by the factory and its agents.
func WithLogger(logger *slog.Logger) ChatOption {
	return func(f *ChatFactory) {
		f.logger = logger.With("component", "chat_agent")
	}
}

// WithBackoff sets the base retry delay. Attempt n waits n*d.
func WithBackoff(d time.Duration) ChatOption {
	return func(f *ChatFactory) {
		f.backoff = d
	}
}

// NewChatFactory creates a ChatFactory for cfg.
func NewChatFactory(cfg ChatConfig, opts ...ChatOption) *ChatFactory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	f := &ChatFactory{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		backoff: time.Second,
		logger:  slog.Default().With("component", "chat_agent"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build creates a ChatAgent for def.
func (f *ChatFactory) Build(_ context.Context, def Definition) (Agent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	for _, t := range def.Tools {
		if t.Name != ToolWebSearch {
			return nil, fmt.Errorf("agent: %s: unsupported tool %q", def.Name, t.Name)
		}
	}

	a := &ChatAgent{
		def:     def,
		factory: f,
		logger:  f.logger.With("agent", def.Name),
	}
	if def.OutputSchema != nil {
		v, err := newSchemaValidator(def.OutputSchema)
		if err != nil {
			return nil, err
		}
		a.validator = v
	}

	f.logger.Debug("agent built",
		"agent", def.Name,
		"model", f.cfg.Model,
		"tools", len(def.Tools),
		"structured_output", def.OutputSchema != nil)
	return a, nil
}

// ChatAgent is an Agent that sends the thread history to a chat completions
// endpoint on every call. It is safe for concurrent use on distinct threads.
type ChatAgent struct {
	def       Definition
	factory   *ChatFactory
	validator *schemaValidator
	logger    *slog.Logger
	closed    atomic.Bool
}

// Name returns the agent's name.
func (a *ChatAgent) Name() string { return a.def.Name }

// NewThread returns a fresh conversation thread.
func (a *ChatAgent) NewThread() *Thread { return NewThread() }

// Close marks the agent closed and releases idle connections.
func (a *ChatAgent) Close(_ context.Context) error {
	a.closed.Store(true)
	a.factory.http.CloseIdleConnections()
	return nil
}

// Run sends prompt on thread. The exchange is recorded on the thread only
// when the call succeeds.
func (a *ChatAgent) Run(ctx context.Context, thread *Thread, prompt string) (string, error) {
	if thread == nil {
		return "", fmt.Errorf("agent %s: nil thread", a.def.Name)
	}
	if a.closed.Load() {
		return "", &InvocationError{Agent: a.def.Name, Err: errors.New("agent closed")}
	}

	thread.mu.Lock()
	defer thread.mu.Unlock()

	history := thread.historyLocked()
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: MessageRoleSystem, Content: a.def.Instructions})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: MessageRoleUser, Content: prompt})

	text, err := a.complete(ctx, thread.ID(), messages)
	if err != nil {
		return "", err
	}
	if a.validator != nil {
		if text, err = a.validator.validate(a.def.Name, text); err != nil {
			return "", err
		}
	}

	thread.appendLocked(prompt, text)
	return text, nil
}

func (a *ChatAgent) complete(ctx context.Context, threadID string, messages []Message) (string, error) {
	f := a.factory
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * f.backoff
			a.logger.Debug("retry backoff", "thread", threadID, "attempt", attempt, "delay", delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", &InvocationError{Agent: a.def.Name, Err: ctx.Err()}
			}
		}

		// Every attempt, retries included, spends a token.
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &InvocationError{Agent: a.def.Name, Err: fmt.Errorf("rate limit wait: %w", err)}
		}

		text, err := a.doRequest(ctx, messages)
		if err == nil {
			a.logger.Debug("chat completion succeeded",
				"thread", threadID,
				"attempt", attempt,
				"response_length", len(text),
				"duration_ms", time.Since(start).Milliseconds())
			return text, nil
		}
		lastErr = err

		var ie *InvocationError
		if !errors.As(err, &ie) || !ie.Retryable() {
			a.logger.Warn("chat completion failed", "thread", threadID, "attempt", attempt, "error", err)
			return "", err
		}
		a.logger.Warn("chat completion failed, will retry", "thread", threadID, "attempt", attempt, "error", err)
	}

	return "", lastErr
}

type chatRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	ResponseFormat   *responseFormat `json:"response_format,omitempty"`
	WebSearchOptions *struct{}       `json:"web_search_options,omitempty"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Schema      *jsonschema.Schema `json:"schema"`
	Strict      bool               `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *ChatAgent) buildRequest(messages []Message) chatRequest {
	req := chatRequest{
		Model:     a.factory.cfg.Model,
		Messages:  messages,
		MaxTokens: a.factory.cfg.MaxTokens,
	}
	if out := a.def.OutputSchema; out != nil {
		req.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:        out.Name,
				Description: out.Description,
				Schema:      out.Schema,
				Strict:      true,
			},
		}
	}
	for _, t := range a.def.Tools {
		if t.Name == ToolWebSearch {
			req.WebSearchOptions = &struct{}{}
		}
	}
	return req
}

func (a *ChatAgent) doRequest(ctx context.Context, messages []Message) (string, error) {
	f := a.factory

	body, err := json.Marshal(a.buildRequest(messages))
	if err != nil {
		return "", &InvocationError{Agent: a.def.Name, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := strings.TrimRight(f.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &InvocationError{Agent: a.def.Name, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if f.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	resp, err := f.http.Do(httpReq)
	if err != nil {
		return "", &InvocationError{Agent: a.def.Name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &InvocationError{Agent: a.def.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &InvocationError{Agent: a.def.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(respBody), 512))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &InvocationError{Agent: a.def.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &InvocationError{Agent: a.def.Name, StatusCode: resp.StatusCode, Err: errors.New("empty response")}
	}

	a.logger.Debug("chat usage",
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens,
		"total_tokens", parsed.Usage.TotalTokens)

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
