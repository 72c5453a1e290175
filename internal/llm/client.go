// Package llm wraps an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"devshelf/internal/middleware"
	"devshelf/internal/observability"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("llm provider is not configured")

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 30 * time.Second

// Completer produces a completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config selects the provider endpoint and model.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	// MaxRetries is handed to the SDK; zero disables retries, negative keeps the SDK default.
	MaxRetries int
}

// Client is a Completer backed by openai-go.
type Client struct {
	client     openai.Client
	configured bool
	model      string
	maxTokens  int64
	timeout    time.Duration
}

// New builds a Client. A Client without an API key fails every call with ErrNotConfigured.
func New(cfg Config) *Client {
	c := &Client{
		configured: cfg.APIKey != "",
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		timeout:    cfg.Timeout,
	}
	if c.model == "" {
		c.model = "gpt-4o-mini"
	}
	if c.maxTokens == 0 {
		c.maxTokens = 300
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if !c.configured {
		return c
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	c.client = openai.NewClient(opts...)
	return c
}

// Complete sends one chat completion and returns the trimmed text of the first choice.
func (c *Client) Complete(ctx context.Context, system, prompt string) (text string, err error) {
	if !c.configured {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := observability.StartClientSpan(ctx, "llm.chat_completion")
	start := time.Now()
	defer func() {
		observability.LLMRequests.WithLabelValues(observability.StatusLabel(err)).Inc()
		observability.EndSpan(span, err)
	}()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Temperature:         openai.Float(0.7),
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "llm completion failed",
			slog.String("model", c.model),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}

	text = strings.TrimSpace(completion.Choices[0].Message.Content)
	middleware.Logger.InfoContext(ctx, "llm completion",
		slog.String("model", c.model),
		slog.Duration("duration", time.Since(start)),
		slog.Int("chars", len(text)),
	)
	return text, nil
}
