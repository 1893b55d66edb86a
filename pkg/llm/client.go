// Package llm provides language model clients used by the question-answering pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	defaultMaxTries        = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// Client completes a prompt. Implementations are safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StatusError is returned when the model backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Config struct {
	Logger    *slog.Logger
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int64
	MaxTries  uint
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	switch c.Provider {
	case ProviderAnthropic:
	case ProviderOllama:
		if c.BaseURL == "" {
			return errors.New("base URL is required for ollama")
		}
	default:
		return fmt.Errorf("unknown provider: %q", c.Provider)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.MaxTries == 0 {
		c.MaxTries = defaultMaxTries
	}
	return nil
}

// New builds the configured client wrapped with transport retries.
func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate llm config: %w", err)
	}
	var c Client
	switch cfg.Provider {
	case ProviderAnthropic:
		c = NewAnthropicClient(cfg.Logger, cfg.Model, cfg.MaxTokens, cfg.APIKey)
	case ProviderOllama:
		c = NewOllamaClient(cfg.Logger, cfg.BaseURL, nil, cfg.Model, cfg.MaxTokens)
	}
	return WithRetry(cfg.Logger, c, cfg.MaxTries), nil
}

type retryClient struct {
	next            Client
	log             *slog.Logger
	maxTries        uint
	initialInterval time.Duration
}

// WithRetry retries transient failures with exponential backoff. Context errors and
// non-temporary status errors are returned immediately.
func WithRetry(log *slog.Logger, next Client, maxTries uint) Client {
	return &retryClient{next: next, log: log, maxTries: maxTries, initialInterval: defaultInitialInterval}
}

func (c *retryClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	attempt := 0
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	return backoff.Retry(ctx, func() (string, error) {
		if attempt > 0 {
			c.log.Warn("llm: call failed, retrying", "attempt", attempt+1)
		}
		attempt++
		out, err := c.next.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return out, nil
		}
		if !retryable(ctx, err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
