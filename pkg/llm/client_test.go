package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "ok", nil
}

func fastRetry(next Client, maxTries uint) Client {
	return &retryClient{next: next, log: testLogger(), maxTries: maxTries, initialInterval: time.Millisecond}
}

func TestLLM_Retry_RecoversFromTransientErrors(t *testing.T) {
	t.Parallel()

	next := &flakyClient{errs: []error{
		errors.New("connection refused"),
		&StatusError{Code: http.StatusServiceUnavailable, Body: "loading model"},
	}}
	out, err := fastRetry(next, 3).Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Equal(t, 3, next.calls)
}

func TestLLM_Retry_StopsOnPermanentStatus(t *testing.T) {
	t.Parallel()

	next := &flakyClient{errs: []error{&StatusError{Code: http.StatusBadRequest, Body: "bad model"}}}
	_, err := fastRetry(next, 3).Complete(context.Background(), "sys", "user")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.Code)
	require.Equal(t, 1, next.calls)
}

func TestLLM_Retry_GivesUpAfterMaxTries(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	next := &flakyClient{errs: []error{boom, boom, boom, boom}}
	_, err := fastRetry(next, 2).Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, next.calls)
}

func TestLLM_Ollama_Complete(t *testing.T) {
	t.Parallel()

	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// Two chunks, as Ollama sometimes streams even when asked not to.
		fmt.Fprintln(w, `{"model":"phi3.5","message":{"role":"assistant","content":"SELECT "},"done":false}`)
		fmt.Fprintln(w, `{"model":"phi3.5","message":{"role":"assistant","content":"1"},"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(testLogger(), srv.URL+"/", srv.Client(), "phi3.5", 1000)
	out, err := c.Complete(context.Background(), "be terse", "count")
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", out)

	require.Equal(t, "phi3.5", got.Model)
	require.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Equal(t, "count", got.Messages[1].Content)
	require.EqualValues(t, 1000, got.Options["num_predict"])
}

func TestLLM_Ollama_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(testLogger(), srv.URL, nil, "missing", 10)
	_, err := c.Complete(context.Background(), "", "hi")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
	require.False(t, se.Temporary())
}

func TestLLM_Config_Validate(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: testLogger(), Provider: ProviderOllama, Model: "phi3.5"}
	require.EqualError(t, cfg.Validate(), "base URL is required for ollama")

	cfg.BaseURL = "http://localhost:11434"
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 1000, cfg.MaxTokens)
	require.EqualValues(t, defaultMaxTries, cfg.MaxTries)

	cfg.Provider = "openai"
	require.ErrorContains(t, cfg.Validate(), "unknown provider")
}

func TestLLM_Anthropic_SingleRequestPerCall(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := newAnthropicClient(testLogger(), "claude-sonnet-4-5", 100,
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
	)
	_, err := c.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	require.EqualValues(t, 1, requests.Load())

	// Retries come from the backoff wrapper alone.
	requests.Store(0)
	_, err = fastRetry(c, 3).Complete(context.Background(), "system", "user")
	require.Error(t, err)
	require.EqualValues(t, 3, requests.Load())
}
