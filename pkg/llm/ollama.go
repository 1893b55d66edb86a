package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
)

// OllamaClient implements Client against a local Ollama server's chat endpoint.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	model      string
	numPredict int64
	log        *slog.Logger
}

// NewOllamaClient creates a new Ollama client. A nil httpClient uses a gzip-aware client
// without a timeout; callers bound each call through the context instead.
func NewOllamaClient(log *slog.Logger, baseURL string, httpClient *http.Client, model string, numPredict int64) *OllamaClient {
	if httpClient == nil {
		httpClient = &http.Client{Transport: gzhttp.Transport(http.DefaultTransport)}
	}
	return &OllamaClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		model:      model,
		numPredict: numPredict,
		log:        log,
	}
}

// Complete sends a system + user message pair and returns the assistant content.
func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]ollamaMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: userPrompt})

	resp, err := c.chat(ctx, ollamaChatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
		Options: map[string]any{
			"num_predict": c.numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	c.log.Debug("llm: ollama call completed", "model", resp.Model, "contentLen", len(resp.Message.Content))
	return resp.Message.Content, nil
}

func (c *OllamaClient) chat(ctx context.Context, req ollamaChatRequest) (ollamaChatResponse, error) {
	var out ollamaChatResponse

	b, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("json marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return out, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return out, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// Ollama may send newline-delimited chunks even when stream=false.
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return out, fmt.Errorf("stream decode: %w (line=%q)", err, string(line))
		}
		if chunk.Error != "" {
			return out, fmt.Errorf("ollama error: %s", chunk.Error)
		}
		out.Message.Content += chunk.Message.Content
		if chunk.Message.Role != "" {
			out.Message.Role = chunk.Message.Role
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		out.Done = chunk.Done
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan: %w", err)
	}

	return out, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model,omitempty"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done,omitempty"`
	Error   string        `json:"error,omitempty"`
}
