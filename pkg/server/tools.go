package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/hybridqa/pkg/agent"
	"github.com/malbeclabs/hybridqa/pkg/metrics"
)

type AnswerInput struct {
	ID         string `json:"id,omitempty" jsonschema:"optional caller-chosen request id"`
	Question   string `json:"question" jsonschema:"the question to answer"`
	FormatHint string `json:"format_hint,omitempty" jsonschema:"expected answer type: int, float, str or a structure hint"`
}

type AnswerOutput struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

type SearchInput struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of chunks, default 6"`
}

type SearchOutput struct {
	Fragments []SearchHit `json:"fragments"`
}

type SearchHit struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type SchemaInput struct {
	Tables []string `json:"tables,omitempty" jsonschema:"table names; all canonical tables when empty"`
}

type SchemaOutput struct {
	Schema string `json:"schema"`
}

// observe records the outcome of a tool call.
func observe(toolName string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(toolName, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
}

func RegisterAnswerTool(log *slog.Logger, server *mcp.Server, answerer Answerer, name string, description string) error {
	req, err := jsonschema.For[AnswerInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create answer input schema: %w", err)
	}
	res, err := jsonschema.For[AnswerOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create answer output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AnswerInput) (*mcp.CallToolResult, AnswerOutput, error) {
		start := time.Now()
		log.Debug("mcp/tool: answering question", "question", in.Question)
		out, err := handleAnswer(ctx, answerer, in)
		observe(name, start, err)
		if err != nil {
			return nil, AnswerOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func handleAnswer(ctx context.Context, answerer Answerer, in AnswerInput) (AnswerOutput, error) {
	if in.Question == "" {
		return AnswerOutput{}, errors.New("question is required")
	}
	rec := answerer.Run(ctx, agent.Request{
		ID:           in.ID,
		Question:     in.Question,
		ExpectedType: agent.ParseFormatHint(in.FormatHint),
		FormatHint:   in.FormatHint,
	})
	return AnswerOutput(rec), nil
}

func RegisterSearchTool(log *slog.Logger, server *mcp.Server, index agent.TextIndex, name string, description string) error {
	req, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create search input schema: %w", err)
	}
	res, err := jsonschema.For[SearchOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create search output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
		start := time.Now()
		log.Debug("mcp/tool: searching documents", "query", in.Query, "k", in.K)
		out, err := handleSearch(ctx, index, in)
		observe(name, start, err)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		return nil, out, nil
	})
	return nil
}

func handleSearch(ctx context.Context, index agent.TextIndex, in SearchInput) (SearchOutput, error) {
	k := in.K
	if k <= 0 {
		k = defaultSearchK
	}
	hits, err := index.Search(ctx, in.Query, k)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("failed to search documents: %w", err)
	}
	out := SearchOutput{Fragments: make([]SearchHit, 0, len(hits))}
	for _, h := range hits {
		out.Fragments = append(out.Fragments, SearchHit{ID: h.ID, Source: h.Source, Content: h.Content, Score: h.Score})
	}
	return out, nil
}

func RegisterSchemaTool(log *slog.Logger, server *mcp.Server, store agent.RelationalStore, name string, description string) error {
	req, err := jsonschema.For[SchemaInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema input schema: %w", err)
	}
	res, err := jsonschema.For[SchemaOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schema output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SchemaInput) (*mcp.CallToolResult, SchemaOutput, error) {
		start := time.Now()
		log.Debug("mcp/tool: describing schema", "tables", in.Tables)
		schema, err := store.DescribeSchema(ctx, in.Tables)
		observe(name, start, err)
		if err != nil {
			return nil, SchemaOutput{}, fmt.Errorf("failed to describe schema: %w", err)
		}
		return nil, SchemaOutput{Schema: schema}, nil
	})
	return nil
}
