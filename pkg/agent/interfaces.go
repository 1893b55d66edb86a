package agent

import (
	"context"

	"github.com/malbeclabs/hybridqa/pkg/docs"
	"github.com/malbeclabs/hybridqa/pkg/store"
)

// LLMClient is the interface for interacting with a language model.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RelationalStore describes and queries the relational dataset.
type RelationalStore interface {
	// DescribeSchema returns one "Table <name>: col (TYPE), ..." line per existing table.
	DescribeSchema(ctx context.Context, tables []string) (string, error)
	// Execute runs a query. Malformed queries are returned as errors.
	Execute(ctx context.Context, query string) (store.Result, error)
}

// TextIndex ranks document fragments against a query.
type TextIndex interface {
	// Search returns at most k fragments, best first.
	Search(ctx context.Context, query string, k int) ([]docs.ScoredFragment, error)
}
