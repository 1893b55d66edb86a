package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/hybridqa/pkg/docs"
	"github.com/malbeclabs/hybridqa/pkg/store"
)

var testPrompts = &Prompts{Generate: "GENERATE", Synthesize: "SYNTHESIZE"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubLLM replays scripted responses per prompt kind. Once a script runs out its last
// entry is repeated.
type stubLLM struct {
	mu         sync.Mutex
	generate   []string
	synthesize []string
	err        error

	generatePrompts   []string
	synthesizePrompts []string
}

func (m *stubLLM) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	switch systemPrompt {
	case testPrompts.Generate:
		m.generatePrompts = append(m.generatePrompts, userPrompt)
		return next(m.generate, len(m.generatePrompts)-1), nil
	case testPrompts.Synthesize:
		m.synthesizePrompts = append(m.synthesizePrompts, userPrompt)
		return next(m.synthesize, len(m.synthesizePrompts)-1), nil
	}
	return "", errors.New("unexpected system prompt")
}

func next(script []string, i int) string {
	if len(script) == 0 {
		return ""
	}
	if i >= len(script) {
		i = len(script) - 1
	}
	return script[i]
}

type stubStore struct {
	mu      sync.Mutex
	results map[string]store.Result
	err     error
	queries []string
}

func (s *stubStore) DescribeSchema(context.Context, []string) (string, error) {
	return "Table Orders: OrderID (INTEGER)\n", nil
}

func (s *stubStore) Execute(_ context.Context, query string) (store.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if res, ok := s.results[query]; ok {
		return res, nil
	}
	if s.err != nil {
		return store.Result{}, s.err
	}
	return store.Result{}, errors.New("no such table: " + query)
}

type stubIndex struct {
	hits    map[string][]docs.ScoredFragment
	queries []string
}

func (ix *stubIndex) Search(_ context.Context, query string, k int) ([]docs.ScoredFragment, error) {
	ix.queries = append(ix.queries, query)
	hits := ix.hits[query]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func hit(id string, score float64) docs.ScoredFragment {
	return docs.ScoredFragment{
		Fragment: docs.Fragment{ID: id, Content: "content of " + id, Source: "doc"},
		Score:    score,
	}
}

func newTestPipeline(t *testing.T, llm LLMClient, st RelationalStore, ix TextIndex, opts ...func(*Config)) *Pipeline {
	t.Helper()
	cfg := &Config{
		Logger:     testLogger(),
		LLM:        llm,
		Store:      st,
		Index:      ix,
		Prompts:    testPrompts,
		Clock:      clockwork.NewFakeClock(),
		MaxRepairs: DefaultMaxRepairs,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}
