package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/hybridqa/pkg/docs"
)

func TestAgent_Router(t *testing.T) {
	t.Parallel()
	r := NewRouter(defaultPolicyKeywords)

	require.Equal(t, StrategyTextOnly, r.Route("According to the product policy, what is the return window (days) for unopened Beverages?"))
	require.Equal(t, StrategyTextOnly, r.Route("What is the RETURN WINDOW for produce?"))
	require.Equal(t, StrategyStructured, r.Route("Top 3 products by revenue in 1997?"))
	require.False(t, NewRouter([]string{""}).IsPolicy("anything"))
}

func TestAgent_MergeFragments_DedupFirstSeenWins(t *testing.T) {
	t.Parallel()

	base := []Fragment{{ID: "a", Content: "first"}, {ID: "b"}}
	extra := []Fragment{{ID: "b"}, {ID: "a", Content: "second"}, {ID: "c"}, {ID: "c"}}
	got := MergeFragments(base, extra)

	ids := make([]string, len(got))
	for i, f := range got {
		ids[i] = f.ID
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)
	require.Equal(t, "first", got[0].Content)
}

func TestAgent_Retrieve_PolicyBoost(t *testing.T) {
	t.Parallel()

	question := "What is the return policy for Beverages?"
	ix := &stubIndex{hits: map[string][]docs.ScoredFragment{
		question:          {hit("product_policy::chunk1", 3), hit("catalog::chunk0", 1)},
		defaultBoostQuery: {hit("product_policy::chunk0", 2), hit("product_policy::chunk1", 1.5)},
	}}
	p := newTestPipeline(t, &stubLLM{}, &stubStore{}, ix)

	got := p.Retrieve(context.Background(), question)
	require.Equal(t, []string{question, defaultBoostQuery}, ix.queries)
	require.Len(t, got, 3)
	require.Equal(t, "product_policy::chunk1", got[0].ID)
	require.Equal(t, "catalog::chunk0", got[1].ID)
	require.Equal(t, "product_policy::chunk0", got[2].ID)
}

func TestAgent_Retrieve_NoBoostForDataQuestions(t *testing.T) {
	t.Parallel()

	ix := &stubIndex{}
	p := newTestPipeline(t, &stubLLM{}, &stubStore{}, ix)

	got := p.Retrieve(context.Background(), "Total revenue in 1997?")
	require.Empty(t, got)
	require.Equal(t, []string{"Total revenue in 1997?"}, ix.queries)
}

func TestAgent_AssembleConstraints(t *testing.T) {
	t.Parallel()

	frags := []Fragment{{ID: "a", Content: "AOV = revenue / orders"}, {ID: "b", Content: "Summer 1997: June"}}
	first := AssembleConstraints(frags, DefaultHints)
	require.Equal(t, first, AssembleConstraints(frags, DefaultHints))
	require.Contains(t, first, "AOV = revenue / orders\n\nSummer 1997: June")
	require.Contains(t, first, `"Order Details"`)
	require.Contains(t, first, "YYYY-MM-DD")

	require.Contains(t, AssembleConstraints(nil, DefaultHints), "Schema hints:")
}
