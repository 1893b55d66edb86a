package agent

import (
	"context"
	"strings"

	"github.com/malbeclabs/hybridqa/pkg/docs"
)

// Retrieve searches the index for the question and, for policy questions, merges in the
// hits of the boost query. Index failures are logged and yield no fragments.
func (p *Pipeline) Retrieve(ctx context.Context, question string) []Fragment {
	hits := p.search(ctx, question, p.cfg.RetrieveK)
	if p.router.IsPolicy(question) {
		hits = MergeFragments(hits, p.search(ctx, p.cfg.BoostQuery, p.cfg.BoostK))
	}
	return hits
}

func (p *Pipeline) search(ctx context.Context, query string, k int) []Fragment {
	hits, err := p.cfg.Index.Search(ctx, query, k)
	if err != nil {
		p.log.Warn("agent: retrieval failed", "query", query, "error", err)
		return nil
	}
	return fragmentsOf(hits)
}

func fragmentsOf(hits []docs.ScoredFragment) []Fragment {
	out := make([]Fragment, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Fragment)
	}
	return out
}

// MergeFragments appends extra to base, skipping ids already present. The first occurrence
// of an id wins.
func MergeFragments(base, extra []Fragment) []Fragment {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]Fragment, 0, len(base)+len(extra))
	for _, list := range [][]Fragment{base, extra} {
		for _, f := range list {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	return out
}

// AssembleConstraints joins fragment contents in retrieval order and appends the hints.
func AssembleConstraints(fragments []Fragment, hints string) string {
	contents := make([]string, len(fragments))
	for i, f := range fragments {
		contents[i] = f.Content
	}
	return "Context:\n" + strings.Join(contents, "\n\n") + "\n\n" + hints
}
