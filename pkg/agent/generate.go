package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/malbeclabs/hybridqa/pkg/store"
)

var (
	// A language tag is only consumed when it is sql/sqlite or ends the fence line, so a
	// bare fence around "SELECT ..." keeps its first word.
	fencedBlock  = regexp.MustCompile("(?is)```(?:(?:sqlite|sql)\\b|[a-z0-9_+-]*[ \\t]*\\n)?(.*?)```")
	selectSpan   = regexp.MustCompile(`(?is)\bSELECT\s.*?(?:;|$)`)
	leadingQuery = regexp.MustCompile(`(?i)^(?:SELECT|WITH)\b`)
	leadingCTE   = regexp.MustCompile(`(?i)^WITH\s+(?:RECURSIVE\s+)?["\w]+(?:\s*\([^)]*\))?\s+AS\s*\(`)
)

// ExtractQuery pulls a query out of raw model output: a fenced block first, then a
// WITH statement or SELECT span, then the text itself when it starts like a query.
// It returns "" when nothing usable is found.
func ExtractQuery(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed := strings.TrimSpace(raw)
	// A CTE contains a SELECT further in; cutting there would drop the WITH clause.
	if leadingCTE.MatchString(trimmed) {
		return trimmed
	}
	if m := selectSpan.FindString(raw); m != "" {
		return strings.TrimSpace(m)
	}
	if leadingQuery.MatchString(trimmed) {
		return trimmed
	}
	return ""
}

type fixRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// IdentifierFixer rewrites known misspellings of multi-word table names to their quoted
// canonical form, e.g. OrderDetails or Order_Details to "Order Details".
type IdentifierFixer struct {
	rules []fixRule
}

func NewIdentifierFixer(tables []string) *IdentifierFixer {
	f := &IdentifierFixer{}
	for _, t := range tables {
		words := strings.Fields(t)
		if len(words) < 2 {
			continue
		}
		quoted := store.QuoteIdent(t)
		for _, variant := range []string{strings.Join(words, ""), strings.Join(words, "_")} {
			f.rules = append(f.rules, fixRule{
				pattern:     regexp.MustCompile(`["\x60]?\b` + regexp.QuoteMeta(variant) + `\b["\x60]?`),
				replacement: quoted,
			})
		}
	}
	return f
}

func (f *IdentifierFixer) Fix(query string) string {
	for _, r := range f.rules {
		query = r.pattern.ReplaceAllLiteralString(query, r.replacement)
	}
	return query
}

// SynthesizeQuery asks the model for a query and post-processes it. Model failures yield
// an empty query, which the runner treats as an execution failure.
func (p *Pipeline) SynthesizeQuery(ctx context.Context, question, constraints, schema, previousError string) string {
	userPrompt := buildGenerateUserPrompt(question, constraints, schema, previousError)
	raw := p.complete(ctx, "generate", p.cfg.Prompts.Generate, userPrompt)
	return p.fixer.Fix(ExtractQuery(raw))
}

func buildGenerateUserPrompt(question, constraints, schema, previousError string) string {
	var sb strings.Builder
	sb.WriteString("Database schema:\n")
	sb.WriteString(schema)
	sb.WriteString("\n\nConstraints:\n")
	sb.WriteString(constraints)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	if previousError != "" {
		sb.WriteString("\n\nPrevious attempt failed:\n")
		sb.WriteString(previousError)
	}
	sb.WriteString("\n\nReturn only the SQL query.")
	return sb.String()
}

// repairContext describes a failed attempt for the next synthesis.
func repairContext(query, lastError string) string {
	return fmt.Sprintf("Query:\n%s\n\nError: %s", query, lastError)
}
