package agent

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestAgent_ParseAnswer_Labels(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("Answer: Beverages\nExplanation: Highest quantity in June 1997.", ExpectedString)
	require.NoError(t, err)
	require.Equal(t, "Beverages", ans.Value)
	require.Equal(t, "Highest quantity in June 1997.", ans.Explanation)

	ans, err = ParseAnswer("answer : 14\nEXPLANATION:from the policy doc", ExpectedInt)
	require.NoError(t, err)
	require.Equal(t, 14, ans.Value)
	require.Equal(t, "from the policy doc", ans.Explanation)
}

func TestAgent_ParseAnswer_NoLabels(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("  just some text  ", ExpectedString)
	require.NoError(t, err)
	require.Equal(t, "just some text", ans.Value)
	require.Equal(t, DefaultExplanation, ans.Explanation)
}

func TestAgent_ParseAnswer_IntStripsThousandsSeparators(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("Answer: Total: 1,234 units\nExplanation: summed", ExpectedInt)
	require.NoError(t, err)
	require.Equal(t, 1234, ans.Value)

	ans, err = ParseAnswer("Answer: -7", ExpectedInt)
	require.NoError(t, err)
	require.Equal(t, -7, ans.Value)
}

func TestAgent_ParseAnswer_Float(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("Answer: AOV was $1,631.88.\nExplanation: revenue / orders", ExpectedFloat)
	require.NoError(t, err)
	require.InDelta(t, 1631.88, ans.Value, 1e-9)

	ans, err = ParseAnswer("Answer: 3.", ExpectedFloat)
	require.NoError(t, err)
	require.InDelta(t, 3.0, ans.Value, 1e-9)
}

func TestAgent_ParseAnswer_NoNumberKeepsRawText(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("Answer: unknown\nExplanation: no data", ExpectedInt)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.ErrorIs(t, err, errNoNumber)
	require.Equal(t, ExpectedInt, perr.Expected)
	require.Equal(t, "unknown", ans.Value)
	require.Equal(t, "no data", ans.Explanation)
}

func TestAgent_ParseAnswer_Structured(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer(`Answer: {'customer': 'QUICK-Stop', 'margin': 1234.5}
Explanation: top customer`, ExpectedStructured)
	require.NoError(t, err)
	want := map[string]any{"customer": "QUICK-Stop", "margin": 1234.5}
	if diff := cmp.Diff(want, ans.Value); diff != "" {
		t.Fatalf("structured answer mismatch (-want +got):\n%s", diff)
	}

	// Single quotes inside values break quote normalization, so the literal parser takes over.
	ans, err = ParseAnswer("Answer: ```json\n[{'name': \"Chef Anton's\", 'qty': 3}, ('x', None)]\n```", ExpectedStructured)
	require.NoError(t, err)
	want2 := []any{
		map[string]any{"name": "Chef Anton's", "qty": int64(3)},
		[]any{"x", nil},
	}
	if diff := cmp.Diff(want2, ans.Value); diff != "" {
		t.Fatalf("literal answer mismatch (-want +got):\n%s", diff)
	}
}

func TestAgent_ParseAnswer_BrokenStructuredKeepsRawText(t *testing.T) {
	t.Parallel()

	ans, err := ParseAnswer("Answer: [1, 2\nExplanation: oops", ExpectedStructured)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "[1, 2", ans.Value)
	require.Equal(t, "oops", ans.Explanation)
}

func TestAgent_ParseLiteral(t *testing.T) {
	t.Parallel()

	v, err := parseLiteral(`{"a": [1, 2.5, -3e2,], 'b': True, 'c': (None,), 4: 'four\'s'}`)
	require.NoError(t, err)
	want := map[string]any{
		"a": []any{int64(1), 2.5, -300.0},
		"b": true,
		"c": []any{nil},
		"4": "four's",
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Fatalf("literal mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{``, `[1 2]`, `{'a' 1}`, `'open`, `[1] extra`, `[nonsense]`} {
		_, err := parseLiteral(bad)
		require.Error(t, err, bad)
	}
}

func TestAgent_SerializeRows(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[]", SerializeRows(nil, 2000))
	require.Equal(t, `[["Beverages",12.5]]`, SerializeRows([][]any{{"Beverages", 12.5}}, 2000))

	rows := make([][]any, 500)
	for i := range rows {
		rows[i] = []any{i, "Chai"}
	}
	require.Len(t, SerializeRows(rows, 2000), 2000)
}

func TestAgent_BuildSynthesizeUserPrompt(t *testing.T) {
	t.Parallel()

	s := NewRunState(Request{ID: "q1", Question: "Which category?", ExpectedType: ExpectedString})
	s.Fragments = []Fragment{{ID: "catalog::chunk0", Content: "Categories: Beverages"}}
	prompt := buildSynthesizeUserPrompt(s, 2000)
	require.Contains(t, prompt, "SQL query: N/A\n")
	require.Contains(t, prompt, "SQL result: []\n")
	require.Contains(t, prompt, "[catalog::chunk0] Categories: Beverages\n")
	require.True(t, strings.HasPrefix(prompt, "Question: Which category?\nFormat hint: str\n"))
}

func TestAgent_BuildSynthesizeUserPrompt_KeepsRawFormatHint(t *testing.T) {
	t.Parallel()

	hint := "list[{product:str, revenue:float}]"
	s := NewRunState(Request{ID: "q2", Question: "Top 3 products?", ExpectedType: ParseFormatHint(hint), FormatHint: hint})
	require.Equal(t, ExpectedStructured, s.ExpectedType)

	prompt := buildSynthesizeUserPrompt(s, 2000)
	require.True(t, strings.HasPrefix(prompt, "Question: Top 3 products?\nFormat hint: list[{product:str, revenue:float}]\n"))
}
