package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultExplanation is used when the model output has no Explanation label.
const DefaultExplanation = "No explanation provided."

var (
	answerLabel      = regexp.MustCompile(`(?i)answer\s*:`)
	explanationLabel = regexp.MustCompile(`(?i)explanation\s*:`)
	intToken         = regexp.MustCompile(`-?\d+`)
	floatToken       = regexp.MustCompile(`-?\d+(?:\.\d*)?`)
)

// ParseError reports that a model answer could not be coerced to the expected type. The
// raw text is kept as the answer.
type ParseError struct {
	Expected ExpectedType
	Text     string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s answer %q: %v", e.Expected, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errNoNumber = errors.New("no numeric token")

// Answer is the parsed output of answer synthesis.
type Answer struct {
	Value       any
	Explanation string
}

// ParseAnswer splits labeled model output into answer and explanation and coerces the
// answer. It never fails outright: when coercion fails the trimmed answer text is returned
// together with a *ParseError.
func ParseAnswer(raw string, expected ExpectedType) (Answer, error) {
	out := Answer{Explanation: DefaultExplanation}
	if loc := explanationLabel.FindStringIndex(raw); loc != nil {
		if text := strings.TrimSpace(raw[loc[1]:]); text != "" {
			out.Explanation = text
		}
	}

	span := raw
	if loc := answerLabel.FindStringIndex(raw); loc != nil {
		span = raw[loc[1]:]
		if end := explanationLabel.FindStringIndex(span); end != nil {
			span = span[:end[0]]
		}
	}
	span = strings.TrimSpace(span)
	out.Value = span

	v, err := coerce(span, expected)
	if err != nil {
		return out, &ParseError{Expected: expected, Text: span, Err: err}
	}
	out.Value = v
	return out, nil
}

func coerce(span string, expected ExpectedType) (any, error) {
	if strings.ContainsAny(span, "{[") {
		return parseStructured(span)
	}
	cleaned := strings.ReplaceAll(span, ",", "")
	switch expected {
	case ExpectedInt:
		tok := intToken.FindString(cleaned)
		if tok == "" {
			return nil, errNoNumber
		}
		return strconv.Atoi(tok)
	case ExpectedFloat:
		tok := floatToken.FindString(cleaned)
		if tok == "" {
			return nil, errNoNumber
		}
		return strconv.ParseFloat(strings.TrimSuffix(tok, "."), 64)
	default:
		return span, nil
	}
}

// parseStructured decodes the bracketed payload in span, first as JSON with single quotes
// normalized, then with the tolerant literal parser.
func parseStructured(span string) (any, error) {
	text := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(span, "```json", ""), "```", ""))
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start < 0 || end < start {
		return nil, errors.New("unbalanced structured payload")
	}
	payload := text[start : end+1]

	var v any
	jsonErr := json.Unmarshal([]byte(strings.ReplaceAll(payload, "'", `"`)), &v)
	if jsonErr == nil {
		return v, nil
	}
	v, err := parseLiteral(payload)
	if err != nil {
		return nil, fmt.Errorf("json: %v; literal: %w", jsonErr, err)
	}
	return v, nil
}

// SynthesizeAnswer asks the model for a labeled answer and parses it. Parse failures are
// logged and the raw text is kept.
func (p *Pipeline) SynthesizeAnswer(ctx context.Context, s *RunState) Answer {
	userPrompt := buildSynthesizeUserPrompt(s, p.cfg.MaxRowChars)
	raw := p.complete(ctx, "synthesize", p.cfg.Prompts.Synthesize, userPrompt)

	ans, err := ParseAnswer(raw, s.ExpectedType)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			p.log.Info("agent: answer kept as raw text", "id", s.ID, "expected", perr.Expected, "error", perr.Err)
		}
	}
	return ans
}

func buildSynthesizeUserPrompt(s *RunState, maxRowChars int) string {
	query := s.QueryText
	if query == "" {
		query = "N/A"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", s.Question)
	fmt.Fprintf(&sb, "Format hint: %s\n\n", promptHint(s))
	fmt.Fprintf(&sb, "SQL query: %s\n", query)
	if len(s.Columns) > 0 {
		fmt.Fprintf(&sb, "SQL columns: %s\n", strings.Join(s.Columns, ", "))
	}
	fmt.Fprintf(&sb, "SQL result: %s\n\n", SerializeRows(s.Rows, maxRowChars))
	sb.WriteString("Document context:\n")
	for _, f := range s.Fragments {
		fmt.Fprintf(&sb, "[%s] %s\n", f.ID, f.Content)
	}
	return sb.String()
}

// promptHint is the caller's format hint, or the short name of the expected type when the
// caller gave none.
func promptHint(s *RunState) string {
	if hint := strings.TrimSpace(s.FormatHint); hint != "" {
		return hint
	}
	switch s.ExpectedType {
	case ExpectedString:
		return "str"
	case ExpectedStructured:
		return "json"
	}
	return string(s.ExpectedType)
}

// SerializeRows renders rows as JSON truncated to at most maxChars bytes.
func SerializeRows(rows [][]any, maxChars int) string {
	if rows == nil {
		rows = [][]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		data = []byte(fmt.Sprint(rows))
	}
	s := string(data)
	if maxChars > 0 && len(s) > maxChars {
		s = strings.ToValidUTF8(s[:maxChars], "")
	}
	return s
}
