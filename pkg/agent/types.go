// Package agent answers questions by combining document retrieval with SQL generation,
// execution and a bounded repair loop, then synthesizing a typed answer with citations.
package agent

import (
	"strings"

	"github.com/malbeclabs/hybridqa/pkg/docs"
)

// ExpectedType is the declared shape of a final answer.
type ExpectedType string

const (
	ExpectedInt        ExpectedType = "int"
	ExpectedFloat      ExpectedType = "float"
	ExpectedString     ExpectedType = "string"
	ExpectedStructured ExpectedType = "structured"
)

// ParseFormatHint maps a free-form format hint to an ExpectedType. Unrecognized hints
// fall back to ExpectedString.
func ParseFormatHint(hint string) ExpectedType {
	h := strings.ToLower(strings.TrimSpace(hint))
	switch {
	case h == "int" || h == "integer":
		return ExpectedInt
	case h == "float" || h == "number":
		return ExpectedFloat
	case h == "str" || h == "string" || h == "":
		return ExpectedString
	case strings.HasPrefix(h, "list"), strings.HasPrefix(h, "dict"),
		strings.HasPrefix(h, "{"), strings.HasPrefix(h, "["),
		h == "structured", h == "json":
		return ExpectedStructured
	default:
		return ExpectedString
	}
}

// Strategy is the routing decision for a question.
type Strategy string

const (
	StrategyTextOnly   Strategy = "text_only"
	StrategyStructured Strategy = "structured"
)

// Stage is a state of the per-request state machine.
type Stage string

const (
	StagePlanning     Stage = "planning"
	StageSynthesizing Stage = "synthesizing"
	StageExecuting    Stage = "executing"
	StageAnswerReady  Stage = "answer_ready"
	StageDone         Stage = "done"
)

// Fragment is a retrieved document fragment.
type Fragment = docs.Fragment

// Request is one question to answer.
type Request struct {
	ID           string
	Question     string
	ExpectedType ExpectedType
	// FormatHint is the caller's hint as written, shown to the model verbatim.
	FormatHint   string
}

// RunState is the per-request working state. It is owned by a single run and never shared.
type RunState struct {
	ID           string
	Question     string
	ExpectedType ExpectedType
	FormatHint   string

	Stage    Stage
	Strategy Strategy

	Fragments   []Fragment
	Constraints string

	QueryText string
	Columns   []string
	Rows      [][]any
	LastError string

	RepairCount int
	Transitions int

	FinalAnswer any
	Explanation string
	Citations   []string
}

// NewRunState returns the initial state for a request.
func NewRunState(req Request) *RunState {
	expected := req.ExpectedType
	if expected == "" {
		expected = ExpectedString
	}
	return &RunState{
		ID:           req.ID,
		Question:     req.Question,
		ExpectedType: expected,
		FormatHint:   req.FormatHint,
		Stage:        StagePlanning,
		Strategy:     StrategyStructured,
		Citations:    []string{},
	}
}

// Record is the output for one request.
type Record struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

// Record builds the output record from a finished run.
func (s *RunState) Record() Record {
	citations := s.Citations
	if citations == nil {
		citations = []string{}
	}
	return Record{
		ID:          s.ID,
		FinalAnswer: s.FinalAnswer,
		SQL:         s.QueryText,
		Confidence:  Confidence(len(s.Rows) > 0, len(s.Fragments) > 0, s.RepairCount > 0),
		Explanation: s.Explanation,
		Citations:   citations,
	}
}
