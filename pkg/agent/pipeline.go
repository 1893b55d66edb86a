package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/malbeclabs/hybridqa/pkg/metrics"
)

// ModelFallback stands in for the output of a model call that failed or timed out.
const ModelFallback = "N/A"

// Progress is reported on entry to every stage.
type Progress struct {
	RunID       string
	ID          string
	Stage       Stage
	RepairCount int
	LastError   string
}

// ProgressCallback is called with progress updates during a run.
type ProgressCallback func(Progress)

// Pipeline answers questions. It is safe for concurrent use as long as its collaborators
// are; every run owns its own RunState.
type Pipeline struct {
	cfg    *Config
	log    *slog.Logger
	router *Router
	fixer  *IdentifierFixer
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate agent config: %w", err)
	}
	return &Pipeline{
		cfg:    cfg,
		log:    cfg.Logger,
		router: NewRouter(cfg.PolicyKeywords),
		fixer:  NewIdentifierFixer(cfg.Tables),
	}, nil
}

// Transition returns the stage that follows s.Stage. It is the only place that decides
// whether a failed execution is retried.
func Transition(s *RunState, maxRepairs int) Stage {
	switch s.Stage {
	case StagePlanning:
		if s.Strategy == StrategyTextOnly {
			return StageAnswerReady
		}
		return StageSynthesizing
	case StageSynthesizing:
		return StageExecuting
	case StageExecuting:
		if s.LastError != "" && s.RepairCount <= maxRepairs {
			return StageSynthesizing
		}
		return StageAnswerReady
	default:
		return StageDone
	}
}

// Run answers a single question. It always returns a complete record.
func (p *Pipeline) Run(ctx context.Context, req Request) Record {
	return p.RunWithProgress(ctx, req, nil).Record()
}

// RunWithProgress answers a single question and returns the final run state.
func (p *Pipeline) RunWithProgress(ctx context.Context, req Request, onProgress ProgressCallback) *RunState {
	runID := uuid.NewString()
	log := p.log.With("run", runID, "id", req.ID)
	s := NewRunState(req)

	for s.Stage != StageDone {
		if onProgress != nil {
			onProgress(Progress{RunID: runID, ID: s.ID, Stage: s.Stage, RepairCount: s.RepairCount, LastError: s.LastError})
		}
		start := p.cfg.Clock.Now()
		switch s.Stage {
		case StagePlanning:
			p.plan(ctx, s)
			log.Info("agent: planned", "strategy", s.Strategy, "fragments", len(s.Fragments))
		case StageSynthesizing:
			p.synthesize(ctx, s)
			log.Debug("agent: query synthesized", "sql", s.QueryText, "repair", s.RepairCount)
		case StageExecuting:
			p.execute(ctx, s)
			if s.LastError != "" {
				log.Info("agent: query failed", "error", s.LastError, "repairs", s.RepairCount)
			} else {
				log.Debug("agent: query executed", "rows", len(s.Rows))
			}
		case StageAnswerReady:
			p.answer(ctx, s)
		}
		metrics.StageDuration.WithLabelValues(string(s.Stage)).Observe(p.cfg.Clock.Since(start).Seconds())

		s.Stage = Transition(s, p.cfg.MaxRepairs)
		s.Transitions++
	}

	outcome := "ok"
	if s.LastError != "" {
		outcome = "failed"
	}
	metrics.RunsTotal.WithLabelValues(string(s.Strategy), outcome).Inc()
	log.Info("agent: run complete", "strategy", s.Strategy, "outcome", outcome, "repairs", s.RepairCount, "transitions", s.Transitions)
	return s
}

func (p *Pipeline) plan(ctx context.Context, s *RunState) {
	s.Strategy = p.router.Route(s.Question)
	s.Fragments = p.Retrieve(ctx, s.Question)
	s.Constraints = AssembleConstraints(s.Fragments, p.cfg.Hints)
}

func (p *Pipeline) synthesize(ctx context.Context, s *RunState) {
	var previousError string
	if s.LastError != "" {
		previousError = repairContext(s.QueryText, s.LastError)
	}
	schema, err := p.cfg.Store.DescribeSchema(ctx, p.cfg.Tables)
	if err != nil {
		p.log.Warn("agent: schema description failed", "id", s.ID, "error", err)
	}
	s.QueryText = p.SynthesizeQuery(ctx, s.Question, s.Constraints, schema, previousError)
	s.LastError = ""
}

func (p *Pipeline) execute(ctx context.Context, s *RunState) {
	res, err := p.ExecuteQuery(ctx, s.QueryText)
	if err != nil {
		s.LastError = err.Error()
		s.RepairCount++
		metrics.RepairAttemptsTotal.Inc()
		return
	}
	s.Columns = res.Columns
	s.Rows = res.Rows
	s.LastError = ""
}

func (p *Pipeline) answer(ctx context.Context, s *RunState) {
	ans := p.SynthesizeAnswer(ctx, s)
	s.FinalAnswer = ans.Value
	s.Explanation = ans.Explanation
	s.Citations = Citations(s.QueryText, p.cfg.Tables, s.Fragments)
}

// complete calls the model with a per-call timeout. Failures are logged and replaced by
// ModelFallback so the run always reaches a terminal state.
func (p *Pipeline) complete(ctx context.Context, stage, systemPrompt, userPrompt string) string {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
	defer cancel()

	out, err := p.cfg.LLM.Complete(callCtx, systemPrompt, userPrompt)
	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.LLMCallsTotal.WithLabelValues(stage, status).Inc()
		p.log.Warn("agent: model call failed", "stage", stage, "status", status, "error", err)
		return ModelFallback
	}
	metrics.LLMCallsTotal.WithLabelValues(stage, "ok").Inc()
	return out
}
