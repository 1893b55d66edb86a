package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/hybridqa/pkg/agent"
	"github.com/malbeclabs/hybridqa/pkg/metrics"
)

const defaultConcurrency = 1

// Answerer runs a single request to completion.
type Answerer interface {
	RunWithProgress(ctx context.Context, req agent.Request, onProgress agent.ProgressCallback) *agent.RunState
}

type Config struct {
	Logger      *slog.Logger
	Agent       Answerer
	Concurrency int
	Clock       clockwork.Clock
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Agent == nil {
		return errors.New("agent is required")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be positive")
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Runner answers batches of requests on a bounded worker pool.
type Runner struct {
	log  *slog.Logger
	cfg  Config
	pool pond.ResultPool[agent.Record]
}

func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate batch config: %w", err)
	}
	return &Runner{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewResultPool[agent.Record](cfg.Concurrency),
	}, nil
}

// Run answers every input and returns the records in input order. Individual request
// failures are already folded into their records; only cancellation fails the batch.
func (r *Runner) Run(ctx context.Context, inputs []Input) ([]agent.Record, error) {
	start := r.cfg.Clock.Now()
	group := r.pool.NewGroupContext(ctx)

	for _, in := range inputs {
		group.Submit(func() agent.Record {
			reqStart := r.cfg.Clock.Now()
			s := r.cfg.Agent.RunWithProgress(ctx, in.Request(), func(p agent.Progress) {
				r.log.Debug("batch: progress", "id", p.ID, "stage", p.Stage, "repairs", p.RepairCount)
			})
			rec := s.Record()
			metrics.BatchRecordsTotal.Inc()
			r.log.Info("batch: answered", "id", rec.ID, "confidence", rec.Confidence, "duration", r.cfg.Clock.Since(reqStart))
			return rec
		})
	}

	records, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("batch interrupted: %w", err)
	}
	r.log.Info("batch: complete", "records", len(records), "duration", r.cfg.Clock.Since(start))
	return records, nil
}

// Close stops the worker pool after in-flight tasks finish.
func (r *Runner) Close() {
	r.pool.StopAndWait()
}
