package agent

import (
	"context"
	"errors"

	"github.com/malbeclabs/hybridqa/pkg/metrics"
	"github.com/malbeclabs/hybridqa/pkg/store"
)

// ErrEmptyQuery is returned when there is no query to run.
var ErrEmptyQuery = errors.New("no SQL generated")

// ExecuteQuery runs a query against the store. An empty query fails without touching the
// store. Zero rows is a success.
func (p *Pipeline) ExecuteQuery(ctx context.Context, query string) (store.Result, error) {
	if query == "" {
		metrics.QueryExecutionsTotal.WithLabelValues("empty").Inc()
		return store.Result{}, ErrEmptyQuery
	}
	res, err := p.cfg.Store.Execute(ctx, query)
	if err != nil {
		metrics.QueryExecutionsTotal.WithLabelValues("error").Inc()
		return store.Result{}, err
	}
	metrics.QueryExecutionsTotal.WithLabelValues("ok").Inc()
	return res, nil
}
