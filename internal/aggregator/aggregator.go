// Package aggregator fans a query out to every provider and joins the results.
package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"triquery/internal/domain"
	"triquery/internal/metrics"
)

// Aggregator runs a fixed set of providers concurrently.
type Aggregator struct {
	providers []domain.Provider
	logger    *slog.Logger
}

type Config struct {
	Providers []domain.Provider
	Logger    *slog.Logger
}

func New(cfg Config) *Aggregator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{providers: cfg.Providers, logger: cfg.Logger}
}

// Aggregate calls every provider at once and waits for all of them to settle.
// The result lists providers in construction order, not completion order.
// The caller must have rejected a blank query already.
func (a *Aggregator) Aggregate(ctx context.Context, query string) *domain.QueryResult {
	results := make([]domain.ProviderResult, len(a.providers))

	// Providers never fail, so the group only serves as a join point.
	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			start := time.Now()
			res := p.Call(ctx, query)
			elapsed := time.Since(start)
			metrics.ObserveProvider(p.Name(), res.Success, elapsed)
			a.logger.Debug("provider settled",
				"provider", p.Name(),
				"success", res.Success,
				"elapsed_ms", elapsed.Milliseconds(),
			)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := domain.NewQueryResult()
	for i, p := range a.providers {
		out.Set(p.Name(), results[i])
	}
	return out
}
