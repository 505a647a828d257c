package aggregate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"iconresolve/internal/resolver"
)

// EntityResolver resolves a single entity. *resolver.Resolver satisfies it.
type EntityResolver interface {
	Resolve(ctx context.Context, id string) resolver.Result
}

type Aggregator struct {
	resolver EntityResolver
	logger   *slog.Logger
}

func New(r EntityResolver, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{resolver: r, logger: logger}
}

// ResolveAll resolves every id concurrently and waits for all of them.
// The returned map always holds exactly ids; an invocation that panics is
// recorded as Unresolved and does not affect its siblings.
func (a *Aggregator) ResolveAll(ctx context.Context, ids []string) *resolver.ResultMap {
	start := time.Now()
	results := make([]resolver.Result, len(ids))

	// A plain Group: no shared context, so nothing is cancelled on failure.
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = a.resolveOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	m := resolver.NewResultMap(ids, results)
	resolved := 0
	m.Each(func(_ string, r resolver.Result) {
		if r.Resolved() {
			resolved++
		}
	})
	a.logger.InfoContext(ctx, "resolution batch completed",
		"entities", len(ids),
		"resolved", resolved,
		"unresolved", len(ids)-resolved,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return m
}

func (a *Aggregator) resolveOne(ctx context.Context, id string) (res resolver.Result) {
	defer func() {
		if p := recover(); p != nil {
			a.logger.ErrorContext(ctx, "entity resolution panicked",
				"entity", id,
				"panic", p,
			)
			res = resolver.Unresolved
		}
	}()
	if a.resolver == nil {
		return resolver.Unresolved
	}
	return a.resolver.Resolve(ctx, id)
}
