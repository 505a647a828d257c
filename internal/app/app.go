package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"iconresolve/internal/aggregate"
	"iconresolve/internal/artifact"
	artifactcache "iconresolve/internal/cache/artifact"
	"iconresolve/internal/catalog"
	"iconresolve/internal/config"
	"iconresolve/internal/logging"
	"iconresolve/internal/probe"
	artifactrepo "iconresolve/internal/repository/artifact"
	"iconresolve/internal/resolver"
	"iconresolve/internal/safeio"
)

// ErrDrift is returned in check mode when the stored table differs from a
// fresh resolution.
var ErrDrift = errors.New("icon table is out of date")

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	fsys       *safeio.SafeFS
	store      artifactrepo.Store
	cache      *artifactcache.CachedStore
	resolver   *resolver.Resolver
	aggregator *aggregate.Aggregator
	closeStore func() error
}

type options struct {
	logger  *slog.Logger
	checker probe.Checker
	store   artifactrepo.Store
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithChecker replaces the HTTP checker.
func WithChecker(c probe.Checker) Option { return func(o *options) { o.checker = c } }

// WithStore bypasses store selection.
func WithStore(s artifactrepo.Store) Option { return func(o *options) { o.store = s } }

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		l, err := logging.New(nil, cfg.LogFormat, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to init logger: %w", err)
		}
		logger = l
	}

	fsys, err := safeio.NewSafeFS(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to open root %q: %w", cfg.Root, err)
	}

	checker := o.checker
	if checker == nil {
		hc, err := probe.NewHTTPChecker()
		if err != nil {
			return nil, err
		}
		checker = hc
	}
	res, err := resolver.New(checker, resolver.Config{
		BaseURL:  cfg.BaseURL,
		Variants: cfg.Variants,
		Timeout:  cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init resolver: %w", err)
	}

	store := o.store
	var cache *artifactcache.CachedStore
	closeStore := func() error { return nil }
	if store == nil {
		cache, closeStore, err = initStore(ctx, cfg, fsys, logger)
		if err != nil {
			return nil, err
		}
		store = cache
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		fsys:       fsys,
		store:      store,
		cache:      cache,
		resolver:   res,
		aggregator: aggregate.New(res, logger),
		closeStore: closeStore,
	}, nil
}

// Run resolves the catalog once and compares the table with the stored one.
// In check mode a difference is reported as ErrDrift; otherwise the table is
// written only when it changed.
func (a *App) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	checksBefore := a.resolver.Stats()
	cacheBefore := a.cache.Metrics()

	ids, err := catalog.Load(a.fsys, a.cfg.CatalogPath)
	if err != nil {
		return Report{}, err
	}
	a.logger.InfoContext(ctx, "catalog loaded", "path", a.cfg.CatalogPath, "entities", len(ids))

	results := a.aggregator.ResolveAll(ctx, ids)
	data, err := artifact.Encode(results)
	if err != nil {
		return Report{}, err
	}

	report := newReport(results, a.resolver.Variants(), a.resolver.Stats().Sub(checksBefore))
	report.Output = a.cfg.OutputPath

	stale, changes, err := a.compare(ctx, data, &report)
	if err != nil {
		if a.cfg.Check {
			a.finish(ctx, &report, start, cacheBefore)
			return report, err
		}
		a.logger.WarnContext(ctx, "stored icon table unreadable, rewriting", "path", a.cfg.OutputPath, "error", err)
		stale = true
	}
	report.Stale, report.Changes = stale, changes

	if a.cfg.Check {
		a.finish(ctx, &report, start, cacheBefore)
		if stale {
			return report, ErrDrift
		}
		return report, nil
	}

	if stale {
		if err := a.store.Put(ctx, a.cfg.Env, a.cfg.OutputPath, data); err != nil {
			a.finish(ctx, &report, start, cacheBefore)
			return report, fmt.Errorf("store icon table: %w", err)
		}
		report.Written = true
	}
	a.finish(ctx, &report, start, cacheBefore)
	return report, nil
}

func (a *App) finish(ctx context.Context, r *Report, start time.Time, cacheBefore artifactcache.MetricsSnapshot) {
	r.Cache = a.cache.Metrics().Sub(cacheBefore)
	r.Elapsed = time.Since(start)
	a.logger.InfoContext(ctx, "icon table run finished",
		"written", r.Written,
		"stale", r.Stale,
		"cache_hits", r.Cache.BlobHits,
		"cache_misses", r.Cache.BlobMisses,
		"origin_reads", r.Cache.OriginReads,
		"origin_writes", r.Cache.OriginWrites,
		"elapsed", r.Elapsed,
	)
}

// compare reports whether the stored table differs from data, and which
// entries changed. A missing table is stale.
func (a *App) compare(ctx context.Context, data []byte, r *Report) (bool, []artifact.Change, error) {
	next, err := artifact.Decode(data)
	if err != nil {
		return false, nil, err
	}
	stored, err := a.store.Get(ctx, a.cfg.Env, a.cfg.OutputPath)
	if errors.Is(err, artifactrepo.ErrNotFound) {
		r.Missing = true
		if a.cfg.Check {
			r.Stored = a.storedTables(ctx)
		}
		return true, artifact.Diff(artifact.Table{}, next), nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("load stored icon table: %w", err)
	}
	if bytes.Equal(stored, data) {
		return false, nil, nil
	}
	prev, err := artifact.Decode(stored)
	if err != nil {
		return true, nil, nil
	}
	// Entries may match while bytes differ (hand edits, old header).
	return true, artifact.Diff(prev, next), nil
}

// storedTables lists the tables the namespace does hold, so a mistyped
// output path shows up in the summary.
func (a *App) storedTables(ctx context.Context) []string {
	paths, err := a.store.List(ctx, a.cfg.Env)
	if err != nil {
		a.logger.DebugContext(ctx, "list stored icon tables failed", "namespace", a.cfg.Env, "error", err)
		return nil
	}
	ext := path.Ext(a.cfg.OutputPath)
	var out []string
	for _, p := range paths {
		if ext == "" || path.Ext(p) == ext {
			out = append(out, p)
		}
	}
	return out
}

// Watch calls Run now and then once per interval until ctx is done. A run
// that has started finishes even if ctx is cancelled, so stopping never
// stores a table of unresolved entries.
func (a *App) Watch(ctx context.Context, interval time.Duration, onRun func(Report, error)) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := a.Run(context.WithoutCancel(ctx))
		if onRun != nil {
			onRun(report, err)
		}
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) Close() error {
	if a == nil || a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// Report summarises one run.
type Report struct {
	Entities   int
	Resolved   int
	Unresolved int
	ByVariant  map[string]int
	variants   []string
	Checks     resolver.StatsSnapshot
	Output     string
	Written    bool
	Stale      bool
	Missing    bool
	Stored     []string
	Changes    []artifact.Change
	Cache      artifactcache.MetricsSnapshot
	Elapsed    time.Duration
}

func newReport(m *resolver.ResultMap, variants []string, stats resolver.StatsSnapshot) Report {
	r := Report{
		Entities:  m.Len(),
		ByVariant: make(map[string]int, len(variants)),
		variants:  variants,
		Checks:    stats,
	}
	m.Each(func(_ string, res resolver.Result) {
		if v, ok := res.Variant(); ok {
			r.Resolved++
			r.ByVariant[v]++
			return
		}
		r.Unresolved++
	})
	return r
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d platforms: %d resolved, %d unresolved", r.Entities, r.Resolved, r.Unresolved)
	for _, v := range r.variants {
		fmt.Fprintf(&b, ", %s=%d", v, r.ByVariant[v])
	}
	fmt.Fprintf(&b, " (%d checks, %d timeouts, %d errors) in %s",
		r.Checks.Checks, r.Checks.Timeout, r.Checks.Status+r.Checks.Transport, r.Elapsed.Round(time.Millisecond))
	switch {
	case r.Written:
		fmt.Fprintf(&b, "; wrote %s", r.Output)
	case r.Missing:
		fmt.Fprintf(&b, "; %s is not stored", r.Output)
		if len(r.Stored) > 0 {
			fmt.Fprintf(&b, " (stored: %s)", strings.Join(r.Stored, ", "))
		}
	case r.Stale:
		fmt.Fprintf(&b, "; %s is out of date (%d changed entries)", r.Output, len(r.Changes))
	default:
		fmt.Fprintf(&b, "; %s is up to date", r.Output)
	}
	if reads := r.Cache.BlobHits + r.Cache.BlobMisses; reads > 0 || r.Cache.OriginWrites > 0 {
		fmt.Fprintf(&b, "; store: %d cached reads, %d origin reads, %d writes",
			r.Cache.BlobHits, r.Cache.OriginReads, r.Cache.OriginWrites)
	}
	return b.String()
}
