package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"iconresolve/internal/probe"
)

// DefaultTimeout bounds a single existence check.
const DefaultTimeout = 10 * time.Second

// DefaultVariants is the candidate priority order.
var DefaultVariants = []string{"svg", "png"}

var (
	ErrNoBaseURL  = errors.New("base url is required")
	ErrNoVariants = errors.New("at least one variant is required")
)

// Candidate is one (entity, variant) pair and the address it is checked at.
type Candidate struct {
	EntityID string
	Variant  string
	URL      string
}

type Config struct {
	BaseURL  string
	Variants []string
	Timeout  time.Duration
}

// Resolver finds the first existing variant for an entity.
type Resolver struct {
	checker  probe.Checker
	base     string
	variants []string
	timeout  time.Duration
	logger   *slog.Logger
	stats    stats
}

func New(checker probe.Checker, cfg Config, logger *slog.Logger) (*Resolver, error) {
	if checker == nil {
		return nil, fmt.Errorf("checker is nil")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	variants := make([]string, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		v = strings.TrimPrefix(strings.TrimSpace(v), ".")
		if v != "" {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		return nil, ErrNoVariants
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		checker:  checker,
		base:     base,
		variants: variants,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Candidates returns the ordered candidate list for id.
func (r *Resolver) Candidates(id string) []Candidate {
	out := make([]Candidate, 0, len(r.variants))
	for _, v := range r.variants {
		out = append(out, Candidate{
			EntityID: id,
			Variant:  v,
			URL:      r.base + "/" + url.PathEscape(id+"."+v),
		})
	}
	return out
}

// Resolve never fails: every error, timeout and non-success status counts as
// "does not exist" for that candidate.
func (r *Resolver) Resolve(ctx context.Context, id string) Result {
	for _, c := range r.Candidates(id) {
		if r.check(ctx, c) {
			return Resolved(c.Variant)
		}
	}
	return Unresolved
}

func (r *Resolver) check(parent context.Context, c Candidate) bool {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	r.stats.checks.Add(1)
	ok, err := r.exists(ctx, c.URL)
	if err == nil && ok {
		return true
	}
	reason := probe.Classify(err)
	r.stats.record(reason)
	r.logger.DebugContext(parent, "candidate check failed",
		"entity", c.EntityID,
		"variant", c.Variant,
		"url", c.URL,
		"reason", reason,
		"error", err,
	)
	return false
}

// exists turns a panicking checker into a transport failure.
func (r *Resolver) exists(ctx context.Context, target string) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("checker panic: %v", p)
		}
	}()
	return r.checker.Exists(ctx, target)
}

// Stats returns counters accumulated since the resolver was created.
func (r *Resolver) Stats() StatsSnapshot {
	return r.stats.snapshot()
}

func (r *Resolver) Variants() []string {
	return append([]string(nil), r.variants...)
}

type StatsSnapshot struct {
	Checks    uint64
	NotFound  uint64
	Status    uint64
	Timeout   uint64
	Transport uint64
}

func (s StatsSnapshot) Failed() uint64 {
	return s.NotFound + s.Status + s.Timeout + s.Transport
}

// Sub returns the counters accumulated between prev and s.
func (s StatsSnapshot) Sub(prev StatsSnapshot) StatsSnapshot {
	return StatsSnapshot{
		Checks:    s.Checks - prev.Checks,
		NotFound:  s.NotFound - prev.NotFound,
		Status:    s.Status - prev.Status,
		Timeout:   s.Timeout - prev.Timeout,
		Transport: s.Transport - prev.Transport,
	}
}

type stats struct {
	checks    atomic.Uint64
	notFound  atomic.Uint64
	status    atomic.Uint64
	timeout   atomic.Uint64
	transport atomic.Uint64
}

func (s *stats) record(reason string) {
	switch reason {
	case probe.ReasonNotFound:
		s.notFound.Add(1)
	case probe.ReasonStatus:
		s.status.Add(1)
	case probe.ReasonTimeout:
		s.timeout.Add(1)
	default:
		s.transport.Add(1)
	}
}

func (s *stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Checks:    s.checks.Load(),
		NotFound:  s.notFound.Load(),
		Status:    s.status.Load(),
		Timeout:   s.timeout.Load(),
		Transport: s.transport.Load(),
	}
}
