package artifact

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	artifactrepo "iconresolve/internal/repository/artifact"
)

type Store = artifactrepo.Store

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 64,
	}
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	ListHits       uint64
	ListMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

// Sub returns the counters accumulated between prev and m.
func (m MetricsSnapshot) Sub(prev MetricsSnapshot) MetricsSnapshot {
	return MetricsSnapshot{
		BlobHits:       m.BlobHits - prev.BlobHits,
		BlobMisses:     m.BlobMisses - prev.BlobMisses,
		ListHits:       m.ListHits - prev.ListHits,
		ListMisses:     m.ListMisses - prev.ListMisses,
		OriginReads:    m.OriginReads - prev.OriginReads,
		OriginWrites:   m.OriginWrites - prev.OriginWrites,
		OriginReadErr:  m.OriginReadErr - prev.OriginReadErr,
		OriginWriteErr: m.OriginWriteErr - prev.OriginWriteErr,
	}
}

type Metrics struct {
	blobHits       atomic.Uint64
	blobMisses     atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:       m.blobHits.Load(),
		BlobMisses:     m.blobMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through / write-through cache in front of a Store.
type CachedStore struct {
	origin Store

	blobCache *expirable.LRU[string, []byte]
	listCache *expirable.LRU[string, []string]
	metrics   Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}

	return &CachedStore{
		origin:    origin,
		blobCache: expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		listCache: expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, namespace, path string, content []byte) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, namespace, path, content); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}

	s.blobCache.Add(artifactKey(namespace, path), append([]byte(nil), content...))
	s.listCache.Remove(strings.TrimSpace(namespace))
	return nil
}

func (s *CachedStore) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	key := artifactKey(namespace, path)
	if raw, ok := s.blobCache.Get(key); ok {
		s.metrics.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.metrics.blobMisses.Add(1)
	s.metrics.originReads.Add(1)

	raw, err := s.origin.Get(ctx, namespace, path)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	copied := append([]byte(nil), raw...)
	s.blobCache.Add(key, copied)
	return append([]byte(nil), copied...), nil
}

func (s *CachedStore) List(ctx context.Context, namespace string) ([]string, error) {
	namespace = strings.TrimSpace(namespace)
	if list, ok := s.listCache.Get(namespace); ok {
		s.metrics.listHits.Add(1)
		return append([]string(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	list, err := s.origin.List(ctx, namespace)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	copied := append([]string(nil), list...)
	s.listCache.Add(namespace, copied)
	return append([]string(nil), copied...), nil
}

func artifactKey(namespace, path string) string {
	return strings.TrimSpace(namespace) + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
