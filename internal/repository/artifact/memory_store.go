package artifact

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, namespace, path string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	namespace, path, err := normalize(namespace, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(namespace, path)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, namespace, path string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	namespace, path, err := normalize(namespace, path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(namespace, path)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, namespace string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	prefix := namespace + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(out)
	return out, nil
}
