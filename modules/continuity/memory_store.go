package continuity

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore - bounded in-process store used when redis is unavailable
type MemoryStore struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore keeps at most size entries; ttl <= 0 disables expiry.
func NewMemoryStore(size int, ttl time.Duration) (*MemoryStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create continuity cache: %w", err)
	}
	return &MemoryStore{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	item := raw.(memoryItem)
	if !item.expiresAt.IsZero() && s.now().After(item.expiresAt) {
		s.cache.Remove(key)
		return nil, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if s.ttl > 0 {
		item.expiresAt = s.now().Add(s.ttl)
	}
	s.cache.Add(key, item)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}
