package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgredis "github.com/angelmondragon/neurocare-backend/pkg/redis"
)

const localPruneThreshold = 1024

// LocalIdempotencyStore keeps records in process for the drivers that run without Redis.
type LocalIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]localRecord
	now     func() time.Time
}

type localRecord struct {
	value   string
	expires time.Time
}

func NewLocalIdempotencyStore() *LocalIdempotencyStore {
	return &LocalIdempotencyStore{entries: make(map[string]localRecord), now: time.Now}
}

func (s *LocalIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.live(key)
	if !ok {
		return "", pkgredis.ErrNil
	}
	return rec.value, nil
}

func (s *LocalIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = localRecord{value: fmt.Sprint(value), expires: s.now().Add(ttl)}
	return nil
}

func (s *LocalIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	if len(s.entries) >= localPruneThreshold {
		s.prune()
	}
	s.entries[key] = localRecord{value: fmt.Sprint(value), expires: s.now().Add(ttl)}
	return true, nil
}

func (s *LocalIdempotencyStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *LocalIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

// live returns the record at key unless it expired; mu must be held.
func (s *LocalIdempotencyStore) live(key string) (localRecord, bool) {
	rec, ok := s.entries[key]
	if !ok {
		return localRecord{}, false
	}
	if !s.now().Before(rec.expires) {
		delete(s.entries, key)
		return localRecord{}, false
	}
	return rec, true
}

func (s *LocalIdempotencyStore) prune() {
	now := s.now()
	for key, rec := range s.entries {
		if !now.Before(rec.expires) {
			delete(s.entries, key)
		}
	}
}
