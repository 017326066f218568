// Package memstore is an in-process store.KV for single-instance development.
package memstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/FrK06/web-rag-original/internal/store"
	gocache "github.com/patrickmn/go-cache"
)

type Store struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func New(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Store{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", store.ErrNil
	}
	return v.(string), nil
}

// Set shares the lock with Incr and Expire so it cannot land inside their
// read-modify-write.
func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Set(key, value, expiration(ttl))
	return nil
}

func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		s.c.Set(key, "1", gocache.NoExpiration)
		return 1, nil
	}
	n, err := strconv.ParseInt(v.(string), 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			// expired between the read and now: start over
			s.c.Set(key, "1", gocache.NoExpiration)
			return 1, nil
		}
	}
	s.c.Set(key, strconv.FormatInt(n, 10), ttl)
	return n, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.c.Get(key)
	if !ok {
		return nil
	}
	s.c.Set(key, v, expiration(ttl))
	return nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	_, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return -2, nil
	}
	if exp.IsZero() {
		return -1, nil
	}
	return time.Until(exp), nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.c.Delete(k)
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

var _ store.KV = (*Store)(nil)
