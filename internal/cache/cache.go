// Package cache is an advisory response cache: misses and store failures both
// fall through to live computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/metrics"
	"github.com/FrK06/web-rag-original/internal/store"
	"github.com/sirupsen/logrus"
)

type Cache struct {
	kv  store.KV
	log logrus.FieldLogger
}

func New(kv store.KV, log logrus.FieldLogger) *Cache {
	return &Cache{kv: kv, log: log}
}

// Key hashes parts into "{namespace}:{sha256}". Parts are length-prefixed so
// ("ab","c") and ("a","bc") never collide.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.kv == nil {
		return nil, false
	}
	ns := namespaceOf(key)
	v, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNil) {
			c.log.WithError(err).WithField("namespace", ns).Warn("cache: get failed, treating as miss")
			metrics.CacheRequests.WithLabelValues(ns, "error").Inc()
			return nil, false
		}
		metrics.CacheRequests.WithLabelValues(ns, "miss").Inc()
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues(ns, "hit").Inc()
	return []byte(v), true
}

func (c *Cache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if c == nil || c.kv == nil || ttl <= 0 {
		return
	}
	if err := c.kv.Set(ctx, key, string(payload), ttl); err != nil {
		c.log.WithError(err).WithField("namespace", namespaceOf(key)).Warn("cache: put failed")
	}
}

// GetJSON decodes a cached payload into v. Undecodable entries count as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	b, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		c.log.WithError(err).WithField("namespace", namespaceOf(key)).Warn("cache: corrupt entry")
		return false
	}
	return true
}

func (c *Cache) PutJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).Warn("cache: marshal failed")
		return
	}
	c.Put(ctx, key, b, ttl)
}
