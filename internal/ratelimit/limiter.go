// Package ratelimit implements fixed-window admission counters and identity
// blocks over a shared store.KV.
//
// Admission is check-then-increment and not atomic: concurrent callers may
// overshoot a limit by a few requests. A transactional increment-and-compare
// (a Lua script on redis) is the upgrade path if strict quotas are needed.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/metrics"
	"github.com/FrK06/web-rag-original/internal/store"
	"github.com/sirupsen/logrus"
)

// Rule describes one counter scope.
type Rule struct {
	Scope  string
	Limit  int
	Window time.Duration

	// BlockThreshold > 0 makes the scope login-like: refused attempts are still
	// counted and reaching the threshold blocks the identity for BlockTTL.
	BlockThreshold int
	BlockTTL       time.Duration
}

type Limiter struct {
	kv      store.KV
	log     logrus.FieldLogger
	timeout time.Duration
}

func New(kv store.KV, log logrus.FieldLogger, timeout time.Duration) *Limiter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Limiter{kv: kv, log: log, timeout: timeout}
}

func CounterKey(identity, scope string) string { return "rate:" + identity + ":" + scope }

func BlockKey(identity string) string { return "block:" + identity }

// Admit reports whether one more request for identity fits in rule.
func (l *Limiter) Admit(ctx context.Context, rule Rule, identity string) bool {
	if rule.Limit <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := CounterKey(identity, rule.Scope)

	if _, err := l.kv.Get(ctx, BlockKey(identity)); err == nil {
		l.refuse(rule, identity, "blocked")
		return false
	} else if !errors.Is(err, store.ErrNil) {
		return l.degraded(rule, identity, err)
	}

	count, err := l.count(ctx, key)
	if err != nil {
		return l.degraded(rule, identity, err)
	}

	if count >= int64(rule.Limit) {
		if rule.BlockThreshold > 0 {
			n, err := l.incr(ctx, key, rule.Window)
			if err == nil && n >= int64(rule.BlockThreshold) {
				if err := l.kv.Set(ctx, BlockKey(identity), strconv.FormatInt(n, 10), rule.BlockTTL); err != nil {
					l.log.WithError(err).WithField("identity", identity).Warn("ratelimit: failed to write block entry")
				} else {
					l.log.WithFields(logrus.Fields{"identity": identity, "scope": rule.Scope, "attempts": n}).
						Warn("ratelimit: identity blocked")
				}
			}
		}
		l.refuse(rule, identity, "limit")
		return false
	}

	if _, err := l.incr(ctx, key, rule.Window); err != nil {
		return l.degraded(rule, identity, err)
	}
	return true
}

// Usage returns the current count for identity in rule's scope.
func (l *Limiter) Usage(ctx context.Context, rule Rule, identity string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.count(ctx, CounterKey(identity, rule.Scope))
}

func (l *Limiter) count(ctx context.Context, key string) (int64, error) {
	v, err := l.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (l *Limiter) incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := l.kv.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if n == 1 {
		return n, l.kv.Expire(ctx, key, window)
	}
	// repair a counter that lost its expiry to a race on the first increment
	ttl, err := l.kv.TTL(ctx, key)
	if err == nil && ttl < 0 {
		err = l.kv.Expire(ctx, key, window)
	}
	return n, err
}

func (l *Limiter) refuse(rule Rule, identity, reason string) {
	metrics.RateLimitRefusals.WithLabelValues(rule.Scope).Inc()
	l.log.WithFields(logrus.Fields{"identity": identity, "scope": rule.Scope, "reason": reason}).
		Info("ratelimit: refused")
}

func (l *Limiter) degraded(rule Rule, identity string, err error) bool {
	metrics.RateLimitStoreErrors.Inc()
	open := common.FailsOpen(common.ComponentRateLimiter)
	l.log.WithError(err).WithFields(logrus.Fields{
		"identity": identity,
		"scope":    rule.Scope,
		"policy":   common.Policy[common.ComponentRateLimiter].String(),
	}).Warn("ratelimit: counter store unavailable")
	return open
}
