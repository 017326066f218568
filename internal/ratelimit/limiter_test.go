package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/logger"
	"github.com/FrK06/web-rag-original/internal/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(redisstore.Wrap(rdb), logger.Discard(), time.Second), mr
}

func TestAdmit_BoundaryAndWindowReset(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Scope: "register", Limit: 3, Window: 15 * time.Minute}

	for i := 0; i < 3; i++ {
		require.True(t, l.Admit(ctx, rule, "10.0.0.1"), "call %d should be admitted", i+1)
	}
	require.False(t, l.Admit(ctx, rule, "10.0.0.1"), "call N+1 must be refused")
	require.False(t, l.Admit(ctx, rule, "10.0.0.1"))

	// other identities are independent
	require.True(t, l.Admit(ctx, rule, "10.0.0.2"))

	mr.FastForward(16 * time.Minute)
	require.True(t, l.Admit(ctx, rule, "10.0.0.1"), "window must reset after expiry")
}

func TestAdmit_SetsWindowOnFirstIncrement(t *testing.T) {
	l, mr := newTestLimiter(t)
	rule := Rule{Scope: "chat", Limit: 10, Window: time.Minute}

	require.True(t, l.Admit(context.Background(), rule, "u1"))
	ttl := mr.TTL(CounterKey("u1", "chat"))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestAdmit_RepairsCounterWithoutExpiry(t *testing.T) {
	l, mr := newTestLimiter(t)
	rule := Rule{Scope: "chat", Limit: 10, Window: time.Minute}

	// a counter left behind without TTL
	require.NoError(t, mr.Set(CounterKey("u1", "chat"), "2"))

	require.True(t, l.Admit(context.Background(), rule, "u1"))
	assert.Greater(t, mr.TTL(CounterKey("u1", "chat")), time.Duration(0))
}

func TestAdmit_LoginBlock(t *testing.T) {
	l, mr := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Scope: "login", Limit: 5, Window: 15 * time.Minute, BlockThreshold: 10, BlockTTL: 15 * time.Minute}
	other := Rule{Scope: "chat", Limit: 100, Window: 15 * time.Minute}

	admitted := 0
	for i := 0; i < 10; i++ {
		if l.Admit(ctx, rule, "1.1.1.1") {
			admitted++
		}
	}
	require.Equal(t, 5, admitted)
	require.True(t, mr.Exists(BlockKey("1.1.1.1")), "threshold must write a block entry")

	// the block overrides every scope for the identity
	require.False(t, l.Admit(ctx, other, "1.1.1.1"))

	mr.FastForward(16 * time.Minute)
	require.True(t, l.Admit(ctx, other, "1.1.1.1"))
	require.True(t, l.Admit(ctx, rule, "1.1.1.1"))
}

type brokenKV struct{}

var errDown = errors.New("connection refused")

func (brokenKV) Get(context.Context, string) (string, error)              { return "", errDown }
func (brokenKV) Set(context.Context, string, string, time.Duration) error { return errDown }
func (brokenKV) Incr(context.Context, string) (int64, error)              { return 0, errDown }
func (brokenKV) Expire(context.Context, string, time.Duration) error      { return errDown }
func (brokenKV) TTL(context.Context, string) (time.Duration, error)       { return 0, errDown }
func (brokenKV) Del(context.Context, ...string) error                     { return errDown }
func (brokenKV) Ping(context.Context) error                               { return errDown }

func TestAdmit_FailsOpen(t *testing.T) {
	l := New(brokenKV{}, logger.Discard(), time.Second)
	rule := Rule{Scope: "login", Limit: 1, Window: time.Minute}
	for i := 0; i < 5; i++ {
		require.True(t, l.Admit(context.Background(), rule, "x"))
	}
}

func TestEnforce(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Scope: "sms", Limit: 1, Window: time.Hour}

	require.NoError(t, Enforce(ctx, l, GlobalIdentity, rule))
	err := Enforce(ctx, l, GlobalIdentity, rule)
	require.ErrorIs(t, err, common.ErrRateLimited)
	require.NoError(t, Enforce(ctx, nil, GlobalIdentity, rule))
}
