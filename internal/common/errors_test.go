package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad token", ErrUnauthenticated), http.StatusUnauthorized},
		{fmt.Errorf("%w: csrf", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: quota", ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("%w: thread", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: search", ErrUpstreamUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: name", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: email", ErrConflict), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		if status != tc.status {
			t.Fatalf("%v: status=%d want %d", tc.err, status, tc.status)
		}
		if code == 0 {
			t.Fatalf("%v: expected business code", tc.err)
		}
	}
}

func TestPolicy(t *testing.T) {
	if !FailsOpen(ComponentRateLimiter) || !FailsOpen(ComponentResponseCache) {
		t.Fatalf("limiter and cache must fail open")
	}
	if FailsOpen(ComponentCSRF) || FailsOpen(ComponentRefreshIssuance) || FailsOpen(ComponentTokenValidation) {
		t.Fatalf("csrf, refresh issuance and token validation must fail closed")
	}
	if FailsOpen(Component("unknown")) {
		t.Fatalf("unknown components must fail closed")
	}
}

func TestNewULID(t *testing.T) {
	a, err := NewULID()
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	b, _ := NewULID()
	if len(a) != 26 || a == b {
		t.Fatalf("unexpected ulids %q %q", a, b)
	}
}
