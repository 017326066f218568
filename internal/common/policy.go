package common

// FailureMode is what a component does when its backing store is unreachable.
type FailureMode int

const (
	FailOpen FailureMode = iota
	FailClosed
)

func (m FailureMode) String() string {
	if m == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

type Component string

const (
	ComponentRateLimiter       Component = "rate_limiter"
	ComponentResponseCache     Component = "response_cache"
	ComponentCSRF              Component = "csrf"
	ComponentTokenValidation   Component = "token_validation"
	ComponentRefreshIssuance   Component = "refresh_issuance"
	ComponentRefreshFastLookup Component = "refresh_fast_lookup"
	ComponentThreadUpdate      Component = "thread_update"
)

// Policy is the single table of degraded-mode behaviour.
var Policy = map[Component]FailureMode{
	ComponentRateLimiter:       FailOpen,
	ComponentResponseCache:     FailOpen,
	ComponentCSRF:              FailClosed,
	ComponentTokenValidation:   FailClosed,
	ComponentRefreshIssuance:   FailClosed,
	ComponentRefreshFastLookup: FailOpen,
	ComponentThreadUpdate:      FailOpen,
}

// FailsOpen reports whether c tolerates store failures. Unknown components fail closed.
func FailsOpen(c Component) bool {
	m, ok := Policy[c]
	return ok && m == FailOpen
}
