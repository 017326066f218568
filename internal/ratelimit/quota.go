package ratelimit

import (
	"context"
	"fmt"

	"github.com/FrK06/web-rag-original/internal/common"
)

// Admitter is satisfied by *Limiter.
type Admitter interface {
	Admit(ctx context.Context, rule Rule, identity string) bool
}

// GlobalIdentity is the identity used for service-wide outbound quotas.
const GlobalIdentity = "global"

// Enforce returns common.ErrRateLimited when any of the rules refuses identity.
// Rules are checked in order and a refusal stops the walk.
func Enforce(ctx context.Context, a Admitter, identity string, rules ...Rule) error {
	if a == nil {
		return nil
	}
	for _, r := range rules {
		if !a.Admit(ctx, r, identity) {
			return fmt.Errorf("%w: %s", common.ErrRateLimited, r.Scope)
		}
	}
	return nil
}
