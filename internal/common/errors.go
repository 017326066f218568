package common

import (
	"errors"
	"net/http"
)

// Error taxonomy shared by every component. Wrap with fmt.Errorf("%w: ...").
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("already exists")
	ErrInternal            = errors.New("internal error")
)

type errorClass struct {
	target error
	status int
	code   int
}

var classes = []errorClass{
	{ErrValidation, http.StatusBadRequest, 10001},
	{ErrConflict, http.StatusBadRequest, 10003},
	{ErrUnauthenticated, http.StatusUnauthorized, 40101},
	{ErrForbidden, http.StatusForbidden, 40301},
	{ErrNotFound, http.StatusNotFound, 40401},
	{ErrRateLimited, http.StatusTooManyRequests, 42901},
	{ErrUpstreamUnavailable, http.StatusServiceUnavailable, 50301},
}

// Classify returns the HTTP status and business code for err.
func Classify(err error) (status int, code int) {
	for _, c := range classes {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, 50001
}
