package dispatch

import (
	"errors"

	"campaigner/internal/gateway"
)

// RetryPolicy decides whether a failed attempt is retried.
// attempt is the zero-based index of the attempt that just failed.
type RetryPolicy interface {
	ShouldRetry(attempt, maxRetries int, err error) bool
}

// BlanketRetry retries every error, transient or not, until maxRetries
// additional attempts have been made. It is the default policy.
type BlanketRetry struct{}

func (BlanketRetry) ShouldRetry(attempt, maxRetries int, _ error) bool {
	return attempt < maxRetries
}

// PermanentAware behaves like BlanketRetry but gives up immediately on errors
// marked with gateway.Permanent.
type PermanentAware struct{}

func (PermanentAware) ShouldRetry(attempt, maxRetries int, err error) bool {
	if errors.Is(err, gateway.ErrPermanent) {
		return false
	}
	return attempt < maxRetries
}

// PolicyByName resolves the config value of dispatch.retry_policy.
func PolicyByName(name string) (RetryPolicy, bool) {
	switch name {
	case "", "blanket":
		return BlanketRetry{}, true
	case "permanent_aware":
		return PermanentAware{}, true
	default:
		return nil, false
	}
}
