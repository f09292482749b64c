package verification

import (
	"errors"
	"fmt"
	"time"
)

// InvalidGTINError reports input that cannot be normalised to a GTIN.
type InvalidGTINError struct {
	Raw    string
	Digits int
}

func (e *InvalidGTINError) Error() string {
	return fmt.Sprintf("invalid gtin %q: %d digits, want 8, 12, 13 or 14", e.Raw, e.Digits)
}

// ExternalServiceError reports a registry failure: a non-2xx, non-404 response or a
// transport error. StatusCode is zero when no response was received.
type ExternalServiceError struct {
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gtin registry returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gtin registry unavailable: %v", e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// RateLimitExceededError is returned without contacting the registry when the
// outbound quota is exhausted.
type RateLimitExceededError struct {
	Limit   int
	ResetAt time.Time
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("gtin registry rate limit of %d exceeded, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

// CircuitOpenError is returned while the registry circuit breaker is open.
type CircuitOpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %s open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

// IsUnavailable reports whether err means verification could not be performed
// right now (circuit open, rate limited or registry failure), as opposed to bad
// input.
func IsUnavailable(err error) bool {
	var (
		circuitErr  *CircuitOpenError
		rateErr     *RateLimitExceededError
		externalErr *ExternalServiceError
	)
	return errors.As(err, &circuitErr) || errors.As(err, &rateErr) || errors.As(err, &externalErr)
}
