package registry

import (
	"errors"
	"fmt"
)

// ErrorCategory normalises registry failures.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "outage"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorUnexpected     ErrorCategory = "unexpected_status"
)

// LookupError is returned for every registry failure except 404, which is a
// successful negative lookup.
type LookupError struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
	Underlying error
}

func (e *LookupError) Error() string {
	msg := fmt.Sprintf("registry [%s]", e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Underlying }

// GetCategory extracts the category, or "" for errors not raised by the client.
func GetCategory(err error) ErrorCategory {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// StatusCode extracts the HTTP status of a failed lookup, or 0 when no response
// was received.
func StatusCode(err error) int {
	var le *LookupError
	if errors.As(err, &le) {
		return le.StatusCode
	}
	return 0
}

func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == 401 || status == 403:
		return ErrorAuthentication
	case status == 429:
		return ErrorRateLimited
	case status >= 500:
		return ErrorOutage
	default:
		return ErrorUnexpected
	}
}
