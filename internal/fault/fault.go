// Package fault defines the closed error taxonomy for provider failures and
// the classifier that maps raw errors onto it.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind is the closed set of failure classes surfaced to callers.
type Kind string

const (
	Unauthenticated  Kind = "unauthenticated"
	RateLimited      Kind = "rate_limited"
	ConnectionFailed Kind = "connection_failed"
	InvalidRequest   Kind = "invalid_request"
	ProviderError    Kind = "provider_error"
	Unknown          Kind = "unknown"
)

// Retryable reports whether the caller may reasonably try again. This is a
// suggestion for the UI boundary; nothing in the gateway auto-retries.
func (k Kind) Retryable() bool {
	return k == RateLimited || k == ConnectionFailed
}

// APIError is a non-2xx response from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Classify maps a raw provider error to a Kind. It is total and
// deterministic: every non-nil error, including foreign error types and
// broken wrapping chains, lands on exactly one Kind. A nil error carries
// no failure to classify and reports Unknown; callers on a success path
// should not call Classify at all.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ConnectionFailed
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ConnectionFailed
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ConnectionFailed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "eof"):
		return ConnectionFailed
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "authentication"):
		return Unauthenticated
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		return RateLimited
	case strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "bad request"),
		strings.Contains(msg, "malformed"):
		return InvalidRequest
	}

	return Unknown
}

func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return Unauthenticated
	case status == 429:
		return RateLimited
	case status >= 400 && status < 500:
		return InvalidRequest
	case status >= 500 && status < 600:
		return ProviderError
	default:
		return Unknown
	}
}
