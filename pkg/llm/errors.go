package llm

import (
	"fmt"
	"time"
)

// ErrorKind classifies a provider call failure. Kinds map one-to-one onto
// the retry policy: network, timeout and rate-limit failures are retryable,
// everything else propagates immediately.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindParse     ErrorKind = "parse"
	KindCancelled ErrorKind = "cancelled"
	KindUnknown   ErrorKind = "unknown"
)

// APIError is the normalized error surfaced for every failed provider call.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	cause      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s (%s, status %d)", e.Message, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("llm: %s (%s)", e.Message, e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.cause
}

// Retryable reports whether the retry policy may re-attempt after this error.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}
