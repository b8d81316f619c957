package binance

import (
	"fmt"
	"time"
)

// ErrorKind classifies API failures for the caller's retry policy
type ErrorKind int

const (
	// KindTransient - network failures, 5xx, partial responses; retried
	KindTransient ErrorKind = iota

	// KindRateLimited - upstream 429/418; caller must respect RetryAfter
	KindRateLimited

	// KindInvalidSymbol - upstream rejected the symbol; permanent
	KindInvalidSymbol

	// KindPermanent - any other non-retryable failure
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "TRANSIENT"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindInvalidSymbol:
		return "INVALID_SYMBOL"
	case KindPermanent:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// Binance error code for an unknown symbol
const codeInvalidSymbol = -1121

// APIError is a classified failure from the exchange
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Code       int    // Binance error code, 0 if absent
	Message    string
	RetryAfter time.Duration // only set for KindRateLimited
	Err        error         // underlying transport error, if any
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("binance: %s: %v", e.Kind, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("binance: %s (status %d, code %d): %s", e.Kind, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt
func (e *APIError) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// IsInvalidSymbol reports whether err is an unknown-symbol rejection
func IsInvalidSymbol(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == KindInvalidSymbol
}

// IsRateLimited reports whether err is an upstream rate-limit response
func IsRateLimited(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == KindRateLimited
}

// classifyStatus maps an HTTP response to an APIError
func classifyStatus(status int, code int, msg string, retryAfter time.Duration) *APIError {
	apiErr := &APIError{StatusCode: status, Code: code, Message: msg}

	switch {
	case code == codeInvalidSymbol:
		apiErr.Kind = KindInvalidSymbol
	case status == 429 || status == 418:
		apiErr.Kind = KindRateLimited
		apiErr.RetryAfter = retryAfter
	case status >= 500:
		apiErr.Kind = KindTransient
	default:
		apiErr.Kind = KindPermanent
	}

	return apiErr
}

// transportError wraps a network-level failure as transient
func transportError(err error) *APIError {
	return &APIError{Kind: KindTransient, Err: err}
}
