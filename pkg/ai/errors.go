// Package ai provides the error taxonomy and retry settings shared by the
// STT, TTS, LLM and VAD provider implementations.
package ai

import (
	"errors"
	"time"
)

var (
	// ErrRecoverable indicates a temporary provider failure that may
	// succeed if retried: network timeout, rate limit, brief outage.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent provider failure: bad credential,
	// unsupported format, malformed request. Do not retry.
	ErrFatal = errors.New("fatal provider error")
)

// RetryConfig controls backoff for recoverable provider errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig is the retry policy providers use unless overridden.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

// IsRecoverable reports whether err should be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal reports whether err is permanent.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ProviderError wraps an underlying error with its retry classification.
type ProviderError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *ProviderError) Unwrap() error {
	if e.Retryable {
		return ErrRecoverable
	}
	return ErrFatal
}

// NewRecoverableError wraps err as retryable.
func NewRecoverableError(err error, msg string) error {
	return &ProviderError{Underlying: err, Retryable: true, Message: msg}
}

// NewFatalError wraps err as permanent.
func NewFatalError(err error, msg string) error {
	return &ProviderError{Underlying: err, Retryable: false, Message: msg}
}
