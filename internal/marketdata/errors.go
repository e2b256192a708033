package marketdata

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a market-data failure into the shared taxonomy.
// Adapters classify provider-specific failures exactly once, at the
// boundary; everything above consults the code and Retryable flag.
type ErrorCode string

const (
	ErrInvalidSymbol     ErrorCode = "INVALID_SYMBOL"
	ErrInvalidTimeframe  ErrorCode = "INVALID_TIMEFRAME"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrNetwork           ErrorCode = "NETWORK_ERROR"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrNoData            ErrorCode = "NO_DATA_AVAILABLE"
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	ErrUnknown           ErrorCode = "UNKNOWN"
)

// Error is a classified market-data error. It wraps the underlying cause
// so errors.Is/As keep working across layers.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error. Retryability follows the taxonomy:
// only rate limits, network failures and timeouts are worth retrying.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: code == ErrRateLimited || code == ErrNetwork || code == ErrTimeout,
		Cause:     cause,
	}
}

// Errorf creates a classified error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...), nil)
}

// Classify extracts the taxonomy code from err. Unclassified errors map
// to ErrUnknown, which is non-retryable by default.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var mdErr *Error
	if errors.As(err, &mdErr) {
		return mdErr
	}
	return NewError(ErrUnknown, err.Error(), err)
}

// IsRetryable reports whether err is worth retrying against the same source.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// CodeOf returns the taxonomy code for err, or ErrUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Classify(err).Code
}
