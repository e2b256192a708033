package marketdata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError_RetryableByCode(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrInvalidSymbol, false},
		{ErrInvalidTimeframe, false},
		{ErrRateLimited, true},
		{ErrNetwork, true},
		{ErrTimeout, true},
		{ErrNoData, false},
		{ErrMalformedResponse, false},
		{ErrCircuitOpen, false},
		{ErrUnknown, false},
	}
	for _, tt := range tests {
		err := NewError(tt.code, "msg", nil)
		assert.Equal(t, tt.retryable, err.Retryable, "code %s", tt.code)
		assert.Equal(t, tt.retryable, IsRetryable(err), "code %s", tt.code)
	}
}

func TestClassify_PreservesClassifiedErrors(t *testing.T) {
	orig := Errorf(ErrRateLimited, "too many requests")
	wrapped := fmt.Errorf("fetching AAPL: %w", orig)

	got := Classify(wrapped)
	assert.Equal(t, ErrRateLimited, got.Code)
	assert.True(t, got.Retryable)
}

func TestClassify_UnknownErrors(t *testing.T) {
	got := Classify(errors.New("something odd"))
	assert.Equal(t, ErrUnknown, got.Code)
	assert.False(t, got.Retryable)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrNetwork, "upstream unreachable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "NETWORK_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrTimeout, CodeOf(Errorf(ErrTimeout, "slow")))
	assert.Equal(t, ErrUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
