package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrap(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "Registry", "RegisterCounter", "register collector")

	require.Error(t, err)
	assert.Equal(t, "Registry.RegisterCounter: register collector failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrap_NilError(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Registry", "Register", "anything"))
	assert.NoError(t, WrapTransient(nil, "Registry", "Register", "anything"))
	assert.NoError(t, WrapInvalid(nil, "Registry", "Register", "anything"))
	assert.NoError(t, WrapFatal(nil, "Registry", "Register", "anything"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Sampler", "Collect", "read proc stats")

			var ce *ClassifiedError
			require.True(t, stderrors.As(err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Sampler", ce.Component)
			assert.Equal(t, "Collect", ce.Operation)
			assert.True(t, stderrors.Is(err, base))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(ErrSamplingFailed))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(stderrors.New("connection timeout")))
	assert.False(t, IsTransient(ErrDuplicateMetric))

	wrapped := WrapTransient(stderrors.New("boom"), "Sampler", "Collect", "sample")
	assert.True(t, IsTransient(wrapped))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(ErrDuplicateMetric))
	assert.True(t, IsInvalid(ErrInvalidDelta))
	assert.True(t, IsInvalid(ErrSerialization))
	assert.True(t, IsInvalid(fmt.Errorf("wrapped: %w", ErrInvalidDelta)))

	wrapped := WrapInvalid(stderrors.New("boom"), "Registry", "Add", "increment")
	assert.True(t, IsInvalid(wrapped))
	assert.False(t, IsTransient(wrapped))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrMissingConfig))

	wrapped := WrapFatal(stderrors.New("boom"), "Server", "Start", "bind port")
	assert.True(t, IsFatal(wrapped))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.Equal(t, ErrorTransient, Classify(ErrSamplingFailed))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidDelta))
	assert.Equal(t, ErrorFatal, Classify(ErrInvalidConfig))

	// Unknown errors default to transient
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("mystery")))
}

func TestClassifiedError_Unwrap(t *testing.T) {
	base := ErrDuplicateMetric
	err := WrapInvalid(base, "Registry", "RegisterGauge", "duplicate check")

	assert.True(t, stderrors.Is(err, ErrDuplicateMetric))
}
