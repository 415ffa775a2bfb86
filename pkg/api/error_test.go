package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(CodeAgentNotFound, "no agent abc")

	assert.Equal(t, "agent.not_found: no agent abc", err.Error())
	assert.Equal(t, CodeAgentNotFound, err.Code)
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(CodeRecoveryStoreUnavailable, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeRecoveryStoreUnavailable, err.Code)

	assert.Nil(t, WrapError(CodeToolExecution, nil))
}

func TestCodeOf(t *testing.T) {
	inner := NewError(CodeSessionCleared, "cleared")
	wrapped := fmt.Errorf("coordinate: %w", inner)

	assert.Equal(t, CodeSessionCleared, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestAsError(t *testing.T) {
	t.Run("coded errors keep their code", func(t *testing.T) {
		inner := NewError(CodeToolTimeout, "deadline")
		wrapped := fmt.Errorf("invoke: %w", inner)

		converted := AsError(wrapped, CodeFrameworkExecution)
		assert.Equal(t, CodeToolTimeout, converted.Code)
	})

	t.Run("plain errors get the fallback", func(t *testing.T) {
		converted := AsError(errors.New("boom"), CodeFrameworkExecution)
		assert.Equal(t, CodeFrameworkExecution, converted.Code)
		assert.Equal(t, "boom", converted.Message)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsError(nil, CodeFrameworkExecution))
	})
}

func TestErrorDetails(t *testing.T) {
	err := NewError(CodeToolUnauthorized, "denied").
		WithDetail("tool", "search").
		WithSource("registry").
		WithRetriable(false)

	assert.Equal(t, "search", err.Details["tool"])
	assert.Equal(t, "registry", err.Source)
	assert.False(t, err.Retriable)
}
