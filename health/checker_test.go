package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_AllPass(t *testing.T) {
	checker := NewChecker()
	checker.Register("first", func() error { return nil })
	checker.Register("second", func() error { return nil })

	results, ready := checker.Run()

	assert.True(t, ready)
	require.Len(t, results, 2)
	for _, name := range []string{"first", "second"} {
		assert.True(t, results[name].IsHealthy())
		assert.Equal(t, "pass", results[name].Message)
	}
}

func TestChecker_FailureMarksNotReady(t *testing.T) {
	checker := NewChecker()
	checker.Register("ok", func() error { return nil })
	checker.Register("broken", func() error { return errors.New("gather failed") })

	results, ready := checker.Run()

	assert.False(t, ready)
	assert.True(t, results["ok"].IsHealthy())
	assert.True(t, results["broken"].IsUnhealthy())
	assert.Equal(t, "fail: gather failed", results["broken"].Message)
}

func TestChecker_FailureMessageSanitized(t *testing.T) {
	checker := NewChecker()
	checker.Register("db", func() error {
		return errors.New("dial 10.0.0.5:5432 refused")
	})

	results, _ := checker.Run()
	assert.Equal(t, "fail: dial [IP][PORT] refused", results["db"].Message)
}

func TestChecker_RegisterReplaces(t *testing.T) {
	checker := NewChecker()
	checker.Register("cache", func() error { return errors.New("boom") })
	checker.Register("cache", func() error { return nil })

	results, ready := checker.Run()

	require.Len(t, results, 1)
	assert.True(t, ready)
	assert.Equal(t, []string{"cache"}, checker.Names())
}

func TestChecker_NamesInRegistrationOrder(t *testing.T) {
	checker := NewChecker()
	checker.Register("c", func() error { return nil })
	checker.Register("a", func() error { return nil })
	checker.Register("b", func() error { return nil })

	assert.Equal(t, []string{"c", "a", "b"}, checker.Names())
}

func TestChecker_EmptyIsReady(t *testing.T) {
	results, ready := NewChecker().Run()

	assert.True(t, ready)
	assert.Empty(t, results)
}
