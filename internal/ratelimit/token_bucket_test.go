package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsUpToCapacityThenDenies(t *testing.T) {
	l := New(3)
	t.Cleanup(func() { l.Close() })

	for i := 0; i < 3; i++ {
		res := l.Check("remote-1")
		require.True(t, res.Allowed, "request %d should be allowed", i)
	}
	res := l.Check("remote-1")
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLimiterTracksKeysIndependently(t *testing.T) {
	l := New(1)
	t.Cleanup(func() { l.Close() })

	require.True(t, l.Check("a").Allowed)
	require.True(t, l.Check("b").Allowed)
	assert.False(t, l.Check("a").Allowed)
}

func TestLimiterRefillsOverTime(t *testing.T) {
	l := New(60)
	t.Cleanup(func() { l.Close() })

	require.True(t, l.Check("remote").Allowed)
	for i := 0; i < 59; i++ {
		l.Check("remote")
	}
	assert.False(t, l.Check("remote").Allowed)

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, l.Check("remote").Allowed)
}

func TestLimiterResetRestoresCapacity(t *testing.T) {
	l := New(1)
	t.Cleanup(func() { l.Close() })

	require.True(t, l.Check("remote").Allowed)
	require.False(t, l.Check("remote").Allowed)
	l.Reset("remote")
	assert.True(t, l.Check("remote").Allowed)
}
