package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockKey_NamespacesByProductID(t *testing.T) {
	assert.Equal(t, "lock:inventory:PROD-1", lockKey("PROD-1"))
	assert.NotEqual(t, lockKey("PROD-1"), lockKey("PROD-2"))
}

func TestRandomNonce_IsUniquePerCall(t *testing.T) {
	a, err := randomNonce()
	assert.NoError(t, err)
	b, err := randomNonce()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32) // 16 bytes hex-encoded
}

func TestJitter_BoundedByMax(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := jitter(100 * time.Millisecond)
		assert.True(t, j >= 0 && j < 100*time.Millisecond)
	}
}

func TestJitter_ZeroMaxIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), jitter(0))
}

func TestDefaultOptions_MatchSpecDefaults(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, 10*time.Second, o.TTL)
	assert.Equal(t, 5, o.Retries)
	assert.Equal(t, 200*time.Millisecond, o.RetryDelay)
	assert.Equal(t, 0.01, o.DriftFactor)
	assert.Equal(t, 500*time.Millisecond, o.ExtensionThreshold)
}
