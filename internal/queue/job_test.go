package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoff_MatchesSpecFormula(t *testing.T) {
	// next_run_at = now + base * 2^(attempts_made-1), base = 2000ms.
	assert.Equal(t, 2000*time.Millisecond, NextBackoff(1))
	assert.Equal(t, 4000*time.Millisecond, NextBackoff(2))
	assert.Equal(t, 8000*time.Millisecond, NextBackoff(3))
	assert.Equal(t, 16000*time.Millisecond, NextBackoff(4))
}

func TestNextBackoff_ClampsBelowOne(t *testing.T) {
	assert.Equal(t, NextBackoff(1), NextBackoff(0))
}

func TestPriorityScore_HigherPriorityOrdersFirst(t *testing.T) {
	now := time.Now()
	high := priorityScore(10, now)
	low := priorityScore(1, now)
	assert.Less(t, high, low, "higher priority must sort before lower priority in ascending ZRANGE")
}

func TestPriorityScore_TiesBreakByCreatedAtAscending(t *testing.T) {
	earlier := time.Now()
	later := earlier.Add(time.Second)
	assert.Less(t, priorityScore(5, earlier), priorityScore(5, later))
}

func TestNewJobID_IncludesSourceAndProduct(t *testing.T) {
	id := NewJobID("marketplace_a", "PROD-1")
	assert.Contains(t, id, "marketplace_a")
	assert.Contains(t, id, "PROD-1")
}

func TestNewJobID_IsUniquePerCall(t *testing.T) {
	a := NewJobID("marketplace_a", "PROD-1")
	b := NewJobID("marketplace_a", "PROD-1")
	assert.NotEqual(t, a, b)
}
