package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePopOrder(t *testing.T) {
	q := NewQueue(10)

	require.NoError(t, q.Push(New(KindSelfDev, 30, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 10, Payload{})))
	require.NoError(t, q.Push(New(KindDailyReset, 20, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 20, Payload{})))

	// Time first, then priority at the same minute.
	assert.Equal(t, KindPublishPost, q.Pop().Kind)
	e := q.Pop()
	assert.Equal(t, KindDailyReset, e.Kind)
	assert.Equal(t, 20.0, e.Timestamp)
	assert.Equal(t, KindPublishPost, q.Pop().Kind)
	assert.Equal(t, KindSelfDev, q.Pop().Kind)
	assert.Nil(t, q.Pop())
}

func TestQueueSameTimestampInsertionOrder(t *testing.T) {
	q := NewQueue(10)
	first := New(KindPublishPost, 5, Payload{})
	second := New(KindPublishPost, 5, Payload{})
	require.NoError(t, q.Push(first))
	require.NoError(t, q.Push(second))

	assert.Equal(t, first.ID, q.Pop().ID)
	assert.Equal(t, second.ID, q.Pop().ID)
}

func TestQueueOverflowRejectsWorseEvent(t *testing.T) {
	q := NewQueue(3)
	require.NoError(t, q.Push(New(KindPublishPost, 1, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 2, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 3, Payload{})))

	// Same priority, later timestamp: not strictly better, refused.
	err := q.Push(New(KindPublishPost, 4, Payload{}))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 3, q.Len())
}

func TestQueueOverflowEvictsWorstForBetterEvent(t *testing.T) {
	q := NewQueue(3)
	require.NoError(t, q.Push(New(KindPublishPost, 10, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 20, Payload{})))
	require.NoError(t, q.Push(New(KindPublishPost, 30, Payload{})))

	// Earlier timestamp at equal priority is strictly better: the latest
	// pending event gives way.
	require.NoError(t, q.Push(New(KindPublishPost, 5, Payload{})))
	assert.Equal(t, 3, q.Len())

	var stamps []float64
	for e := q.Pop(); e != nil; e = q.Pop() {
		stamps = append(stamps, e.Timestamp)
	}
	assert.Equal(t, []float64{5, 10, 20}, stamps)
}

func TestQueueSystemEventsNeverEvicted(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(New(KindDailyReset, 100, Payload{})))
	require.NoError(t, q.Push(New(KindEnergyRecovery, 200, Payload{})))

	// Only system events present: nothing evictable, even for a system
	// newcomer.
	assert.ErrorIs(t, q.Push(New(KindSaveDailyTrend, 1, Payload{})), ErrQueueFull)
	assert.ErrorIs(t, q.Push(New(KindPublishPost, 1, Payload{})), ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestQueueSystemNewcomerEvictsAgentAction(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Push(New(KindPublishPost, 10, Payload{})))
	require.NoError(t, q.Push(New(KindDailyReset, 1440, Payload{})))

	require.NoError(t, q.Push(New(KindWeather, 2000, Payload{})))
	assert.Equal(t, 2, q.Len())

	kinds := []Kind{q.Pop().Kind, q.Pop().Kind}
	assert.NotContains(t, kinds, KindPublishPost)
}

func TestQueueCapacityNeverExceeded(t *testing.T) {
	q := NewQueue(5)
	for i := 0; i < 50; i++ {
		_ = q.Push(New(KindPublishPost, float64(i), Payload{}))
		assert.LessOrEqual(t, q.Len(), 5)
	}
}

func TestKindPriorities(t *testing.T) {
	assert.Equal(t, PrioritySystem, KindDailyReset.Priority())
	assert.Equal(t, PrioritySystem, KindLaw.Priority())
	assert.Equal(t, PriorityAgentAction, KindPublishPost.Priority())
	assert.Equal(t, PriorityAgentAction, KindTrendInfluence.Priority())
	assert.True(t, KindWeather.System())
	assert.False(t, KindSelfDev.System())
}

func TestPurchaseKindRoundTrip(t *testing.T) {
	for level := 1; level <= 3; level++ {
		assert.Equal(t, level, PurchaseKind(level).PurchaseLevel())
	}
	assert.Equal(t, 0, KindPublishPost.PurchaseLevel())
}
