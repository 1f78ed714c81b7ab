package consumer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wisefido-vitals/internal/consumer"
)

func TestMetrics_Counters(t *testing.T) {
	m := &consumer.Metrics{StartTime: time.Now()}

	m.IncrementProcessed()
	m.IncrementProcessed()
	m.IncrementSucceeded(10 * time.Millisecond)
	m.IncrementFailed("parse")
	m.IncrementFailed("pipeline")
	m.IncrementFailed("state")
	m.IncrementFailed("cache")
	m.IncrementSkipped()

	snapshot := m.GetSnapshot()
	require.Equal(t, int64(2), snapshot.MessagesProcessed)
	require.Equal(t, int64(1), snapshot.MessagesSucceeded)
	require.Equal(t, int64(4), snapshot.MessagesFailed)
	require.Equal(t, int64(1), snapshot.MessagesSkipped)
	require.Equal(t, int64(1), snapshot.ErrorsParse)
	require.Equal(t, int64(1), snapshot.ErrorsPipeline)
	require.Equal(t, int64(1), snapshot.ErrorsState)
	require.Equal(t, int64(1), snapshot.ErrorsCache)
	require.Equal(t, 10*time.Millisecond, snapshot.TotalProcessingTime)
	require.False(t, snapshot.LastProcessTime.IsZero())
}
