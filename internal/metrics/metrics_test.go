package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()

	m.IncrementCounter(ComplaintsCreated)
	m.IncrementCounter(ComplaintsCreated)
	m.IncrementCounter(ComplaintsIncremented)
	m.SetGauge(ComplaintRows, 7)

	counters := m.GetCounters()
	require.Equal(t, int64(2), counters[ComplaintsCreated])
	require.Equal(t, int64(1), counters[ComplaintsIncremented])
	require.Equal(t, int64(7), m.GetGauges()[ComplaintRows])
}

func TestTimerAverages(t *testing.T) {
	m := NewMetrics()

	m.RecordTimer("ingest", 10)
	m.RecordTimer("ingest", 30)

	timers := m.GetTimers()
	require.Equal(t, int64(2), timers["ingest"].Count)
	require.Equal(t, int64(40), timers["ingest"].TotalTimeMs)
	require.Equal(t, 20.0, timers["ingest"].AverageTimeMs)
}

func TestHealthChecks(t *testing.T) {
	m := NewMetrics()

	m.SetHealth("database", true)
	m.SetHealth("redis", false)

	checks := m.GetHealthChecks()
	require.True(t, checks["database"])
	require.False(t, checks["redis"])
}

func TestConcurrentIncrements(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter(ComplaintSubmissions)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(50), m.GetCounters()[ComplaintSubmissions])
}
