package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ConcurrentCounters(t *testing.T) {
	r := NewRun("run-1")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Processed()
			r.Skipped()
		}()
	}
	wg.Wait()
	r.Blocked()
	r.Invalid()
	r.Failed()
	r.SourceOK()
	r.SourceFailed()
	r.Finish()

	s := r.Snapshot()
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 50, s.Processed)
	assert.Equal(t, 50, s.Skipped)
	assert.Equal(t, 1, s.Blocked)
	assert.Equal(t, 1, s.Invalid)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.SourcesOK)
	assert.Equal(t, 1, s.SourcesFailed)
	assert.GreaterOrEqual(t, s.Duration, time.Duration(0))
}

func TestStatus(t *testing.T) {
	s := NewStatus()
	assert.True(t, s.Healthy())

	s.SetError("feed timeout")
	assert.False(t, s.Healthy())
	assert.Equal(t, "feed timeout", s.GetStats()["last_error"])

	s.RecordRun(Snapshot{Processed: 3, Skipped: 2, Duration: 2 * time.Second})
	s.RecordRun(Snapshot{Processed: 1, Duration: 4 * time.Second})
	assert.True(t, s.Healthy())

	stats := s.GetStats()
	assert.Equal(t, 4, stats["total_processed"])
	assert.Equal(t, 2, stats["runs"])
	assert.Equal(t, int64(3000), stats["average_processing_time_ms"])
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveAICall("gemini", "ok")
	c.ObserveAICall("gemini", "ok")
	c.ObserveAICall("openai", "error")
	c.ObserveRun(Snapshot{Processed: 4, Blocked: 1, SourcesOK: 2, SourcesFailed: 1, Duration: time.Second})
	c.ObserveFeed(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.AICalls.WithLabelValues("gemini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AICalls.WithLabelValues("openai", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.IngestOutcomes.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IngestOutcomes.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SourceOutcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeedRequests.WithLabelValues("true")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
