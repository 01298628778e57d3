package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exports pipeline, AI and feed metrics on the registerer it was
// built with.
type Collector struct {
	IngestOutcomes *prometheus.CounterVec
	SourceOutcomes *prometheus.CounterVec
	AICalls        *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	FeedRequests   *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		IngestOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joyfeed_ingest_entries_total",
				Help: "Feed entries by pipeline outcome",
			},
			[]string{"outcome"},
		),
		SourceOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joyfeed_ingest_sources_total",
				Help: "Feed sources by fetch outcome",
			},
			[]string{"outcome"},
		),
		AICalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joyfeed_ai_calls_total",
				Help: "AI provider calls by provider and result",
			},
			[]string{"provider", "result"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "joyfeed_ingest_run_seconds",
				Help:    "Ingestion run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		FeedRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joyfeed_feed_requests_total",
				Help: "Composed feeds by degraded state",
			},
			[]string{"degraded"},
		),
	}
}

// ObserveAICall implements llm.Observer.
func (c *Collector) ObserveAICall(provider, result string) {
	c.AICalls.WithLabelValues(provider, result).Inc()
}

func (c *Collector) ObserveRun(s Snapshot) {
	for outcome, n := range map[string]int{
		"processed": s.Processed,
		"skipped":   s.Skipped,
		"failed":    s.Failed,
		"blocked":   s.Blocked,
		"invalid":   s.Invalid,
	} {
		c.IngestOutcomes.WithLabelValues(outcome).Add(float64(n))
	}
	c.SourceOutcomes.WithLabelValues("ok").Add(float64(s.SourcesOK))
	c.SourceOutcomes.WithLabelValues("failed").Add(float64(s.SourcesFailed))
	c.RunDuration.Observe(s.Duration.Seconds())
}

func (c *Collector) ObserveFeed(degraded bool) {
	c.FeedRequests.WithLabelValues(strconv.FormatBool(degraded)).Inc()
}
