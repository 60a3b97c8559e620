package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound EventSub requests by outcome
// (challenge, stream_online, ignored, invalid_event, duplicate, revocation, authentication, malformed).
type WebhookMetrics struct {
	Requests *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Total number of EventSub webhook requests, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Requests)
	return m
}

// PollerMetrics tracks the clip poll loop.
type PollerMetrics struct {
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	ClipsSeen     *prometheus.CounterVec
	CacheSize     prometheus.Gauge
}

func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clip_poller",
			Name:      "cycles_total",
			Help:      "Total number of clip poll cycles, by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clip_poller",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of clip poll cycles in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ClipsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clip_poller",
			Name:      "clips_total",
			Help:      "Total number of fetched clips, by dedup status (new, seen).",
		}, []string{"status"}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clip_poller",
			Name:      "cache_size",
			Help:      "Number of clip ids in the dedup cache after the last cycle.",
		}),
	}

	reg.MustRegister(m.Cycles, m.CycleDuration, m.ClipsSeen, m.CacheSize)
	return m
}

// NotifierMetrics counts outbound announcements.
type NotifierMetrics struct {
	Sent       *prometheus.CounterVec
	Enrichment *prometheus.CounterVec
}

func NewNotifierMetrics(reg prometheus.Registerer) *NotifierMetrics {
	m := &NotifierMetrics{
		Sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "messages_total",
			Help:      "Total number of outbound announcements, by kind (stream, clip) and result.",
		}, []string{"kind", "result"}),
		Enrichment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "enrichment_total",
			Help:      "Total number of announcement enrichment attempts, by result (generated, rate_limited, fallback).",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Sent, m.Enrichment)
	return m
}
