package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryDuration records every gorm query latency.
	DatabaseQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeout_database_query_duration_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DatabaseErrors counts failed database queries.
	DatabaseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeout_database_errors_total",
		Help: "Total number of failed database queries",
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache reads by cache name and result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// EventConflicts counts event saves rejected because they overlap another event.
	EventConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeout_event_conflicts_total",
		Help: "Event saves rejected for overlapping an existing event",
	})

	// EventsSaved counts successfully saved events by operation (create or update).
	EventsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_events_saved_total",
		Help: "Events saved by operation",
	}, []string{"operation"})

	// SocialToggles counts like, bookmark and follow toggles by resulting state.
	SocialToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_social_toggles_total",
		Help: "Social toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// FeedLatency records feed assembly time by feed name.
	FeedLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timeout_feed_latency_seconds",
		Help:    "Feed assembly latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timeout_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts realtime events pushed by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped because a client send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeout_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackFeed returns a func that records the feed latency when called (e.g. defer).
func TrackFeed(feed string) func() {
	start := time.Now()
	return func() {
		FeedLatency.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	}
}
