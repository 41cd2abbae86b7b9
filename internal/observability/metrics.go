package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// IdentityLookups counts identity provider lookups by source (cache, remote) and outcome.
	IdentityLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_identity_lookups_total",
		Help: "Identity provider lookups by source and outcome",
	}, []string{"source", "outcome"})

	// IdentityLookupLatency records remote identity provider call latency.
	IdentityLookupLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cookiegram_identity_lookup_latency_seconds",
		Help:    "Identity provider request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// EnrichmentDrops counts records left out of best-effort responses because a lookup failed.
	EnrichmentDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_enrichment_drops_total",
		Help: "Records dropped from best-effort responses after an identity lookup failure",
	}, []string{"resource"})

	// MediaUploads counts image uploads by backend and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_media_uploads_total",
		Help: "Image uploads by storage backend and outcome",
	}, []string{"backend", "outcome"})

	// DomainEvents counts published domain events by type and sink.
	DomainEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_domain_events_total",
		Help: "Domain events published by type and sink",
	}, []string{"event_type", "sink"})

	// WebSocketConnectionsTotal is the gauge of active notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cookiegram_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cookiegram_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
