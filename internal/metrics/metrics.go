package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DB operation labels
const (
	DBOpCreate = "create"
	DBOpQuery  = "query"
	DBOpUpdate = "update"
	DBOpDelete = "delete"
	DBOpRaw    = "raw"
)

var (
	// HTTPRequestDuration tracks request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillswap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// DBQueryDuration tracks database statement latency in seconds
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillswap_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation", "table", "success"},
	)

	// OrdersCreated counts placed orders
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_orders_created_total",
		Help: "Total number of orders placed",
	})

	// OrderTransitions counts order status changes
	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_order_transitions_total",
			Help: "Total number of order status changes",
		},
		[]string{"from", "to"},
	)

	// MilestoneChanges counts applied milestone operations
	MilestoneChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_milestone_changes_total",
			Help: "Total number of milestone operations applied",
		},
		[]string{"kind"},
	)

	// DeliveriesSubmitted counts submitted deliveries
	DeliveriesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_deliveries_submitted_total",
			Help: "Total number of deliveries submitted",
		},
		[]string{"complete"},
	)

	// ReviewsCreated counts reviews by rating
	ReviewsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_reviews_created_total",
			Help: "Total number of reviews left",
		},
		[]string{"rating"},
	)

	// EventsPublished counts order events by type and outcome
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_events_published_total",
			Help: "Total number of order events published",
		},
		[]string{"type", "status"},
	)

	// CacheLookups counts stats cache hits and misses
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillswap_cache_lookups_total",
			Help: "Stats cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQuery records one database statement
func RecordDBQuery(operation, table string, success bool, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table, boolLabel(success)).Observe(duration.Seconds())
}

// RecordTransition records an order status change
func RecordTransition(from, to string) {
	OrderTransitions.WithLabelValues(from, to).Inc()
}

// RecordEvent records the outcome of publishing an event
func RecordEvent(eventType string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	EventsPublished.WithLabelValues(eventType, status).Inc()
}

// RecordCacheLookup records a stats cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
