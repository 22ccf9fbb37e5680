// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests.
	// Labels: route (mux pattern), status (status class: 2xx, 4xx, ...)
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status class",
	}, []string{"route", "status"})

	// HTTPDuration measures request latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lineage",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route"})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	}, []string{"route"})

	// TreeRejections counts reparent and delete operations refused by the
	// tree rules. Labels: op (reparent, delete), kind (error kind)
	TreeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "tree",
		Name:      "rejections_total",
		Help:      "Tree mutations rejected by validation",
	}, []string{"op", "kind"})

	// MembersDeleted counts members removed by cascade deletes.
	MembersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "tree",
		Name:      "members_deleted_total",
		Help:      "Members removed by cascade deletes",
	})

	// ChallengeOutcomes counts identity challenge results.
	// Labels: outcome (issued, passed, failed, blocked, exhausted)
	ChallengeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "challenge",
		Name:      "outcomes_total",
		Help:      "Identity challenge outcomes",
	}, []string{"outcome"})

	// PushSent counts web push deliveries. Labels: result (sent, gone, error)
	PushSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lineage",
		Subsystem: "push",
		Name:      "notifications_total",
		Help:      "Web push notification deliveries",
	}, []string{"result"})

	// WSClients tracks connected websocket clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lineage",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected websocket clients",
	})
)

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
