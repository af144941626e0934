// README: Prometheus collectors shared by the HTTP layer, ride lifecycle and dispatch.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tripnow"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Ride state transitions by target status and outcome"},
		[]string{"to", "outcome"},
	)

	DispatchOffersSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "dispatch_offers_sent_total", Help: "Ride offers pushed to driver connections",
	})
	DispatchNoCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "dispatch_no_candidates_total", Help: "Dispatch runs that found no reachable driver",
	})
	DispatchJobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "dispatch_jobs_dropped_total", Help: "Dispatch jobs rejected because the queue was full",
	})
	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "dispatch_latency_seconds", Help: "Time from job start to last offer sent",
	})

	ConnectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "connected_clients", Help: "Live push connections by role"},
		[]string{"role"},
	)
)
