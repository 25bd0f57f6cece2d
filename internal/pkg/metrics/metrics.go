package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RuntimeExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neria_runtime_executions_total",
		Help: "Runtime executions by terminal status",
	}, []string{"status"})

	RuntimeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neria_runtime_rejections_total",
		Help: "Runtime executions rejected by a guard stage",
	}, []string{"reason"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neria_provider_latency_seconds",
		Help:    "Provider dispatch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider_type"})

	EndpointFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neria_endpoint_fetch_total",
		Help: "Tenant endpoint fetches by result",
	}, []string{"result"})

	ChatRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neria_chat_refusals_total",
		Help: "Chat turns answered with a refusal instead of a model call",
	}, []string{"reason"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neria_http_requests_total",
		Help: "HTTP requests by route template and status code",
	}, []string{"route", "status"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "neria_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
