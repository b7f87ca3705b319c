package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderCalls counts outbound calls to the provider by endpoint and outcome.
var ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "frontdoor_provider_calls_total",
	Help: "Number of outbound provider calls by endpoint and outcome",
}, []string{"endpoint", "outcome"})

var ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "frontdoor_provider_call_duration_seconds",
	Help:    "Latency of outbound provider calls",
	Buckets: prometheus.DefBuckets,
}, []string{"endpoint"})

var CallbacksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "frontdoor_callbacks_total",
	Help: "Number of OAuth callbacks by result",
}, []string{"result"})

// FrontDoorURLs counts derived front door URLs. kind is "exchange" or "fallback".
var FrontDoorURLs = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "frontdoor_urls_total",
	Help: "Number of front door URLs handed out by kind",
}, []string{"kind"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "frontdoor_http_requests_total",
	Help: "Number of HTTP requests served by route and status code",
}, []string{"route", "code"})
