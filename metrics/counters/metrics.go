package counters

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gateway",
	Name:      "calls_total",
	Help:      "Total number of gateway calls by operation and outcome.",
}, []string{"operation", "outcome"})

var gatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "gateway",
	Name:      "call_duration_seconds",
	Help:      "Gateway call latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var gatewayResponseCodes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gateway",
	Name:      "response_code_count",
	Help:      "Total number of gateway responses by response code.",
}, []string{"operation", "code"})

var flowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "billing",
	Name:      "flow_count",
	Help:      "Total number of orchestrated flows by final state.",
}, []string{"flow", "state"})

var inboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "server",
	Name:      "requests_total",
	Help:      "Total number of inbound requests by route and status.",
}, []string{"route", "status"})

// ObserveGatewayCall records one outbound call; outcome is "ok", "declined" or an error kind
func ObserveGatewayCall(operation, outcome string, elapsed time.Duration) {
	if len(operation) == 0 {
		return
	}
	gatewayCalls.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
	gatewayLatency.With(prometheus.Labels{"operation": operation}).Observe(elapsed.Seconds())
}

func ObserveResponseCode(operation, code string) {
	if len(operation) == 0 || len(code) == 0 {
		return
	}
	gatewayResponseCodes.With(prometheus.Labels{"operation": operation, "code": code}).Inc()
}

func CountFlow(flow, state string) {
	if len(flow) == 0 || len(state) == 0 {
		return
	}
	flowOutcomes.With(prometheus.Labels{"flow": flow, "state": state}).Inc()
}

func CountRequest(route, status string) {
	if len(route) == 0 {
		return
	}
	inboundRequests.With(prometheus.Labels{"route": route, "status": status}).Inc()
}
