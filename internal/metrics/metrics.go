package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters exported on /metrics.
type Metrics struct {
	BridgeDecisions      *prometheus.CounterVec
	GatewayResults       *prometheus.CounterVec
	ProvisioningFailures prometheus.Counter
	ProvisioningCreated  prometheus.Counter
	RateLimitRejected    *prometheus.CounterVec
}

// New registers the counters on reg. Tests pass a fresh prometheus.NewRegistry()
// so repeated construction does not panic on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BridgeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_bridge_decisions_total",
			Help: "Route admission decisions made by the session bridge.",
		}, []string{"class", "action"}),
		GatewayResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_gateway_results_total",
			Help: "Credential gateway operations by outcome.",
		}, []string{"op", "outcome"}),
		ProvisioningFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_provisioning_failures_total",
			Help: "Account rows that could not be created for a verified user.",
		}),
		ProvisioningCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed_provisioning_created_total",
			Help: "Account rows created for verified users.",
		}),
		RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_rate_limit_rejected_total",
			Help: "Auth form submissions rejected by the rate limiter.",
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.BridgeDecisions, m.GatewayResults, m.ProvisioningFailures, m.ProvisioningCreated, m.RateLimitRejected)
	}
	return m
}

// Discard returns unregistered counters for callers that do not export metrics.
func Discard() *Metrics {
	return New(nil)
}
