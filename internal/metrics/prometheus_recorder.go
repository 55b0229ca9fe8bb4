package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ouinet_shell"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	transitions *prom.CounterVec
	engineCalls *prom.CounterVec
	forwarded   *prom.CounterVec
	dropped     *prom.CounterVec
	assets      *prom.CounterVec
	challenges  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the shell's metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		transitions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Engine lifecycle transitions observed by the controller",
		}, []string{"from", "to"}),
		engineCalls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "engine_calls_total",
			Help:      "Calls made across the engine boundary",
		}, []string{"call"}),
		forwarded: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "signals_forwarded_total",
			Help:      "Host signals relayed into the engine",
		}, []string{"kind"}),
		dropped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dropped_total",
			Help:      "Host signals dropped on backpressure",
		}, []string{"kind"}),
		assets: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "assets_materialized_total",
			Help:      "Bundled asset materializations by result",
		}, []string{"asset", "result"}),
		challenges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "auth_challenges_total",
			Help:      "Injector authentication challenges by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.transitions, pr.engineCalls, pr.forwarded, pr.dropped, pr.assets, pr.challenges)
	return pr
}

func (p *PrometheusRecorder) IncStateTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) IncEngineCall(call string) {
	p.engineCalls.WithLabelValues(call).Inc()
}

func (p *PrometheusRecorder) IncSignalForwarded(kind string) {
	p.forwarded.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncSignalDropped(kind string) {
	p.dropped.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncAssetMaterialized(asset string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.assets.WithLabelValues(asset, result).Inc()
}

func (p *PrometheusRecorder) IncChallenge(outcome string) {
	p.challenges.WithLabelValues(outcome).Inc()
}

// Handler returns an http.Handler that serves metrics for reg.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
