package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	fetchDuration  *prom.HistogramVec
	fetchResults   *prom.CounterVec
	fetchRetries   *prom.CounterVec
	cacheLookups   *prom.CounterVec
	classification *prom.CounterVec
	builders       *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the bbreport metrics on reg.
// A nil registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bbreport",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of calls to the remote status service",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		fetchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bbreport",
			Name:      "fetch_results_total",
			Help:      "Remote fetches by kind and outcome",
		}, []string{"kind", "result"}),
		fetchRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bbreport",
			Name:      "fetch_retries_total",
			Help:      "Retried remote fetches after transient failures",
		}, []string{"kind"}),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bbreport",
			Name:      "cache_lookups_total",
			Help:      "Build lookups against the reconciliation cache",
		}, []string{"result"}),
		classification: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bbreport",
			Name:      "classified_builds_total",
			Help:      "Builds classified from remote data by result",
		}, []string{"result"}),
		builders: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "bbreport",
			Name:      "builders",
			Help:      "Builders by aggregate status after the last refresh",
		}, []string{"status"}),
	}
	reg.MustRegister(pr.fetchDuration, pr.fetchResults, pr.fetchRetries, pr.cacheLookups, pr.classification, pr.builders)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveFetch(kind FetchKind, d time.Duration, ok bool) {
	if p == nil {
		return
	}
	res := "failed"
	if ok {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
	p.fetchResults.WithLabelValues(string(kind), res).Inc()
}

func (p *PrometheusRecorder) IncFetchRetry(kind FetchKind) {
	if p == nil {
		return
	}
	p.fetchRetries.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusRecorder) IncCacheLookup(hit bool) {
	if p == nil {
		return
	}
	res := "miss"
	if hit {
		res = "hit"
	}
	p.cacheLookups.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) IncClassification(result string) {
	if p == nil {
		return
	}
	p.classification.WithLabelValues(result).Inc()
}

// SetBuildersByStatus replaces the per-status builder gauges.
func (p *PrometheusRecorder) SetBuildersByStatus(counts map[string]int) {
	if p == nil {
		return
	}
	p.builders.Reset()
	for status, n := range counts {
		p.builders.WithLabelValues(status).Set(float64(n))
	}
}

// WriteTextfile writes the current metrics in the node-exporter textfile format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
