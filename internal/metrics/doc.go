// Package metrics provides observability hooks for bbreport runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	client := buildbot.NewClient(cfg.Server, metrics.NoopRecorder{})
//
// When metrics are requested (report --metrics-file, or watch with a metrics
// address) a PrometheusRecorder backed by a dedicated registry is injected
// instead. The registry is either written as a node-exporter textfile at the
// end of a run or served over HTTP.
package metrics
