// Package telemetry holds the pipeline's Prometheus counters. The /metrics
// listener is only started in cron mode; one-shot runs just increment the
// counters and exit.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockcast_fetch_resolved_total", Help: "Instruments resolved, by source"},
		[]string{"source"},
	)
	FetchFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "stockcast_fetch_failed_total", Help: "Instruments that failed both sources"},
	)
	EngineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockcast_engine_runs_total", Help: "Prediction engine outcomes, by engine and status"},
		[]string{"engine", "status"},
	)
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stockcast_pipeline_runs_total", Help: "Pipeline completions, by status"},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(FetchResolved, FetchFailed, EngineRuns, PipelineRuns)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
