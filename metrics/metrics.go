// Package metrics exposes Prometheus-compatible counters for the
// QuantAgg services and a small HTTP server that publishes them.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// MetricsServer publishes the process metric set on /metrics.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name listening on
// addr. An empty addr returns a server whose ListenAndServe fails
// immediately; callers skip starting it in that case, matching the
// optional metrics listener convention.
func New(name, addr string) (*MetricsServer, error) {
	if name == "" {
		return nil, fmt.Errorf("metrics service name is required")
	}
	vm.GetOrCreateCounter(fmt.Sprintf(`service_up{service=%q}`, name)).Set(1)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vm.WritePrometheus(w, true)
	})
	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe starts the metrics listener and blocks until shutdown.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// Domain counters are registered lazily on first use.

// IncContributionReceived counts one accepted contributor submission.
func IncContributionReceived() {
	vm.GetOrCreateCounter("quantagg_contributions_received_total").Inc()
}

// IncContributionRejected counts one rejected contributor submission,
// labeled by rejection reason.
func IncContributionRejected(reason string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`quantagg_contributions_rejected_total{reason=%q}`, reason)).Inc()
}

// IncRoundCompleted counts one successfully aggregated round.
func IncRoundCompleted() {
	vm.GetOrCreateCounter("quantagg_rounds_completed_total").Inc()
}

// IncRoundSkipped counts one round closed without enough contributors.
func IncRoundSkipped() {
	vm.GetOrCreateCounter("quantagg_rounds_skipped_total").Inc()
}

// ObserveRoundDuration records how long one round aggregation took.
func ObserveRoundDuration(d time.Duration) {
	vm.GetOrCreateHistogram("quantagg_round_duration_seconds").Update(d.Seconds())
}

// ObserveDistortion records the aggregated distortion of one round.
func ObserveDistortion(d float64) {
	vm.GetOrCreateHistogram("quantagg_round_distortion").Update(d)
}
