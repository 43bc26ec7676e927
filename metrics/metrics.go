// Package metrics exposes Prometheus metrics for the timebank service on a
// dedicated listener, kept separate from the API server so operational
// scraping never competes with provider traffic.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsAccepted counts accepted provider operations by kind
	// (deposit, withdraw, request_summary).
	OperationsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebank_operations_accepted_total",
		Help: "Accepted provider operations by kind.",
	}, []string{"kind"})

	// OperationsRejected counts rejected operations by rejection reason.
	OperationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebank_operations_rejected_total",
		Help: "Rejected operations by reason.",
	}, []string{"kind", "reason"})

	// DisclosuresCompleted counts successfully authenticated disclosure
	// callbacks.
	DisclosuresCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timebank_disclosures_completed_total",
		Help: "Disclosure callbacks that passed all integrity checks.",
	})

	// DisclosuresFailed counts rejected disclosure callbacks by reason.
	DisclosuresFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timebank_disclosures_failed_total",
		Help: "Rejected disclosure callbacks by reason.",
	}, []string{"reason"})
)

// MetricsServer serves the Prometheus endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given address. An empty address
// disables the server; Start and Shutdown become no-ops.
func New(addr string) (*MetricsServer, error) {
	if addr == "" {
		return &MetricsServer{}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the metrics endpoint. Returns
// http.ErrServerClosed after Shutdown. A disabled server returns nil
// immediately.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
