package supervisor

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armb-farm/armb/internal/stats"
)

// ServeMetrics starts an HTTP server on addr exposing the active job's
// Prometheus metrics at /metrics. It blocks until ctx is cancelled, then shuts
// the server down gracefully.
func (s *Supervisor) ServeMetrics(ctx context.Context, addr string) error {
	reg := stats.NewRegistry(s.Job)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
