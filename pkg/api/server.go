// Package api exposes the supervisor over a small JSON HTTP surface plus a
// Prometheus scrape endpoint. All state lives in the supervisor; the server
// is a stateless translation layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"sriov-pf/pkg/pf"
)

// Server is the HTTP control surface.
type Server struct {
	httpServer *http.Server
	sup        *pf.Supervisor
	startTime  time.Time
}

// NewServer builds the server and its routes.
func NewServer(addr string, sup *pf.Supervisor) *Server {
	s := &Server{
		sup:       sup,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(s))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/status", s.statusHandler)
	mux.HandleFunc("GET /api/v1/vfs", s.vfsHandler)
	mux.HandleFunc("GET /api/v1/vfs/{vf}", s.vfHandler)

	mux.HandleFunc("POST /api/v1/numvfs", s.countHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/mac", s.macHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/vlan", s.vlanHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/trust", s.trustHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/spoofcheck", s.spoofCheckHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/rate", s.rateHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/link", s.linkHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/rss-query", s.rssQueryHandler)
	mux.HandleFunc("POST /api/v1/vfs/{vf}/quarantine", s.quarantineHandler)
	mux.HandleFunc("POST /api/v1/ping-all", s.pingAllHandler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.httpServer.Addr).Info("HTTP API listening")
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
