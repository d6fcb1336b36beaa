package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	logger     *slog.Logger
}

// NewServer creates a new API server with all routes registered. gatherer
// backs /metrics and may be nil.
func NewServer(acq Acquirer, lookup Lookup, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	h := &Handlers{
		Acquirer:  acq,
		Lookup:    lookup,
		Logger:    logger,
		StartTime: time.Now(),
	}

	mux := http.NewServeMux()

	// API routes.
	mux.HandleFunc("GET /api/v1/observations", h.GetObservations)
	mux.HandleFunc("GET /api/v1/observation", h.GetObservation)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Apply middleware (outermost runs first). Recovery sits inside RequestID
	// so a panic log carries the id.
	var handler http.Handler = mux
	handler = JSONHeaders(handler)
	handler = Recovery(logger)(handler)
	handler = AccessLog(logger)(handler)
	handler = RequestID(logger)(handler)

	root := http.NewServeMux()
	if gatherer != nil {
		root.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	root.Handle("/", handler)

	srv := &http.Server{
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h, logger: logger}
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	s.logger.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, middleware included.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetMode sets the fetch mode reported by the health endpoint.
func (s *Server) SetMode(mode string) { s.handlers.Mode = mode }

// SetStorageInfo sets storage driver and path for the health endpoint.
func (s *Server) SetStorageInfo(driver, path string) {
	s.handlers.StorageDriver = driver
	s.handlers.StoragePath = path
}
