package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const metricsShutdownGrace = 5 * time.Second

// HTTPServer couples an http.Server with the time it gets to drain on
// shutdown.
type HTTPServer struct {
	server *http.Server
	grace  time.Duration
}

// NewHTTPServer builds the API server. Synchronous generations may hold a
// request for the whole write timeout, so shutdown waits that long plus a
// margin.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		grace: cfg.HTTPWriteTimeout + 5*time.Second,
	}
}

// NewMetricsServer builds a small side listener, used by the worker to
// expose /metrics.
func NewMetricsServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		grace: metricsShutdownGrace,
	}
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the grace period. A listener that fails to start is returned as is;
// a clean shutdown returns nil.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
