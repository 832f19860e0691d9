// Package server owns the HTTP listener: the chi mux, the middleware
// chain and the start/stop lifecycle around the dispatch handler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/actionmesh/gateway/internal/config"
)

// Server is the live listener handle, separate from the immutable
// configuration it was built from.
type Server struct {
	http   *http.Server
	cert   string
	key    string
	logger *slog.Logger
}

// New builds the mux around the dispatch handler and mounts it under
// the configured global path prefix.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "action-gateway")
	})

	prefix := strings.TrimSuffix(cfg.Path, "/")
	if prefix == "" {
		r.Handle("/*", handler)
	} else {
		// The dispatch handler matches routes against prefix-free paths.
		// The bare prefix is mounted too so a request to exactly the
		// prefix gets the gateway's JSON 404 instead of the mux's.
		r.Handle(prefix, http.StripPrefix(prefix, handler))
		r.Handle(prefix+"/*", http.StripPrefix(prefix, handler))
	}

	return &Server{
		http: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.IP, cfg.Port),
			Handler: r,
		},
		cert:   cfg.HTTPS.Cert,
		key:    cfg.HTTPS.Key,
		logger: logger,
	}
}

// Start listens and serves until Shutdown. A bind failure is returned,
// not retried: a gateway that cannot listen stays non-listening.
func (s *Server) Start() error {
	if s.cert != "" && s.key != "" {
		s.logger.Info("starting HTTPS server", slog.String("addr", s.http.Addr))
		return s.http.ListenAndServeTLS(s.cert, s.key)
	}
	s.logger.Info("starting HTTP server", slog.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and releases the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
