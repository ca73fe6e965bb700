package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/infra/api/apiv1"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the HTTP listener: health, metrics, the gateway webhook and /api/v1.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

// NewRouter builds the full route tree. Exposed for tests.
func NewRouter(v1 *apiv1.Server, logger *zerolog.Logger, checks map[string]Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(logger),
		Recover(logger),
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		for name, p := range checks {
			if err := p.Ping(r.Context()); err != nil {
				logger.Warn().Err(err).Str("check", name).Msg("health check failed")
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	apiv1.RegisterAPIV1(r, v1)
	return r
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      Chain(handler, Timeout(cfg.WriteTimeout)),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: &l,
	}
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
