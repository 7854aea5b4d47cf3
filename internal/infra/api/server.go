package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/config"
	"telegram-playlist-bot/internal/infra/api/apiv1"
	"telegram-playlist-bot/internal/infra/metrics"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server is the internal HTTP API consumed by the chat front end.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

// NewRouter builds the handler tree. /health and /metrics are public,
// everything under /v1 needs a service token.
func NewRouter(core apiv1.Core, auth *AuthManager, health HealthFunc, timeout time.Duration, logger *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(logger), RequestLog(logger))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				logger.Warn().Err(err).Msg("health check failed")
				http.Error(w, "UNAVAILABLE", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RequireService(auth, logger), Timeout(timeout))
		apiv1.RegisterAPIV1(r, apiv1.NewServer(core, logger))
	})
	return r
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http api listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
