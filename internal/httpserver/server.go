// Package httpserver exposes the gateway over HTTP: sending mail on
// behalf of trusted callers and dispatching commands.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/mail"
	"github.com/nhle/mail-gateway/internal/model"
	"github.com/nhle/mail-gateway/internal/store"
)

// Deps are the collaborators the HTTP handlers use.
type Deps struct {
	Dispatcher *command.Dispatcher
	Sender     mail.Sender
	Store      store.Store

	// APIKey is compared against the X-API-KEY header. An empty key
	// rejects every protected request.
	APIKey string

	// RequestLogger receives HTTP_REQUEST events; SendLogger receives
	// GLOBAL_FAIL when a send aborts.
	RequestLogger zerolog.Logger
	SendLogger    zerolog.Logger
}

// Server is the gateway's HTTP API. The underlying http.Server is built
// once in New, so Close is safe before, during or after Run.
type Server struct {
	cfg            model.HTTPConfig
	deps           Deps
	router         chi.Router
	httpServer     *http.Server
	rateLimitStore *rateLimitStore
}

// New builds the router and middleware chain. The server does not
// listen until Run is called.
func New(cfg model.HTTPConfig, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogMiddleware(deps.RequestLogger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: r,
	}

	if cfg.RateLimitPerMin > 0 {
		s.rateLimitStore = newRateLimitStore()
		r.Use(rateLimitMiddleware(s.rateLimitStore, cfg.RateLimitPerMin))
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until Close is called. It
// returns nil after a graceful shutdown, and returns at once if Close
// already ran.
func (s *Server) Run() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the server down gracefully and stops the rate limiter.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.rateLimitStore != nil {
		s.rateLimitStore.Stop()
	}
	return err
}

// requestLogMiddleware logs one line per request after it completes.
func requestLogMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("HTTP_ACCESS")
		})
	}
}
