// Package api exposes the ScriptAgent REST surface: script upload and
// retrieval, live call sessions, and finished call logs.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/session"
	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/store"
)

const (
	defaultAddr       = ":8080"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server holds the API dependencies: the script store and the session
// manager that owns live calls.
type Server struct {
	st       store.Store
	sessions *session.Manager
	httpSrv  *http.Server
}

// Opts configures a Server. Addr falls back to :8080.
type Opts struct {
	Addr string
}

// Option modifies server options.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer wires the handlers over the given store and session manager.
func NewServer(st store.Store, sessions *session.Manager, options ...Option) *Server {
	var opts Opts
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}

	s := &Server{st: st, sessions: sessions}
	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// routes builds the request multiplexer. Paths with IDs are dispatched
// inside the handlers.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scripts", s.scriptsHandler)
	mux.HandleFunc("/scripts/", s.scriptsHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/sessions/", s.sessionsHandler)
	mux.HandleFunc("/calls", s.callsHandler)
	mux.HandleFunc("/calls/", s.callsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	slog.Info("Server.Run: API stopped")
	return <-errCh
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
