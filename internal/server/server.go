// Package server exposes the council over HTTP and WebSocket: session
// creation and control on the REST side, the ordered event stream plus
// inbound decisions on the socket side.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quorum/internal/archive"
	"quorum/internal/council"
	"quorum/internal/eventbus"
)

// Options wires the server's collaborators.
type Options struct {
	Addr     string
	Registry *council.Registry
	Bus      *eventbus.Bus
	Store    *archive.Store // optional decision audit trail
	Logger   *zap.Logger

	// Defaults applied to sessions created over the API.
	MaxRounds       int
	DecisionTimeout time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP/WebSocket transport around a running registry.
type Server struct {
	opts Options
	log  *zap.Logger
	http *http.Server
}

// New builds the server and its route table.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Addr == "" {
		opts.Addr = ":8090"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{opts: opts, log: opts.Logger.Named("server")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSnapshot)
	mux.HandleFunc("POST /api/sessions/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/sessions/{id}/decision", s.handleDecision)
	mux.HandleFunc("POST /api/sessions/{id}/escalation", s.handleEscalation)
	mux.HandleFunc("GET /ws/council/{id}", s.handleCouncilSocket)

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.logged(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}
