// Package server wires the HTTP API of the backtest service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"backtest-lab/internal/observability"
	"backtest-lab/internal/server/handler"
	"backtest-lab/internal/server/middleware"
	"backtest-lab/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Handlers aggregates the handlers the server registers.
type Handlers struct {
	Backtest *handler.BacktestHandler
	Data     *handler.DataHandler
	Progress *ws.ProgressStream // optional
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer registers all routes and wraps them in the middleware chain.
func NewServer(cfg Config, handlers Handlers, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(cfg, handlers, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler returns the routed and wrapped handler without a listener.
func NewHandler(cfg Config, handlers Handlers, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", observability.Handler())

	b := handlers.Backtest
	mux.HandleFunc("POST /api/backtest/run", b.Run)
	mux.HandleFunc("GET /api/backtest", b.List)
	mux.HandleFunc("GET /api/backtest/{id}", b.Get)
	mux.HandleFunc("GET /api/backtest/status/{id}", b.Progress)
	mux.HandleFunc("GET /api/backtest/result/{id}", b.Result)
	mux.HandleFunc("GET /api/backtest/error/{id}", b.Error)
	mux.HandleFunc("GET /api/backtest/summary/{id}", b.Summary)
	mux.HandleFunc("GET /api/backtest/report/{id}", b.Report)
	mux.HandleFunc("POST /api/backtest/{id}/cancel", b.Cancel)
	mux.HandleFunc("DELETE /api/backtest/{id}", b.Delete)

	if handlers.Progress != nil {
		mux.HandleFunc("GET /api/backtest/progress/{id}", handlers.Progress.HandleProgress)
	}
	if handlers.Data != nil {
		mux.HandleFunc("GET /api/data/symbols", handlers.Data.ListSymbols)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.Metrics(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Recover(logger)(h)
	return h
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Serve accepts connections on l until the server is shut down.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server starting", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
