package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/admin"
)

// Server exposes the administration surface over HTTP: grouped listings,
// substitution CRUD, tier clears and cleanup jobs. Read-only rendering
// of pages stays in the reader application.
type Server struct {
	log    *slog.Logger
	server *http.Server
}

// New creates an admin server on addr.
func New(logger *slog.Logger, addr string, svc *admin.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{svc: svc, log: logger}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h.routes(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{server: srv, log: logger}
}

// Run serves until the listener fails or the server is shut down.
func (s *Server) Run() error {
	s.log.Info("admin server started", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down gracefully.
func (s *Server) Close(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("admin server forced to shut down", "error", err)
		return
	}
	s.log.Info("admin server exited gracefully")
}
