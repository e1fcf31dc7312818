package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stylevault/resilience/internal/core/domain"
)

// Server provides HTTP endpoints for ops monitoring.
type Server struct {
	svc    *Service
	server *http.Server
}

// NewServer creates the ops server.
func NewServer(svc *Service, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		svc: svc,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/errors/stats", s.handleStats)
	mux.HandleFunc("/errors/recent", s.handleRecent)
	mux.HandleFunc("/errors/patterns", s.handlePatterns)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	// A critical global error degrades reported health.
	if global := s.svc.Broadcast.GlobalError(); global != nil && global.Severity == domain.SeverityCritical {
		status = "critical"
		code = http.StatusServiceUnavailable
	}

	if s.svc.db != nil {
		if err := s.svc.db.Health(r.Context()); err != nil {
			status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.svc.Broadcast.Statistics()
	buffered := s.svc.Events.Statistics()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session":        stats,
		"buffer":         buffered,
		"errors_per_min": s.svc.Broadcast.ErrorRate(),
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.svc.Events.RecentErrors(limit))
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.svc.Events.DetectPatterns())
}
