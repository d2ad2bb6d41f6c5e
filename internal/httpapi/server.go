// Package httpapi serves recorder health and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	streamrecord "github.com/e7canasta/orion-care-sensor/modules/stream-record"
)

const shutdownTimeout = 5 * time.Second

// StatsFunc returns a snapshot of the recorder
type StatsFunc func() streamrecord.RecorderStats

// Health is the /healthz response body
type Health struct {
	Status        string  `json:"status"`
	RunID         string  `json:"run_id"`
	State         string  `json:"state"`
	Output        string  `json:"output,omitempty"`
	BytesWritten  uint64  `json:"bytes_written"`
	Warnings      uint64  `json:"warnings"`
	Sessions      uint32  `json:"sessions"`
	Retries       uint32  `json:"retries"`
	Recordings    int     `json:"recordings"`
	Running       bool    `json:"running"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	EventsDropped uint64  `json:"events_dropped"`
}

// NewRouter builds the status router. metrics may be nil.
func NewRouter(log *slog.Logger, stats StatsFunc, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	r.Get("/healthz", healthHandler(stats))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func healthHandler(stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := stats()
		h := Health{
			Status:        "ok",
			RunID:         s.RunID,
			State:         s.State.String(),
			Output:        s.Output,
			BytesWritten:  s.BytesWritten,
			Warnings:      s.Warnings,
			Sessions:      s.Sessions,
			Retries:       s.Retries,
			Recordings:    s.Recordings,
			Running:       s.Running,
			UptimeSeconds: s.Uptime.Seconds(),
			EventsDropped: s.EventsDropped,
		}

		status := http.StatusOK
		if s.State == streamrecord.StateFailed {
			h.Status = "failed"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(h)
	}
}

// Server runs the status router until its context is done
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer creates a server listening on addr
func NewServer(addr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stream-record: status server starting", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("stream-record: status server stopped")
	return nil
}
