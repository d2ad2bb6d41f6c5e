package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	streamrecord "github.com/e7canasta/orion-care-sensor/modules/stream-record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		state      streamrecord.State
		wantStatus int
		wantBody   string
	}{
		{"playing", streamrecord.StatePlaying, http.StatusOK, "ok"},
		{"stopped", streamrecord.StateStopped, http.StatusOK, "ok"},
		{"failed", streamrecord.StateFailed, http.StatusServiceUnavailable, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := func() streamrecord.RecorderStats {
				return streamrecord.RecorderStats{
					RunID:        "run-1",
					State:        tt.state,
					Output:       "/out/a.mp4",
					BytesWritten: 42,
					Uptime:       2 * time.Second,
					Running:      true,
				}
			}
			router := NewRouter(discardLogger(), stats, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var h Health
			if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if h.Status != tt.wantBody || h.State != tt.state.String() {
				t.Errorf("unexpected health: %+v", h)
			}
			if h.RunID != "run-1" || h.BytesWritten != 42 || h.UptimeSeconds != 2 {
				t.Errorf("unexpected health: %+v", h)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "stream_record_state 1\n")
	})

	router := NewRouter(discardLogger(), func() streamrecord.RecorderStats { return streamrecord.RecorderStats{} }, metrics)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "stream_record_state") {
		t.Errorf("unexpected /metrics response: %d %q", rec.Code, rec.Body.String())
	}

	noMetrics := NewRouter(discardLogger(), func() streamrecord.RecorderStats { return streamrecord.RecorderStats{} }, nil)
	rec = httptest.NewRecorder()
	noMetrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics handler, got %d", rec.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	for _, want := range []string{"level=WARN", "path=/brew", "status=418", "size=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in log line %q", want, out)
		}
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
