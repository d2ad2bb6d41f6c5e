package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.Observe(events.Event{Type: events.TypeTransition, From: "building", To: "playing"})
	if got := testutil.ToFloat64(m.state.WithLabelValues("playing")); got != 1 {
		t.Errorf("expected playing=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("idle")); got != 0 {
		t.Errorf("expected idle=0, got %v", got)
	}

	m.Observe(events.Event{Type: events.TypeFinished, Cause: "timer", BytesWritten: 1024, Warnings: 2, DrainSeconds: 0.3})
	m.Observe(events.Event{Type: events.TypeFailed, Cause: "none", ErrorCategory: "network"})
	m.Observe(events.Event{Type: events.TypeFailed, Cause: "interrupt"})
	m.Observe(events.Event{Type: events.TypeVerified})

	if got := testutil.ToFloat64(m.sessionsTotal.WithLabelValues("stopped", "timer")); got != 1 {
		t.Errorf("expected 1 stopped session, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("network")); got != 1 {
		t.Errorf("expected 1 network error, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("expected 1 unknown error, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytesWritten); got != 1024 {
		t.Errorf("expected 1024 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.warningsTotal); got != 2 {
		t.Errorf("expected 2 warnings, got %v", got)
	}
	if got := testutil.ToFloat64(m.verifiedTotal); got != 1 {
		t.Errorf("expected 1 verified file, got %v", got)
	}
}

func TestMetrics_ConsumeAndServe(t *testing.T) {
	m := New()
	ch := make(chan events.Event, 4)
	ch <- events.Event{Type: events.TypeFinished, Cause: "interrupt", BytesWritten: 10}
	close(ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Consume(ctx, ch)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`stream_record_sessions_total{cause="interrupt",outcome="stopped"} 1`,
		"stream_record_bytes_written_total 10",
		`stream_record_state{state="idle"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in scrape output", want)
		}
	}
}
