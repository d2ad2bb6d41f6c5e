package control

import (
	"log/slog"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// DrainCause records why a session ended
type DrainCause int

const (
	CauseNone DrainCause = iota
	// CauseTimer is the chunk timer expiring
	CauseTimer
	// CauseInterrupt is an operator interrupt (signal, context cancellation)
	CauseInterrupt
	// CauseUpstream is an end-of-stream that arrived without a drain request
	CauseUpstream
)

// String returns a human-readable string representation of the cause
func (c DrainCause) String() string {
	switch c {
	case CauseTimer:
		return "timer"
	case CauseInterrupt:
		return "interrupt"
	case CauseUpstream:
		return "upstream"
	default:
		return "none"
	}
}

// ShutdownCoordinator injects end-of-stream at the muxer exactly once.
//
// Injecting at the muxer rather than the source lets already buffered data
// flow out and the muxer write the container trailer before the sink closes
// the file. The coordinator does not close anything itself: the controller
// waits for the resulting END_OF_STREAM message.
type ShutdownCoordinator struct {
	graph       pipeline.Graph
	target      pipeline.Element
	delivered   bool
	cause       DrainCause
	requestedAt time.Time
}

// NewShutdownCoordinator creates a coordinator for target (the muxer)
func NewShutdownCoordinator(graph pipeline.Graph, target pipeline.Element) *ShutdownCoordinator {
	return &ShutdownCoordinator{graph: graph, target: target}
}

// Drain delivers end-of-stream to the muxer.
//
// Returns true when the marker was delivered by this call, false when it had
// already been delivered. Returns ErrEOSRejected if the muxer refused it.
func (s *ShutdownCoordinator) Drain(cause DrainCause) (bool, error) {
	if s.delivered {
		slog.Debug("stream-record: drain already requested, ignoring",
			"cause", cause.String(),
			"first_cause", s.cause.String(),
		)
		return false, nil
	}

	slog.Info("stream-record: sending end-of-stream to muxer",
		"cause", cause.String(),
		"target", s.target.Name(),
	)

	s.delivered = true
	s.cause = cause
	s.requestedAt = time.Now()

	if !s.graph.SendEOS(s.target) {
		return false, ErrEOSRejected
	}
	return true, nil
}

// Delivered reports whether end-of-stream has been sent
func (s *ShutdownCoordinator) Delivered() bool { return s.delivered }

// Cause returns the cause of the drain, CauseNone before Drain
func (s *ShutdownCoordinator) Cause() DrainCause { return s.cause }

// RequestedAt returns when the drain was requested
func (s *ShutdownCoordinator) RequestedAt() time.Time { return s.requestedAt }
