package streamrecord

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// Codec is the video codec carried in the RTP stream
type Codec = pipeline.Codec

const (
	// CodecMP4 is MPEG-4 Part 2 video (RTP encoding MP4V-ES)
	CodecMP4 = pipeline.CodecMP4
	// CodecH264 is H.264/AVC
	CodecH264 = pipeline.CodecH264
	// CodecH265 is H.265/HEVC
	CodecH265 = pipeline.CodecH265
)

// ParseCodec normalizes a codec token ("h264", " H265 ", ...)
func ParseCodec(s string) Codec { return pipeline.ParseCodec(s) }

// State is the runtime state of a recording session
type State = control.State

const (
	StateIdle     = control.StateIdle
	StateBuilding = control.StateBuilding
	StatePlaying  = control.StatePlaying
	StateDraining = control.StateDraining
	StateStopped  = control.StateStopped
	StateFailed   = control.StateFailed
)

// DrainCause records why a session ended
type DrainCause = control.DrainCause

const (
	CauseNone      = control.CauseNone
	CauseTimer     = control.CauseTimer
	CauseInterrupt = control.CauseInterrupt
	CauseUpstream  = control.CauseUpstream
)

// Factory creates media framework graphs. The default is GStreamer.
type Factory = pipeline.Factory

// Config contains configuration for recording an RTP/UDP stream to MP4
type Config struct {
	// OutputDir is the directory output files are written to (required,
	// created if missing)
	OutputDir string
	// ChunkDuration is how long to record before closing the file
	// (0 = until interrupted)
	ChunkDuration time.Duration
	// UDPPort is the port the source listens on (required)
	UDPPort uint16
	// Codec is the codec of the incoming stream (MP4, H264, H265)
	Codec Codec
	// ClockRate is the RTP clock rate advertised in the source caps
	// (0 = omitted, typically 90000 for video)
	ClockRate uint32
	// AllowCodecFallback records unknown codecs as H265 instead of failing
	AllowCodecFallback bool
	// JitterLatency is the jitter buffer latency (0 = framework default)
	JitterLatency time.Duration

	// Rotate starts a new file each time ChunkDuration elapses
	Rotate bool
	// DrainTimeout bounds the wait for end-of-stream after a drain request
	// (default: 10 seconds)
	DrainTimeout time.Duration
	// VerifyOutput inspects every finished file for a moov box
	VerifyOutput bool

	// MaxRetries is the number of consecutive failed sessions retried when
	// rotating (default: 5)
	MaxRetries int
	// RetryDelay is the initial retry delay (default: 1 second)
	RetryDelay time.Duration
	// MaxRetryDelay caps the retry delay (default: 30 seconds)
	MaxRetryDelay time.Duration
}

// Recording describes one finished session and its output file
type Recording struct {
	RunID         string
	Path          string
	Codec         Codec
	State         State
	Cause         DrainCause
	BytesWritten  uint64
	Warnings      uint64
	StartedAt     time.Time
	FinishedAt    time.Time
	DrainDuration time.Duration

	// Verified is true when the file was inspected and is finalized
	Verified bool
	// Tracks and MediaDuration come from the inspected moov box
	Tracks        int
	MediaDuration time.Duration

	// Err is the session error, or ErrIncompleteOutput when verification failed
	Err error
}

// OK reports whether the session stopped cleanly and its output passed
// verification (when enabled)
func (r Recording) OK() bool {
	return r.State == StateStopped && r.Err == nil
}

// Report is the result of Run
type Report struct {
	Recordings []Recording
	Sessions   uint32
	Retries    uint32
	StartedAt  time.Time
	FinishedAt time.Time
}

// Last returns the most recent recording, or nil
func (r *Report) Last() *Recording {
	if r == nil || len(r.Recordings) == 0 {
		return nil
	}
	return &r.Recordings[len(r.Recordings)-1]
}

// RecorderStats contains current recorder statistics
type RecorderStats struct {
	// RunID identifies the current (or last) session
	RunID string
	// State is the state of the current session
	State State
	// Output is the file the current session writes
	Output string
	// BytesWritten is the number of bytes that reached the file sink in the
	// current session
	BytesWritten uint64
	// Warnings is the number of pipeline warnings in the current session
	Warnings uint64
	// Sessions is the number of sessions started
	Sessions uint32
	// Retries is the number of failed sessions retried
	Retries uint32
	// Recordings is the number of finished sessions
	Recordings int
	// Running is true while Run has not returned
	Running bool
	// Uptime is the time since Run was called
	Uptime time.Duration
	// EventsDropped is the number of lifecycle events dropped by slow subscribers
	EventsDropped uint64
}
