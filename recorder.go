package streamrecord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/gstengine"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/verify"
)

// Option configures a Recorder
type Option func(*options)

type options struct {
	factory Factory
	bus     *events.Bus
	now     func() time.Time
}

// WithFactory replaces the GStreamer engine, e.g. with an in-memory fake.
// No GStreamer availability check is done when a factory is given.
func WithFactory(f Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithEventBus publishes lifecycle events (transitions, finished files,
// verification) on bus
func WithEventBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithClock sets the clock used to timestamp output file names
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Recorder implements StreamRecorder on top of the session runner
type Recorder struct {
	cfg       Config
	pipeCfg   pipeline.Config
	retry     control.RetryConfig
	factory   Factory
	bus       *events.Bus
	startedAt time.Time

	ran     atomic.Bool
	running atomic.Bool

	mu          sync.RWMutex
	runner      *control.Runner
	interrupted bool
	recordings  []Recording
}

var _ StreamRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder with fail-fast validation
//
// Validates configuration at construction time (fail-fast principle):
//   - OutputDir must be set and writable (it is created if missing)
//   - UDPPort must not be 0
//   - Codec must be MP4, H264 or H265 unless AllowCodecFallback is set
//   - GStreamer and every element of the pipeline must be available
//     (skipped when WithFactory is used)
func NewRecorder(cfg Config, opts ...Option) (*Recorder, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("stream-record: output directory is required")
	}
	if err := ensureWritable(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("stream-record: output directory not writable: %w", err)
	}
	if cfg.UDPPort == 0 {
		return nil, fmt.Errorf("stream-record: udp port is required")
	}
	if cfg.ChunkDuration < 0 {
		return nil, fmt.Errorf("stream-record: invalid chunk duration %s", cfg.ChunkDuration)
	}

	cfg.Codec = ParseCodec(string(cfg.Codec))
	variant, err := pipeline.SelectVariant(cfg.Codec, cfg.AllowCodecFallback)
	if err != nil {
		return nil, fmt.Errorf("stream-record: %w", err)
	}

	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = control.DefaultDrainTimeout
	}
	retry := control.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.RetryDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxRetryDelay = cfg.MaxRetryDelay
	}

	factory := o.factory
	if factory == nil {
		if err := gstengine.CheckAvailable(
			"udpsrc",
			"rtpjitterbuffer",
			variant.Depayloader.Factory,
			variant.Parser.Factory,
			"qtmux",
			"filesink",
		); err != nil {
			return nil, fmt.Errorf("stream-record: GStreamer not available: %w", err)
		}
		factory = gstengine.NewFactory()
	}

	r := &Recorder{
		cfg: cfg,
		pipeCfg: pipeline.Config{
			OutputDir:          cfg.OutputDir,
			ChunkDuration:      cfg.ChunkDuration,
			UDPPort:            cfg.UDPPort,
			Codec:              cfg.Codec,
			ClockRate:          cfg.ClockRate,
			JitterLatency:      cfg.JitterLatency,
			AllowCodecFallback: cfg.AllowCodecFallback,
			Now:                o.now,
		},
		retry:   retry,
		factory: factory,
		bus:     o.bus,
	}

	slog.Info("stream-record: recorder created",
		"output_dir", cfg.OutputDir,
		"udp_port", cfg.UDPPort,
		"codec", string(variant.Codec),
		"chunk_duration", cfg.ChunkDuration,
		"rotate", cfg.Rotate,
	)

	return r, nil
}

// Run records until the chunk timer, an interrupt or ctx ends the run
func (r *Recorder) Run(ctx context.Context) (*Report, error) {
	if !r.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	r.running.Store(true)
	defer r.running.Store(false)

	runner := control.NewRunner(r.factory, r.pipeCfg, control.RunnerConfig{
		Rotate: r.cfg.Rotate,
		Retry:  r.retry,
		Controller: []control.Option{
			control.WithDrainTimeout(r.cfg.DrainTimeout),
			control.WithObserver(control.ObserverFunc(r.onTransition)),
		},
		AfterSession: r.afterSession,
	})

	r.mu.Lock()
	r.startedAt = time.Now()
	r.runner = runner
	interrupted := r.interrupted
	r.mu.Unlock()
	if interrupted {
		runner.Interrupt()
	}

	_, runErr := runner.Run(ctx)

	r.mu.RLock()
	report := &Report{
		Recordings: append([]Recording(nil), r.recordings...),
		Sessions:   runner.Sessions(),
		Retries:    runner.Retries(),
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
	}
	r.mu.RUnlock()

	if runErr != nil {
		return report, runErr
	}
	for _, rec := range report.Recordings {
		if rec.Err != nil {
			return report, rec.Err
		}
	}
	return report, nil
}

// Interrupt requests a graceful drain. Safe to call before Run: the first
// session is then drained as soon as it is PLAYING.
func (r *Recorder) Interrupt() {
	r.mu.Lock()
	r.interrupted = true
	runner := r.runner
	r.mu.Unlock()

	if runner != nil {
		runner.Interrupt()
	}
}

// Stats returns current recorder statistics
func (r *Recorder) Stats() RecorderStats {
	r.mu.RLock()
	runner := r.runner
	st := RecorderStats{
		Recordings: len(r.recordings),
		Running:    r.running.Load(),
	}
	if !r.startedAt.IsZero() {
		st.Uptime = time.Since(r.startedAt)
	}
	r.mu.RUnlock()

	if runner != nil {
		st.Sessions = runner.Sessions()
		st.Retries = runner.Retries()
		if c := runner.Current(); c != nil {
			st.RunID = c.RunID()
			st.State = c.State()
			st.BytesWritten = c.BytesWritten()
			st.Warnings = c.Warnings()
			if a, ok := c.Artifact(); ok {
				st.Output = a.Path
			}
		}
	}
	if r.bus != nil {
		st.EventsDropped = r.bus.Stats().Dropped
	}
	return st
}

func (r *Recorder) onTransition(tr control.Transition) {
	r.publish(events.Event{
		Type:      events.TypeTransition,
		RunID:     tr.RunID,
		Timestamp: tr.At,
		From:      tr.From.String(),
		To:        tr.To.String(),
		Reason:    tr.Reason,
	})

	if tr.To != control.StatePlaying {
		return
	}
	r.mu.RLock()
	runner := r.runner
	r.mu.RUnlock()
	if runner == nil {
		return
	}
	if c := runner.Current(); c != nil {
		a, _ := c.Artifact()
		r.publish(events.Event{
			Type:      events.TypeStarted,
			RunID:     tr.RunID,
			Timestamp: tr.At,
			Path:      a.Path,
			Codec:     string(r.pipeCfg.Codec),
		})
	}
}

// afterSession turns a session outcome into a Recording, verifies the file
// and publishes the result
func (r *Recorder) afterSession(out *control.Outcome) {
	rec := Recording{
		RunID:         out.RunID,
		Path:          out.Artifact.Path,
		Codec:         out.Codec,
		State:         out.State,
		Cause:         out.Cause,
		BytesWritten:  out.BytesWritten,
		Warnings:      out.Warnings,
		StartedAt:     out.StartedAt,
		FinishedAt:    out.FinishedAt,
		DrainDuration: out.DrainDuration,
		Err:           out.Err,
	}

	if rec.State == StateStopped && r.cfg.VerifyOutput {
		r.verify(&rec)
	}

	r.mu.Lock()
	r.recordings = append(r.recordings, rec)
	r.mu.Unlock()

	ev := events.Event{
		RunID:        rec.RunID,
		Path:         rec.Path,
		Codec:        string(rec.Codec),
		Cause:        rec.Cause.String(),
		BytesWritten: rec.BytesWritten,
		Warnings:     rec.Warnings,
		DrainSeconds: rec.DrainDuration.Seconds(),
		DurationMS:   rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
		Tracks:       rec.Tracks,
	}
	if rec.OK() {
		ev.Type = events.TypeFinished
	} else {
		ev.Type = events.TypeFailed
		if rec.Err != nil {
			ev.Error = rec.Err.Error()
		}
		var perr *control.PipelineError
		if errors.As(rec.Err, &perr) {
			ev.ErrorCategory = perr.Category
		}
	}
	r.publish(ev)
}

func (r *Recorder) verify(rec *Recording) {
	summary, err := verify.Inspect(rec.Path)
	if err != nil {
		rec.Err = fmt.Errorf("%w: %s: %w", ErrIncompleteOutput, rec.Path, err)
		slog.Error("stream-record: output verification failed",
			"run_id", rec.RunID,
			"output", rec.Path,
			"error", err,
		)
		return
	}

	rec.Verified = true
	rec.Tracks = summary.Tracks
	rec.MediaDuration = summary.Duration
	slog.Info("stream-record: output verified",
		"run_id", rec.RunID,
		"output", rec.Path,
		"size", summary.Size,
		"tracks", summary.Tracks,
		"duration", summary.Duration,
	)

	r.publish(events.Event{
		Type:         events.TypeVerified,
		RunID:        rec.RunID,
		Path:         rec.Path,
		BytesWritten: uint64(summary.Size),
		DurationMS:   summary.Duration.Milliseconds(),
		Tracks:       summary.Tracks,
	})
}

func (r *Recorder) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// ensureWritable creates dir if needed and checks a file can be created in it
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".stream-record-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}
