package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// DefaultDrainTimeout bounds the wait for END_OF_STREAM after a drain request
const DefaultDrainTimeout = 10 * time.Second

// Outcome summarizes a finished session
type Outcome struct {
	RunID         string
	State         State
	Cause         DrainCause
	Codec         pipeline.Codec
	Artifact      pipeline.OutputArtifact
	BytesWritten  uint64
	Warnings      uint64
	StartedAt     time.Time
	FinishedAt    time.Time
	DrainDuration time.Duration
	Err           error
}

// Option configures a Controller
type Option func(*Controller)

// WithDrainTimeout sets how long to wait for END_OF_STREAM after a drain
// request. Zero waits indefinitely.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Controller) { c.drainTimeout = d }
}

// WithObserver registers an observer for state transitions
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithRunID overrides the generated session identifier
func WithRunID(id string) Option {
	return func(c *Controller) { c.runID = id }
}

// Controller owns one recording session: it builds the pipeline, runs the
// control loop and is the only component that changes pipeline state.
//
// Lifecycle:
//
//	Idle → Building → Playing → Draining → Stopped
//	                     ↓          ↓
//	                   Failed     Failed
//
// The loop runs on the goroutine calling Run. Interrupt, State and the other
// accessors are safe to call from any goroutine.
type Controller struct {
	factory      pipeline.Factory
	cfg          pipeline.Config
	runID        string
	drainTimeout time.Duration
	observer     Observer

	ran       atomic.Bool
	state     atomic.Int32
	warnings  atomic.Uint64
	interrupt chan struct{}

	mu   sync.RWMutex
	pipe *pipeline.Pipeline

	// loop-owned
	coordinator *ShutdownCoordinator
	cause       DrainCause
	err         error
	started     time.Time
}

// NewController creates a controller in state Idle
func NewController(factory pipeline.Factory, cfg pipeline.Config, opts ...Option) *Controller {
	c := &Controller{
		factory:      factory,
		cfg:          cfg,
		runID:        uuid.NewString(),
		drainTimeout: DefaultDrainTimeout,
		interrupt:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunID returns the session identifier
func (c *Controller) RunID() string { return c.runID }

// State returns the current runtime state
func (c *Controller) State() State { return State(c.state.Load()) }

// Warnings returns the number of pipeline warnings seen so far
func (c *Controller) Warnings() uint64 { return c.warnings.Load() }

// Artifact returns the output file of the session once the pipeline is built
func (c *Controller) Artifact() (pipeline.OutputArtifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pipe == nil {
		return pipeline.OutputArtifact{}, false
	}
	return c.pipe.Artifact(), true
}

// BytesWritten returns the bytes that reached the file sink so far
func (c *Controller) BytesWritten() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pipe == nil {
		return 0
	}
	return c.pipe.Graph().BytesWritten()
}

// Interrupt requests a graceful drain. It never blocks; repeated calls before
// the loop picks up the first one are coalesced.
func (c *Controller) Interrupt() {
	select {
	case c.interrupt <- struct{}{}:
	default:
	}
}

// Run builds the pipeline, starts it and runs the control loop until the
// session reaches Stopped or Failed. Cancelling ctx is treated as an
// interrupt: the output is drained, not abandoned.
//
// The returned Outcome is never nil unless ErrAlreadyRun is returned. The
// error is nil only when the session ended in Stopped.
func (c *Controller) Run(ctx context.Context) (*Outcome, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	c.started = time.Now()

	c.transition(StateBuilding, "build requested")
	pipe, err := pipeline.Build(c.factory, c.cfg)
	if err != nil {
		c.fail(err, "build failed")
		return c.outcome(), c.err
	}

	c.mu.Lock()
	c.pipe = pipe
	c.mu.Unlock()

	graph := pipe.Graph()
	muxer, _ := pipe.Stage(pipeline.KindMuxer)
	c.coordinator = NewShutdownCoordinator(graph, muxer.Element)

	if err := graph.SetState(pipeline.StatePlaying); err != nil {
		c.fail(fmt.Errorf("control: failed to start pipeline: %w", err), "start failed")
		c.teardown(graph)
		return c.outcome(), c.err
	}
	c.transition(StatePlaying, "pipeline started")

	slog.Info("stream-record: recording started",
		"run_id", c.runID,
		"output", pipe.Artifact().Path,
		"codec", string(pipe.Variant().Codec),
		"chunk_duration", c.cfg.ChunkDuration,
	)

	timer := NewChunkTimer(c.cfg.ChunkDuration)
	timer.Start()
	defer timer.Stop()

	c.loop(ctx, graph, timer)
	out := c.outcome()
	c.teardown(graph)

	if out.State == StateStopped {
		slog.Info("stream-record: written file",
			"run_id", c.runID,
			"output", out.Artifact.Path,
			"bytes_written", out.BytesWritten,
			"cause", out.Cause.String(),
			"warnings", out.Warnings,
		)
	} else {
		slog.Error("stream-record: recording failed, output may be incomplete",
			"run_id", c.runID,
			"output", out.Artifact.Path,
			"error", out.Err,
		)
	}

	return out, c.err
}

// loop multiplexes status messages, the chunk timer, interrupts and the
// drain deadline until the session reaches a terminal state
func (c *Controller) loop(ctx context.Context, graph pipeline.Graph, timer *ChunkTimer) {
	messages := graph.Messages()
	done := ctx.Done()

	var deadline <-chan time.Time
	var drainTimer *time.Timer
	defer func() {
		if drainTimer != nil {
			drainTimer.Stop()
		}
	}()

	for !c.State().Terminal() {
		c.reassertPlaying(graph)

		select {
		case msg, ok := <-messages:
			if !ok {
				messages = nil
				c.fail(ErrBusClosed, "message bus closed")
				continue
			}
			c.Handle(msg)

		case <-timer.C():
			slog.Info("stream-record: chunk duration elapsed, closing file",
				"run_id", c.runID,
				"duration", timer.Duration(),
			)
			c.requestDrain(CauseTimer)

		case <-done:
			done = nil
			slog.Info("stream-record: interruption received, sending end-of-stream", "run_id", c.runID)
			c.requestDrain(CauseInterrupt)

		case <-c.interrupt:
			slog.Info("stream-record: interruption received, sending end-of-stream", "run_id", c.runID)
			c.requestDrain(CauseInterrupt)

		case <-deadline:
			c.fail(fmt.Errorf("%w within %s", ErrIncompleteDrain, c.drainTimeout), "drain timeout")
		}

		if deadline == nil && c.drainTimeout > 0 && c.State() == StateDraining {
			drainTimer = time.NewTimer(c.drainTimeout)
			deadline = drainTimer.C
		}
	}
}

// reassertPlaying forces the pipeline back to PLAYING if it silently left it
// while the session still needs data to flow (Playing or Draining)
func (c *Controller) reassertPlaying(graph pipeline.Graph) {
	state := c.State()
	if !state.expectsPlaying() {
		return
	}
	current := graph.CurrentState()
	if current == pipeline.StatePlaying {
		return
	}
	slog.Debug("stream-record: pipeline not playing, forcing PLAYING",
		"current", current.String(),
		"state", state.String(),
	)
	if err := graph.SetState(pipeline.StatePlaying); err != nil {
		slog.Warn("stream-record: failed to force PLAYING", "error", err)
	}
}

// Handle applies one status message to the state machine and returns the
// resulting state. Messages arriving after a terminal state are ignored.
func (c *Controller) Handle(msg pipeline.Message) State {
	state := c.State()
	if state.Terminal() || !state.expectsPlaying() {
		slog.Debug("stream-record: ignoring message",
			"type", msg.Type.String(),
			"state", state.String(),
		)
		return state
	}

	switch msg.Type {
	case pipeline.MessageEOS:
		if state == StatePlaying {
			c.cause = CauseUpstream
			slog.Warn("stream-record: end-of-stream without drain request", "source", msg.Source)
		}
		slog.Info("stream-record: end-of-stream", "run_id", c.runID)
		c.transition(StateStopped, "end-of-stream")

	case pipeline.MessageWarning:
		c.warnings.Add(1)
		w := PipelineWarning{Source: msg.Source, Text: msg.Text, Debug: msg.Debug}
		slog.Warn("stream-record: pipeline warning",
			"source", w.Source,
			"warning", w.Text,
			"debug", w.Debug,
		)

	case pipeline.MessageError:
		c.fail(&PipelineError{
			Source:   msg.Source,
			Text:     msg.Text,
			Debug:    msg.Debug,
			Category: msg.Category,
		}, "pipeline error")

	case pipeline.MessageStateChanged:
		slog.Debug("stream-record: pipeline state changed",
			"source", msg.Source,
			"from", msg.OldState.String(),
			"to", msg.NewState.String(),
		)
	}

	return c.State()
}

// requestDrain hands control to the shutdown coordinator
func (c *Controller) requestDrain(cause DrainCause) {
	switch state := c.State(); state {
	case StatePlaying:
		c.cause = cause
		c.transition(StateDraining, "drain requested by "+cause.String())
		if _, err := c.coordinator.Drain(cause); err != nil {
			c.fail(err, "end-of-stream rejected")
		}
	case StateDraining:
		slog.Info("stream-record: drain already in progress", "cause", cause.String())
	default:
		slog.Debug("stream-record: drain request ignored", "state", state.String())
	}
}

func (c *Controller) fail(err error, reason string) {
	if c.err == nil {
		c.err = err
	}
	slog.Error("stream-record: session failed",
		"run_id", c.runID,
		"reason", reason,
		"error", err,
	)
	c.transition(StateFailed, reason)
}

func (c *Controller) transition(to State, reason string) {
	from := c.State()
	if !canTransition(from, to) {
		slog.Error("stream-record: illegal state transition",
			"from", from.String(),
			"to", to.String(),
			"reason", reason,
		)
		return
	}
	c.state.Store(int32(to))

	slog.Debug("stream-record: state transition",
		"run_id", c.runID,
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
	)

	if c.observer != nil {
		c.observer.OnTransition(Transition{
			RunID:  c.runID,
			From:   from,
			To:     to,
			Reason: reason,
			At:     time.Now(),
		})
	}
}

// teardown sets the pipeline to NULL and releases it (best effort)
func (c *Controller) teardown(graph pipeline.Graph) {
	if err := graph.Close(); err != nil {
		slog.Warn("stream-record: failed to release pipeline", "error", err)
	}
}

func (c *Controller) outcome() *Outcome {
	out := &Outcome{
		RunID:      c.runID,
		State:      c.State(),
		Cause:      c.cause,
		Warnings:   c.warnings.Load(),
		StartedAt:  c.started,
		FinishedAt: time.Now(),
		Err:        c.err,
	}

	c.mu.RLock()
	pipe := c.pipe
	c.mu.RUnlock()
	if pipe != nil {
		out.Artifact = pipe.Artifact()
		out.Codec = pipe.Variant().Codec
		out.BytesWritten = pipe.Graph().BytesWritten()
	}
	if c.coordinator != nil && c.coordinator.Delivered() {
		out.DrainDuration = out.FinishedAt.Sub(c.coordinator.RequestedAt())
	}
	return out
}
