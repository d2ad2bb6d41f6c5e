package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// RetryConfig contains configuration for exponential backoff between failed
// sessions when rotating
type RetryConfig struct {
	MaxRetries    int           // Maximum number of consecutive failed sessions (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// RunnerConfig configures a Runner
type RunnerConfig struct {
	// Rotate starts a new file each time the chunk timer closes one
	Rotate bool
	Retry  RetryConfig
	// Controller options applied to every session
	Controller []Option
	// AfterSession is called with each finished session, before the next starts
	AfterSession func(*Outcome)
}

// Runner drives one or more sessions.
//
// Without rotation it runs exactly one session. With rotation a session that
// the chunk timer stopped is followed immediately by a new one writing a new
// file; failed sessions are retried with exponential backoff. An interrupt
// or context cancellation drains the current session and ends the run.
type Runner struct {
	factory pipeline.Factory
	cfg     pipeline.Config
	rcfg    RunnerConfig

	mu          sync.Mutex
	current     *Controller
	interrupted bool
	stop        chan struct{}
	stopOnce    sync.Once

	sessions atomic.Uint32
	retries  atomic.Uint32
}

// NewRunner creates a runner
func NewRunner(factory pipeline.Factory, cfg pipeline.Config, rcfg RunnerConfig) *Runner {
	return &Runner{
		factory: factory,
		cfg:     cfg,
		rcfg:    rcfg,
		stop:    make(chan struct{}),
	}
}

// Current returns the active (or last) session controller, nil before Run
func (r *Runner) Current() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Sessions returns how many sessions have been started
func (r *Runner) Sessions() uint32 { return r.sessions.Load() }

// Retries returns how many failed sessions were retried
func (r *Runner) Retries() uint32 { return r.retries.Load() }

// Interrupt drains the current session and prevents new ones from starting
func (r *Runner) Interrupt() {
	r.mu.Lock()
	r.interrupted = true
	current := r.current
	r.mu.Unlock()

	r.stopOnce.Do(func() { close(r.stop) })
	if current != nil {
		current.Interrupt()
	}
}

func (r *Runner) isInterrupted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interrupted
}

// Run executes sessions until one of them ends the run. Returns every
// session outcome in order and the error of the last session (or the retry
// budget error).
func (r *Runner) Run(ctx context.Context) ([]*Outcome, error) {
	var outcomes []*Outcome
	failures := 0

	for {
		c := NewController(r.factory, r.cfg, r.rcfg.Controller...)

		r.mu.Lock()
		r.current = c
		interrupted := r.interrupted
		r.mu.Unlock()
		if interrupted {
			c.Interrupt()
		}

		n := r.sessions.Add(1)
		slog.Debug("stream-record: starting session", "session", n, "run_id", c.RunID())

		out, err := c.Run(ctx)
		outcomes = append(outcomes, out)
		if r.rcfg.AfterSession != nil {
			r.rcfg.AfterSession(out)
		}

		if !r.rcfg.Rotate || r.isInterrupted() || ctx.Err() != nil {
			return outcomes, err
		}

		if err == nil {
			failures = 0
			if out.Cause != CauseTimer {
				slog.Info("stream-record: stream ended, not rotating", "cause", out.Cause.String())
				return outcomes, nil
			}
			slog.Info("stream-record: rotating output", "previous", out.Artifact.Path)
			continue
		}

		failures++
		if failures > r.rcfg.Retry.MaxRetries {
			return outcomes, fmt.Errorf("control: max retries exceeded (%d attempts): %w", r.rcfg.Retry.MaxRetries, err)
		}
		r.retries.Add(1)

		delay := calculateBackoff(failures, r.rcfg.Retry)
		slog.Warn("stream-record: retrying session",
			"attempt", failures,
			"max_retries", r.rcfg.Retry.MaxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Info("stream-record: context cancelled during backoff")
			return outcomes, err
		case <-r.stop:
			slog.Info("stream-record: interrupted during backoff")
			return outcomes, err
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
