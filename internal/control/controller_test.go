package control

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline/pipelinetest"
)

func testConfig(t *testing.T, chunk time.Duration) pipeline.Config {
	t.Helper()
	return pipeline.Config{
		OutputDir:     t.TempDir(),
		ChunkDuration: chunk,
		UDPPort:       5000,
		Codec:         pipeline.CodecH264,
	}
}

// startedController returns a controller whose pipeline is built and PLAYING,
// without running the loop, so Handle can be driven message by message
func startedController(t *testing.T) (*Controller, *pipelinetest.Graph) {
	t.Helper()
	factory := pipelinetest.NewFactory()
	c := NewController(factory, testConfig(t, 0))

	c.ran.Store(true)
	c.transition(StateBuilding, "test")
	pipe, err := pipeline.Build(factory, c.cfg)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	c.pipe = pipe
	muxer, _ := pipe.Stage(pipeline.KindMuxer)
	c.coordinator = NewShutdownCoordinator(pipe.Graph(), muxer.Element)
	if err := pipe.Graph().SetState(pipeline.StatePlaying); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	c.transition(StatePlaying, "test")
	return c, factory.Last()
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
}

func (o *recordingObserver) OnTransition(tr Transition) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, tr)
}

func (o *recordingObserver) path() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, 0, len(o.transitions)+1)
	for i, tr := range o.transitions {
		if i == 0 {
			out = append(out, tr.From)
		}
		out = append(out, tr.To)
	}
	return out
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestController_HandleSequence(t *testing.T) {
	c, _ := startedController(t)

	sequence := []struct {
		msg  pipeline.Message
		want State
	}{
		{pipeline.Message{Type: pipeline.MessageWarning, Source: "rtpjitterbuffer", Text: "late packet"}, StatePlaying},
		{pipeline.Message{Type: pipeline.MessageWarning, Source: "h264-parser", Text: "broken frame"}, StatePlaying},
		{pipeline.Message{Type: pipeline.MessageEOS, Source: "stream-record"}, StateStopped},
	}

	for i, step := range sequence {
		if got := c.Handle(step.msg); got != step.want {
			t.Fatalf("step %d (%s): expected %s, got %s", i, step.msg.Type, step.want, got)
		}
	}

	if c.Warnings() != 2 {
		t.Errorf("expected 2 warnings counted, got %d", c.Warnings())
	}
	if c.cause != CauseUpstream {
		t.Errorf("expected upstream cause for undrained EOS, got %s", c.cause)
	}
}

func TestController_TerminalStatesIgnoreMessages(t *testing.T) {
	t.Run("eos_after_stopped", func(t *testing.T) {
		c, g := startedController(t)
		c.requestDrain(CauseInterrupt)
		if c.State() != StateDraining {
			t.Fatalf("expected draining, got %s", c.State())
		}
		if got := c.Handle(pipeline.Message{Type: pipeline.MessageEOS}); got != StateStopped {
			t.Fatalf("expected stopped, got %s", got)
		}

		if got := c.Handle(pipeline.Message{Type: pipeline.MessageEOS}); got != StateStopped {
			t.Errorf("second EOS changed state to %s", got)
		}
		if got := c.Handle(pipeline.Message{Type: pipeline.MessageError, Text: "late"}); got != StateStopped {
			t.Errorf("error after stopped changed state to %s", got)
		}
		if c.err != nil {
			t.Errorf("expected no error after stopped, got %v", c.err)
		}

		c.requestDrain(CauseInterrupt)
		if g.EOSCount() != 1 {
			t.Errorf("expected exactly one EOS sent, got %d", g.EOSCount())
		}
	})

	t.Run("eos_after_failed", func(t *testing.T) {
		c, _ := startedController(t)
		c.Handle(pipeline.Message{Type: pipeline.MessageError, Text: "boom"})
		if got := c.Handle(pipeline.Message{Type: pipeline.MessageEOS}); got != StateFailed {
			t.Errorf("EOS after failed changed state to %s", got)
		}
	})
}

func TestController_ErrorFails(t *testing.T) {
	tests := []struct {
		name  string
		drain bool
	}{
		{"while_playing", false},
		{"while_draining", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, g := startedController(t)
			g.AutoEOS = false
			if tt.drain {
				c.requestDrain(CauseTimer)
			}

			got := c.Handle(pipeline.Message{
				Type:     pipeline.MessageError,
				Source:   "udpsrc",
				Text:     "Could not get/set settings from/on resource",
				Category: "resource",
			})
			if got != StateFailed {
				t.Fatalf("expected failed, got %s", got)
			}

			var perr *PipelineError
			if !errors.As(c.err, &perr) {
				t.Fatalf("expected *PipelineError, got %T", c.err)
			}
			if perr.Source != "udpsrc" || perr.Category != "resource" {
				t.Errorf("unexpected pipeline error: %+v", perr)
			}
		})
	}
}

func TestController_RunTimerDrain(t *testing.T) {
	factory := pipelinetest.NewFactory()
	obs := &recordingObserver{}
	c := NewController(factory, testConfig(t, 20*time.Millisecond), WithObserver(obs), WithRunID("run-1"))

	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != StateStopped || out.Cause != CauseTimer {
		t.Fatalf("expected stopped by timer, got %s by %s", out.State, out.Cause)
	}
	if out.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %q", out.RunID)
	}

	info, err := os.Stat(out.Artifact.Path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
	if out.BytesWritten != uint64(info.Size()) {
		t.Errorf("expected %d bytes written, got %d", info.Size(), out.BytesWritten)
	}

	want := []State{StateIdle, StateBuilding, StatePlaying, StateDraining, StateStopped}
	if got := obs.path(); !equalStates(got, want) {
		t.Errorf("expected path %v, got %v", want, got)
	}

	g := factory.Last()
	if !g.Closed() {
		t.Error("pipeline not released after stop")
	}
	if g.EOSCount() != 1 {
		t.Errorf("expected one EOS, got %d", g.EOSCount())
	}
}

func TestController_InterruptBeforePlaying(t *testing.T) {
	factory := pipelinetest.NewFactory()
	factory.Configure = func(g *pipelinetest.Graph) { g.Stick(1) }

	c := NewController(factory, testConfig(t, 0))
	c.Interrupt()
	c.Interrupt() // coalesced

	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != StateStopped || out.Cause != CauseInterrupt {
		t.Fatalf("expected stopped by interrupt, got %s by %s", out.State, out.Cause)
	}

	ops := factory.Last().Ops()
	eosAt, playing := -1, 0
	for i, op := range ops {
		if op == "state:PLAYING" {
			playing++
		}
		if op == "eos:qtmux" && eosAt < 0 {
			eosAt = i
		}
	}
	if eosAt < 1 {
		t.Fatalf("no EOS in ops: %v", ops)
	}
	if ops[eosAt-1] != "state:PLAYING" {
		t.Errorf("expected PLAYING to be re-requested right before EOS, ops: %v", ops)
	}
	if playing < 2 {
		t.Errorf("expected PLAYING requested at least twice, got %d (ops: %v)", playing, ops)
	}
}

func TestController_ContextCancelDrains(t *testing.T) {
	factory := pipelinetest.NewFactory()
	c := NewController(factory, testConfig(t, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.State != StateStopped || out.Cause != CauseInterrupt {
		t.Errorf("expected stopped by interrupt, got %s by %s", out.State, out.Cause)
	}
}

func TestController_IncompleteDrain(t *testing.T) {
	factory := pipelinetest.NewFactory()
	factory.Configure = func(g *pipelinetest.Graph) { g.AutoEOS = false }

	c := NewController(factory, testConfig(t, 0), WithDrainTimeout(30*time.Millisecond))
	c.Interrupt()

	out, err := c.Run(context.Background())
	if !errors.Is(err, ErrIncompleteDrain) {
		t.Fatalf("expected ErrIncompleteDrain, got %v", err)
	}
	if out.State != StateFailed {
		t.Errorf("expected failed, got %s", out.State)
	}
	if !factory.Last().Closed() {
		t.Error("pipeline not released after drain timeout")
	}
}

func TestController_EOSRejected(t *testing.T) {
	factory := pipelinetest.NewFactory()
	factory.Configure = func(g *pipelinetest.Graph) { g.RejectEOS = true }

	c := NewController(factory, testConfig(t, 0))
	c.Interrupt()

	out, err := c.Run(context.Background())
	if !errors.Is(err, ErrEOSRejected) {
		t.Fatalf("expected ErrEOSRejected, got %v", err)
	}
	if out.State != StateFailed {
		t.Errorf("expected failed, got %s", out.State)
	}
}

func TestController_BuildFailure(t *testing.T) {
	factory := pipelinetest.NewFactory()
	factory.FailCreate["h264parse"] = errors.New("no such element")
	obs := &recordingObserver{}

	c := NewController(factory, testConfig(t, 0), WithObserver(obs))
	out, err := c.Run(context.Background())

	var stageErr *pipeline.StageCreationError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageCreationError, got %v", err)
	}
	if out.State != StateFailed {
		t.Errorf("expected failed, got %s", out.State)
	}
	want := []State{StateIdle, StateBuilding, StateFailed}
	if got := obs.path(); !equalStates(got, want) {
		t.Errorf("expected path %v, got %v", want, got)
	}
}

func TestController_PipelineErrorDuringRun(t *testing.T) {
	factory := pipelinetest.NewFactory()
	factory.Configure = func(g *pipelinetest.Graph) {
		g.Post(pipeline.Message{Type: pipeline.MessageWarning, Text: "jitter"})
		g.Post(pipeline.Message{Type: pipeline.MessageError, Source: "udpsrc", Text: "bind failed"})
	}

	c := NewController(factory, testConfig(t, time.Hour))
	out, err := c.Run(context.Background())

	var perr *PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PipelineError, got %v", err)
	}
	if out.State != StateFailed || out.Warnings != 1 {
		t.Errorf("expected failed with 1 warning, got %s with %d", out.State, out.Warnings)
	}
}

func TestController_RunTwice(t *testing.T) {
	c := NewController(pipelinetest.NewFactory(), testConfig(t, 0))
	c.Interrupt()
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestController_ReassertPlaying(t *testing.T) {
	c, g := startedController(t)

	g.SetCurrentState(pipeline.StatePaused)
	c.reassertPlaying(g)
	if g.CurrentState() != pipeline.StatePlaying {
		t.Errorf("expected PLAYING after reassert, got %s", g.CurrentState())
	}

	c.Handle(pipeline.Message{Type: pipeline.MessageEOS})
	g.SetCurrentState(pipeline.StatePaused)
	c.reassertPlaying(g)
	if g.CurrentState() != pipeline.StatePaused {
		t.Error("PLAYING must not be forced after the session stopped")
	}
}
