package control

import "time"

// ChunkTimer fires once, ChunkDuration after Start, to request a drain.
//
// A zero duration disables the timer: C() then never fires.
type ChunkTimer struct {
	d     time.Duration
	timer *time.Timer
}

// NewChunkTimer creates an unarmed timer
func NewChunkTimer(d time.Duration) *ChunkTimer {
	return &ChunkTimer{d: d}
}

// Start arms the timer. Calling Start on an armed timer does nothing.
func (t *ChunkTimer) Start() {
	if t.d <= 0 || t.timer != nil {
		return
	}
	t.timer = time.NewTimer(t.d)
}

// C returns the expiry channel, nil while the timer is unarmed or disabled
func (t *ChunkTimer) C() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C
}

// Duration returns the configured duration
func (t *ChunkTimer) Duration() time.Duration { return t.d }

// Stop disarms the timer
func (t *ChunkTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
