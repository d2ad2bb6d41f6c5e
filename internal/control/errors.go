package control

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteDrain means a drain was requested but END_OF_STREAM never
	// reached the end of the pipeline; the output file may be unplayable
	ErrIncompleteDrain = errors.New("control: end-of-stream not observed after drain request")
	// ErrEOSRejected means the muxer refused the end-of-stream event
	ErrEOSRejected = errors.New("control: muxer rejected end-of-stream event")
	// ErrBusClosed means the message channel closed while the session was live
	ErrBusClosed = errors.New("control: pipeline message bus closed unexpectedly")
	// ErrAlreadyRun is returned when Run is called twice on one controller
	ErrAlreadyRun = errors.New("control: controller already run")
)

// PipelineError is a fatal error posted by the pipeline
type PipelineError struct {
	Source   string
	Text     string
	Debug    string
	Category string
}

func (e *PipelineError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("pipeline error from %s [%s]: %s", e.Source, e.Category, e.Text)
	}
	return fmt.Sprintf("pipeline error from %s: %s", e.Source, e.Text)
}

// PipelineWarning is a non-fatal warning posted by the pipeline. Warnings
// are logged and counted; they never change state.
type PipelineWarning struct {
	Source string
	Text   string
	Debug  string
}

func (w PipelineWarning) String() string {
	return fmt.Sprintf("pipeline warning from %s: %s", w.Source, w.Text)
}
