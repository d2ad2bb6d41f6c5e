package streamrecord

import (
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/control"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

var (
	// ErrUnsupportedCodec is returned for codec tokens other than MP4, H264
	// and H265 unless codec fallback is enabled
	ErrUnsupportedCodec = pipeline.ErrUnsupportedCodec
	// ErrIncompleteDrain means end-of-stream was not observed within the drain
	// timeout; the output file may be unplayable
	ErrIncompleteDrain = control.ErrIncompleteDrain
	// ErrEOSRejected means the muxer refused the end-of-stream event
	ErrEOSRejected = control.ErrEOSRejected
	// ErrIncompleteOutput means a session stopped but its file failed verification
	ErrIncompleteOutput = errors.New("stream-record: output file is incomplete")
	// ErrAlreadyRunning is returned when Run is called on a recorder that
	// already ran
	ErrAlreadyRunning = errors.New("stream-record: recorder already running")
)

type (
	// StageCreationError means a pipeline stage could not be instantiated
	StageCreationError = pipeline.StageCreationError
	// StageLinkError means two adjacent stages could not be linked
	StageLinkError = pipeline.StageLinkError
	// PipelineError is a fatal error posted by the running pipeline
	PipelineError = control.PipelineError
)
