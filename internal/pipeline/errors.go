package pipeline

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCodec is returned for codec tokens outside MP4, H264 and H265
var ErrUnsupportedCodec = errors.New("pipeline: unsupported codec")

// StageCreationError reports a stage the framework could not instantiate
type StageCreationError struct {
	Stage   string
	Factory string
	Err     error
}

func (e *StageCreationError) Error() string {
	return fmt.Sprintf("pipeline: failed to create stage %s (%s): %v", e.Stage, e.Factory, e.Err)
}

func (e *StageCreationError) Unwrap() error { return e.Err }

// StageLinkError reports two adjacent stages that could not be linked
type StageLinkError struct {
	Src string
	Dst string
	Err error
}

func (e *StageLinkError) Error() string {
	return fmt.Sprintf("pipeline: failed to link %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *StageLinkError) Unwrap() error { return e.Err }
