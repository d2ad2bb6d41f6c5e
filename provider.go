package streamrecord

import "context"

// StreamRecorder defines the contract for recording a live stream to disk
//
// Implementations must guarantee:
//   - Run() blocks until every session reached Stopped or Failed
//   - Run() never abandons an open file: cancellation drains it first
//   - Interrupt() never blocks and is safe to call from any goroutine
//   - Stats() is thread-safe (can be called from any goroutine)
type StreamRecorder interface {
	// Run builds the pipeline, records and finalizes the output.
	//
	// Cancelling ctx is an interrupt: end-of-stream is injected at the muxer
	// and Run returns once the file is closed (or the drain timeout expired).
	//
	// Returns a Report with one Recording per session. The error is nil only
	// when every session stopped cleanly and, if enabled, its output passed
	// verification. Errors can be matched with errors.Is / errors.As:
	//   - ErrUnsupportedCodec, *StageCreationError, *StageLinkError (build)
	//   - *PipelineError (framework error while recording)
	//   - ErrIncompleteDrain, ErrEOSRejected (finalization)
	//   - ErrIncompleteOutput (file without moov box)
	//
	// Example:
	//   rec, _ := streamrecord.NewRecorder(cfg)
	//   report, err := rec.Run(ctx)
	//   if err != nil {
	//       log.Fatal(err)
	//   }
	//   log.Printf("written %s", report.Last().Path)
	Run(ctx context.Context) (*Report, error)

	// Interrupt requests a graceful drain of the current session and stops
	// rotation. Repeated calls are coalesced.
	Interrupt()

	// Stats returns current recorder statistics.
	Stats() RecorderStats
}
