// Package streamrecord records a live RTP/UDP video stream to MP4 files using
// GStreamer.
//
// The recording pipeline is fixed:
//
//	udpsrc → rtpjitterbuffer → depayloader → parser → qtmux → filesink
//
// with the depayloader and parser chosen by codec (MP4V-ES, H.264, H.265).
// A single control loop owns the pipeline. When the chunk timer expires or
// the recorder is interrupted, end-of-stream is injected at the muxer so it
// can write the moov box; the file is declared finished only after
// end-of-stream reached the sink.
//
// # Quick Start
//
//	rec, err := streamrecord.NewRecorder(streamrecord.Config{
//	    OutputDir:     "/var/recordings",
//	    UDPPort:       5000,
//	    Codec:         streamrecord.CodecH264,
//	    ClockRate:     90000,
//	    ChunkDuration: 5 * time.Minute,
//	    VerifyOutput:  true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	report, err := rec.Run(ctx) // Ctrl-C drains and finalizes the file
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Printf("written %s", report.Last().Path)
//
// # Session Lifecycle
//
//	Idle → Building → Playing → Draining → Stopped
//	                     ↓          ↓
//	                   Failed     Failed
//
// Warnings from the pipeline are logged and counted and never change state.
// Errors fail the session. End-of-stream that arrives without a drain request
// (the sender closed the stream) stops the session normally.
//
// # Output Files
//
// Files are named <output-dir>/test_<YYYYMMDD_HHMMSS>.mp4 from the time the
// pipeline is built. With Config.Rotate a new file is started every
// ChunkDuration until the recorder is interrupted.
package streamrecord
