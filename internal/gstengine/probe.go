package gstengine

import (
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
)

// countSinkBytes installs a buffer probe on the sink pad of the file sink and
// adds every buffer size to the graph byte counter.
//
// Performance: one atomic add per buffer.
func (g *graph) countSinkBytes(sink *gst.Element) {
	pad := sink.GetStaticPad("sink")
	if pad == nil {
		slog.Warn("gstengine: sink pad not found, bytes written will not be tracked", "element", sink.GetName())
		return
	}

	pad.AddProbe(gst.PadProbeTypeBuffer, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
		if buf := info.GetBuffer(); buf != nil {
			g.bytes.Add(uint64(buf.GetSize()))
		}
		return gst.PadProbeOK
	})

	slog.Debug("gstengine: byte counter installed", "element", sink.GetName())
}
