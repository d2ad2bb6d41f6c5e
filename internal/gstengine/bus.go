package gstengine

import (
	"time"

	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// busPollInterval bounds how long the forwarder blocks on the bus, so Close
// is noticed promptly
const busPollInterval = 50 * time.Millisecond

// forward moves bus messages onto the messages channel until Close.
//
// Each iteration also dispatches pending sources on the default GLib main
// context without blocking, so callbacks scheduled there keep running even
// though nothing else drives a main loop.
func (g *graph) forward() {
	defer g.wg.Done()
	defer close(g.messages)

	bus := g.pipeline.GetPipelineBus()
	mainCtx := glib.MainContextDefault()

	for {
		select {
		case <-g.stop:
			return
		default:
		}

		mainCtx.Iteration(false)

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		out, ok := g.translate(msg)
		if !ok {
			continue
		}

		select {
		case g.messages <- out:
		case <-g.stop:
			return
		}
	}
}

// translate converts a GStreamer message. Only EOS, errors, warnings and
// state changes of the pipeline itself are forwarded.
func (g *graph) translate(msg *gst.Message) (pipeline.Message, bool) {
	switch msg.Type() {
	case gst.MessageEOS:
		return pipeline.Message{Type: pipeline.MessageEOS, Source: msg.Source()}, true

	case gst.MessageError:
		gerr := msg.ParseError()
		if gerr == nil {
			return pipeline.Message{Type: pipeline.MessageError, Source: msg.Source(), Category: CategoryUnknown.String()}, true
		}
		return pipeline.Message{
			Type:     pipeline.MessageError,
			Source:   msg.Source(),
			Text:     gerr.Error(),
			Debug:    gerr.DebugString(),
			Category: Classify(gerr.Error(), gerr.DebugString()).String(),
		}, true

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		if gerr == nil {
			return pipeline.Message{Type: pipeline.MessageWarning, Source: msg.Source()}, true
		}
		return pipeline.Message{
			Type:   pipeline.MessageWarning,
			Source: msg.Source(),
			Text:   gerr.Error(),
			Debug:  gerr.DebugString(),
		}, true

	case gst.MessageStateChanged:
		if msg.Source() != g.name {
			return pipeline.Message{}, false
		}
		old, new := msg.ParseStateChanged()
		return pipeline.Message{
			Type:     pipeline.MessageStateChanged,
			Source:   msg.Source(),
			OldState: fromGst(old),
			NewState: fromGst(new),
		}, true
	}

	return pipeline.Message{}, false
}
