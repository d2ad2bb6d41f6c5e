// Package gstengine implements pipeline.Factory on top of GStreamer (go-gst).
//
// It is the only package that imports the media framework. Everything above it
// (builder, controller) works against the pipeline.Graph interface.
package gstengine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

var initOnce sync.Once

func initGStreamer() {
	initOnce.Do(func() {
		gst.Init(nil)
		slog.Debug("gstengine: GStreamer initialized")
	})
}

// Factory creates GStreamer-backed graphs
type Factory struct{}

// NewFactory initializes GStreamer and returns a factory
func NewFactory() *Factory {
	initGStreamer()
	return &Factory{}
}

var _ pipeline.Factory = (*Factory)(nil)

// NewGraph creates an empty GStreamer pipeline and starts forwarding its bus
func (f *Factory) NewGraph(name string) (pipeline.Graph, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("gstengine: failed to create pipeline: %w", err)
	}

	g := &graph{
		name:     name,
		pipeline: p,
		messages: make(chan pipeline.Message, 64),
		stop:     make(chan struct{}),
	}
	g.wg.Add(1)
	go g.forward()

	return g, nil
}

// CheckAvailable verifies that GStreamer works and every element factory in
// names can be instantiated.
//
// This is a fail-fast validation that runs at construction time.
func CheckAvailable(names ...string) error {
	initGStreamer()

	for _, name := range names {
		elem, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("gstengine: element %q not available (missing plugin?): %w", name, err)
		}
		elem.SetState(gst.StateNull)
	}

	slog.Debug("gstengine: elements available", "elements", names)
	return nil
}

// element wraps a GStreamer element as a pipeline.Element
type element struct {
	*gst.Element
	name string
}

func (e *element) Name() string { return e.name }

// graph implements pipeline.Graph over a *gst.Pipeline
type graph struct {
	name     string
	pipeline *gst.Pipeline

	messages chan pipeline.Message
	stop     chan struct{}
	wg       sync.WaitGroup

	bytes     atomic.Uint64
	closeOnce sync.Once
}

func (g *graph) Name() string { return g.name }

// Add instantiates desc.Factory under desc.Name and applies its properties.
// Caps properties are converted into GStreamer caps objects.
func (g *graph) Add(desc pipeline.StageDescriptor) (pipeline.Element, error) {
	elem, err := gst.NewElementWithName(desc.Factory, desc.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", desc.Factory, err)
	}

	for key, value := range desc.Properties {
		if caps, ok := value.(pipeline.Caps); ok {
			value = gst.NewCapsFromString(string(caps))
		}
		if err := elem.SetProperty(key, value); err != nil {
			return nil, fmt.Errorf("failed to set %s on %s: %w", key, desc.Name, err)
		}
	}

	if err := g.pipeline.Add(elem); err != nil {
		return nil, fmt.Errorf("failed to add %s to pipeline: %w", desc.Name, err)
	}

	if desc.Kind == pipeline.KindSink {
		g.countSinkBytes(elem)
	}

	return &element{Element: elem, name: desc.Name}, nil
}

func (g *graph) Link(src, dst pipeline.Element) error {
	s, ok := src.(*element)
	if !ok {
		return fmt.Errorf("gstengine: foreign element %q", src.Name())
	}
	d, ok := dst.(*element)
	if !ok {
		return fmt.Errorf("gstengine: foreign element %q", dst.Name())
	}
	return s.Element.Link(d.Element)
}

func (g *graph) SetState(state pipeline.State) error {
	return g.pipeline.SetState(toGst(state))
}

func (g *graph) CurrentState() pipeline.State {
	return fromGst(g.pipeline.GetCurrentState())
}

// SendEOS sends an end-of-stream event to element. The event travels
// downstream to the sink, which posts EOS on the bus once it is written.
func (g *graph) SendEOS(el pipeline.Element) bool {
	e, ok := el.(*element)
	if !ok {
		return false
	}
	return e.SendEvent(gst.NewEOSEvent())
}

func (g *graph) Messages() <-chan pipeline.Message { return g.messages }

func (g *graph) BytesWritten() uint64 { return g.bytes.Load() }

// Close stops the bus forwarder and sets the pipeline to NULL.
//
// Idempotent - safe to call multiple times.
func (g *graph) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.stop)
		g.wg.Wait()

		if e := g.pipeline.SetState(gst.StateNull); e != nil {
			err = fmt.Errorf("gstengine: failed to set pipeline to NULL: %w", e)
			return
		}
		slog.Debug("gstengine: pipeline released", "name", g.name)
	})
	return err
}

func toGst(s pipeline.State) gst.State {
	switch s {
	case pipeline.StateReady:
		return gst.StateReady
	case pipeline.StatePaused:
		return gst.StatePaused
	case pipeline.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGst(s gst.State) pipeline.State {
	switch s {
	case gst.StateReady:
		return pipeline.StateReady
	case gst.StatePaused:
		return pipeline.StatePaused
	case gst.StatePlaying:
		return pipeline.StatePlaying
	default:
		return pipeline.StateNull
	}
}
