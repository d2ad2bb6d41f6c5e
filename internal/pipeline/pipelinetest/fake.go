// Package pipelinetest provides an in-memory pipeline.Factory for tests that
// exercise pipeline construction and control without a media framework.
package pipelinetest

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/pipeline"
)

// DefaultPayload is what a fake sink writes when the muxer receives EOS
var DefaultPayload = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2")

// Factory creates fake graphs and keeps every graph it created
type Factory struct {
	mu sync.Mutex

	// FailCreate makes Add fail for the given factory names
	FailCreate map[string]error
	// FailLink makes Link fail when the source stage has the given name
	FailLink map[string]error
	// FailGraph makes NewGraph fail
	FailGraph error
	// Configure is called on every new graph before it is returned
	Configure func(*Graph)

	graphs []*Graph
}

// NewFactory returns an empty fake factory
func NewFactory() *Factory {
	return &Factory{
		FailCreate: map[string]error{},
		FailLink:   map[string]error{},
	}
}

// NewGraph implements pipeline.Factory
func (f *Factory) NewGraph(name string) (pipeline.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailGraph != nil {
		return nil, f.FailGraph
	}

	g := &Graph{
		name:       name,
		state:      pipeline.StateNull,
		messages:   make(chan pipeline.Message, 64),
		failCreate: f.FailCreate,
		failLink:   f.FailLink,
		AutoEOS:    true,
		Payload:    DefaultPayload,
	}
	if f.Configure != nil {
		f.Configure(g)
	}
	f.graphs = append(f.graphs, g)
	return g, nil
}

// Graphs returns every graph created so far
func (f *Factory) Graphs() []*Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Graph, len(f.graphs))
	copy(out, f.graphs)
	return out
}

// Last returns the most recently created graph, or nil
func (f *Factory) Last() *Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.graphs) == 0 {
		return nil
	}
	return f.graphs[len(f.graphs)-1]
}

// Element is a fake stage
type Element struct {
	Descriptor pipeline.StageDescriptor
}

// Name implements pipeline.Element
func (e *Element) Name() string { return e.Descriptor.Name }

// Graph is a fake pipeline.Graph recording every operation
type Graph struct {
	mu sync.Mutex

	name       string
	elements   []*Element
	links      [][2]string
	ops        []string
	state      pipeline.State
	stuck      int
	messages   chan pipeline.Message
	closed     bool
	eosCount   int
	failCreate map[string]error
	failLink   map[string]error
	bytes      atomic.Uint64

	// AutoEOS makes an EOS sent to the muxer write Payload to the sink
	// location and post an END_OF_STREAM message
	AutoEOS bool
	// RejectEOS makes SendEOS report failure
	RejectEOS bool
	// Payload is written to the sink location on EOS
	Payload []byte
}

var _ pipeline.Graph = (*Graph)(nil)

// Name implements pipeline.Graph
func (g *Graph) Name() string { return g.name }

// Add implements pipeline.Graph
func (g *Graph) Add(desc pipeline.StageDescriptor) (pipeline.Element, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.failCreate[desc.Factory]; ok {
		g.ops = append(g.ops, "add-failed:"+desc.Name)
		return nil, err
	}
	el := &Element{Descriptor: desc}
	g.elements = append(g.elements, el)
	g.ops = append(g.ops, "add:"+desc.Name)
	return el, nil
}

// Link implements pipeline.Graph
func (g *Graph) Link(src, dst pipeline.Element) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.failLink[src.Name()]; ok {
		return err
	}
	g.links = append(g.links, [2]string{src.Name(), dst.Name()})
	g.ops = append(g.ops, fmt.Sprintf("link:%s>%s", src.Name(), dst.Name()))
	return nil
}

// SetState implements pipeline.Graph. While the graph is stuck, requests for
// PLAYING are acknowledged but the current state does not change.
func (g *Graph) SetState(state pipeline.State) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed && state != pipeline.StateNull {
		return errors.New("pipelinetest: graph closed")
	}
	g.ops = append(g.ops, "state:"+state.String())
	if state == pipeline.StatePlaying && g.stuck > 0 {
		g.stuck--
		return nil
	}
	g.state = state
	return nil
}

// CurrentState implements pipeline.Graph
func (g *Graph) CurrentState() pipeline.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SendEOS implements pipeline.Graph
func (g *Graph) SendEOS(element pipeline.Element) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ops = append(g.ops, "eos:"+element.Name())
	g.eosCount++
	if g.RejectEOS {
		return false
	}
	if !g.AutoEOS {
		return true
	}

	if location := g.sinkLocation(); location != "" {
		if err := os.WriteFile(location, g.Payload, 0o644); err == nil {
			g.bytes.Add(uint64(len(g.Payload)))
		}
	}
	g.post(pipeline.Message{Type: pipeline.MessageEOS, Source: g.name})
	return true
}

// Messages implements pipeline.Graph
func (g *Graph) Messages() <-chan pipeline.Message { return g.messages }

// BytesWritten implements pipeline.Graph
func (g *Graph) BytesWritten() uint64 { return g.bytes.Load() }

// Close implements pipeline.Graph
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.state = pipeline.StateNull
	g.ops = append(g.ops, "close")
	close(g.messages)
	return nil
}

// Post queues a status message as if the framework had posted it
func (g *Graph) Post(msg pipeline.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.post(msg)
}

func (g *Graph) post(msg pipeline.Message) {
	if g.closed {
		return
	}
	if msg.Source == "" {
		msg.Source = g.name
	}
	g.messages <- msg
}

// SetCurrentState forces the reported state, e.g. to simulate a pipeline
// that silently dropped out of PLAYING
func (g *Graph) SetCurrentState(state pipeline.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
}

// Stick makes the next n PLAYING requests leave the current state unchanged
func (g *Graph) Stick(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stuck = n
}

// Ops returns the operation log
func (g *Graph) Ops() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.ops))
	copy(out, g.ops)
	return out
}

// Elements returns the descriptors of added stages in order
func (g *Graph) Elements() []pipeline.StageDescriptor {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]pipeline.StageDescriptor, len(g.elements))
	for i, el := range g.elements {
		out[i] = el.Descriptor
	}
	return out
}

// Links returns the established links as [src, dst] name pairs
func (g *Graph) Links() [][2]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([][2]string, len(g.links))
	copy(out, g.links)
	return out
}

// Closed reports whether Close was called
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// EOSCount returns how many EOS events were sent
func (g *Graph) EOSCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eosCount
}

func (g *Graph) sinkLocation() string {
	for _, el := range g.elements {
		if el.Descriptor.Kind == pipeline.KindSink {
			if loc, ok := el.Descriptor.Properties["location"].(string); ok {
				return loc
			}
		}
	}
	return ""
}
