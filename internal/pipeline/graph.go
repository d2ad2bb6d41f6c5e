package pipeline

// State is the lifecycle state of the underlying framework pipeline
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// MessageType classifies pipeline status messages
type MessageType int

const (
	MessageOther MessageType = iota
	MessageEOS
	MessageWarning
	MessageError
	MessageStateChanged
)

func (t MessageType) String() string {
	switch t {
	case MessageEOS:
		return "END_OF_STREAM"
	case MessageWarning:
		return "WARNING"
	case MessageError:
		return "ERROR"
	case MessageStateChanged:
		return "STATE_CHANGED"
	default:
		return "OTHER"
	}
}

// Message is a status message posted by the pipeline
type Message struct {
	Type   MessageType
	Source string
	// Text and Debug carry the error or warning description
	Text  string
	Debug string
	// Category is the engine's classification of an error (network, codec, ...)
	Category string
	// OldState and NewState are set for MessageStateChanged
	OldState State
	NewState State
}

// Element is a live stage handle owned by a Graph
type Element interface {
	Name() string
}

// Graph is a media framework pipeline as seen by the builder and controller.
//
// Implementations must guarantee:
//   - Messages() delivers status messages in the order they were posted
//   - Messages() never blocks the framework; the channel is closed by Close()
//   - SendEOS() returns false if the element rejected the event
//   - Close() releases all resources and is safe to call multiple times
type Graph interface {
	// Name identifies the pipeline; it is the Source of pipeline-level messages
	Name() string
	// Add instantiates a stage and adds it to the graph
	Add(desc StageDescriptor) (Element, error)
	// Link links the output of src to the input of dst
	Link(src, dst Element) error
	// SetState requests a pipeline state change (may complete asynchronously)
	SetState(state State) error
	// CurrentState returns the state the pipeline is currently in
	CurrentState() State
	// SendEOS injects an end-of-stream event at element
	SendEOS(element Element) bool
	// Messages returns the status message channel
	Messages() <-chan Message
	// BytesWritten returns the number of bytes that reached the file sink
	BytesWritten() uint64
	// Close sets the pipeline to NULL and releases it
	Close() error
}

// Factory creates empty graphs
type Factory interface {
	NewGraph(name string) (Graph, error)
}
