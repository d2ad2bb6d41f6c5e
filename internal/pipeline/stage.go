package pipeline

import (
	"fmt"
	"time"
)

// StageKind is the closed set of stages a recording pipeline is made of.
type StageKind int

const (
	// KindSource receives RTP packets from the network (udpsrc)
	KindSource StageKind = iota
	// KindJitterBuffer reorders and smooths packet arrival (rtpjitterbuffer)
	KindJitterBuffer
	// KindDepayloader extracts elementary-stream bytes from RTP payloads
	KindDepayloader
	// KindParser frames elementary-stream bytes into access units
	KindParser
	// KindMuxer interleaves access units into the MP4 container (qtmux)
	KindMuxer
	// KindSink writes the container to disk (filesink)
	KindSink
)

// Order is the production order stages are instantiated and linked in.
var Order = [...]StageKind{
	KindSource,
	KindJitterBuffer,
	KindDepayloader,
	KindParser,
	KindMuxer,
	KindSink,
}

// String returns a human-readable string representation of the stage kind
func (k StageKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindJitterBuffer:
		return "jitter-buffer"
	case KindDepayloader:
		return "depayloader"
	case KindParser:
		return "parser"
	case KindMuxer:
		return "muxer"
	case KindSink:
		return "sink"
	default:
		return fmt.Sprintf("stage(%d)", int(k))
	}
}

// Caps is a media capability string. Engines translate it into their native
// caps object instead of setting it as a plain string property.
type Caps string

// StageDescriptor describes a stage before it is instantiated.
//
// Descriptors are built with the typed constructors below (UDPSource,
// JitterBuffer, ...) so every kind carries only the properties it understands.
// A descriptor is consumed once by Graph.Add and never mutated afterwards.
type StageDescriptor struct {
	Kind       StageKind
	Factory    string
	Name       string
	Properties map[string]any
}

// UDPSource describes the network source listening on port for RTP packets
// matching caps.
func UDPSource(port uint16, caps Caps) StageDescriptor {
	return StageDescriptor{
		Kind:    KindSource,
		Factory: "udpsrc",
		Name:    "udpsrc",
		Properties: map[string]any{
			"port": int(port),
			"caps": caps,
		},
	}
}

// JitterBuffer describes the RTP jitter buffer. A zero latency keeps the
// framework default.
func JitterBuffer(latency time.Duration) StageDescriptor {
	props := map[string]any{}
	if latency > 0 {
		props["latency"] = uint(latency.Milliseconds())
	}
	return StageDescriptor{
		Kind:       KindJitterBuffer,
		Factory:    "rtpjitterbuffer",
		Name:       "rtpjitterbuffer",
		Properties: props,
	}
}

// Depayloader describes the codec specific RTP depayloader.
func Depayloader(factory string) StageDescriptor {
	return StageDescriptor{
		Kind:       KindDepayloader,
		Factory:    factory,
		Name:       "rtpdepay",
		Properties: map[string]any{},
	}
}

// Parser describes the codec specific elementary-stream parser.
func Parser(factory, name string) StageDescriptor {
	return StageDescriptor{
		Kind:       KindParser,
		Factory:    factory,
		Name:       name,
		Properties: map[string]any{},
	}
}

// Muxer describes the MP4 container muxer. End-of-stream is injected here
// so the trailer (moov) is written before the sink closes the file.
func Muxer() StageDescriptor {
	return StageDescriptor{
		Kind:       KindMuxer,
		Factory:    "qtmux",
		Name:       "qtmux",
		Properties: map[string]any{},
	}
}

// FileSink describes the sink writing the container to location.
func FileSink(location string) StageDescriptor {
	return StageDescriptor{
		Kind:    KindSink,
		Factory: "filesink",
		Name:    "filesink",
		Properties: map[string]any{
			"location": location,
		},
	}
}

// RTPCaps builds the capability string the UDP source announces.
//
// Format: "application/x-rtp,media=video,clock-rate=N,encoding-name=(string)NAME"
func RTPCaps(encodingName string, clockRate uint32) Caps {
	if clockRate == 0 {
		return Caps(fmt.Sprintf("application/x-rtp,media=video,encoding-name=(string)%s", encodingName))
	}
	return Caps(fmt.Sprintf(
		"application/x-rtp,media=video,clock-rate=(int)%d,encoding-name=(string)%s",
		clockRate, encodingName,
	))
}
