package pipeline

import (
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for recording pipeline creation
type Config struct {
	OutputDir     string
	ChunkDuration time.Duration
	UDPPort       uint16
	Codec         Codec
	ClockRate     uint32

	// JitterLatency overrides the jitter buffer latency (0 = framework default)
	JitterLatency time.Duration
	// AllowCodecFallback selects H265 for unknown codecs instead of failing
	AllowCodecFallback bool
	// Now timestamps the output artifact (default time.Now)
	Now func() time.Time
}

// Stage is an instantiated stage together with the descriptor it came from
type Stage struct {
	Descriptor StageDescriptor
	Element    Element
}

// Pipeline is a fully linked, not yet running recording pipeline.
//
// The stage list is fixed at build time: there is no way to add or remove
// stages afterwards.
type Pipeline struct {
	graph    Graph
	stages   []Stage
	variant  Variant
	artifact OutputArtifact
}

// Graph returns the framework graph backing the pipeline
func (p *Pipeline) Graph() Graph { return p.graph }

// Variant returns the codec variant the pipeline decodes
func (p *Pipeline) Variant() Variant { return p.variant }

// Artifact returns the output file the sink writes
func (p *Pipeline) Artifact() OutputArtifact { return p.artifact }

// Stages returns the stages in production order
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Stage returns the stage of the given kind
func (p *Pipeline) Stage(kind StageKind) (Stage, bool) {
	for _, s := range p.stages {
		if s.Descriptor.Kind == kind {
			return s, true
		}
	}
	return Stage{}, false
}

// Descriptors returns the six stage descriptors for cfg in production order:
//
//	udpsrc → rtpjitterbuffer → depayloader → parser → qtmux → filesink
func Descriptors(cfg Config, variant Variant, artifact OutputArtifact) []StageDescriptor {
	return []StageDescriptor{
		UDPSource(cfg.UDPPort, RTPCaps(variant.EncodingName, cfg.ClockRate)),
		JitterBuffer(cfg.JitterLatency),
		variant.Depayloader,
		variant.Parser,
		Muxer(),
		FileSink(artifact.Path),
	}
}

// Build creates and links a recording pipeline.
//
// The pipeline is configured but NOT started (state remains NULL).
// Any stage that fails to instantiate or link aborts the build: the partial
// graph is released and a *StageCreationError or *StageLinkError returned.
func Build(factory Factory, cfg Config) (*Pipeline, error) {
	variant, err := SelectVariant(cfg.Codec, cfg.AllowCodecFallback)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	artifact := NewArtifact(cfg.OutputDir, now()).Unique()

	graph, err := factory.NewGraph("stream-record")
	if err != nil {
		return nil, fmt.Errorf("pipeline: failed to create graph: %w", err)
	}

	descriptors := Descriptors(cfg, variant, artifact)
	stages := make([]Stage, 0, len(descriptors))
	for _, desc := range descriptors {
		elem, err := graph.Add(desc)
		if err != nil {
			release(graph)
			return nil, &StageCreationError{Stage: desc.Name, Factory: desc.Factory, Err: err}
		}
		slog.Debug("pipeline: stage created",
			"kind", desc.Kind.String(),
			"factory", desc.Factory,
			"name", desc.Name,
		)
		stages = append(stages, Stage{Descriptor: desc, Element: elem})
	}

	for i := 1; i < len(stages); i++ {
		src, dst := stages[i-1].Element, stages[i].Element
		if err := graph.Link(src, dst); err != nil {
			release(graph)
			return nil, &StageLinkError{Src: src.Name(), Dst: dst.Name(), Err: err}
		}
	}

	slog.Info("pipeline: recording pipeline created",
		"codec", string(variant.Codec),
		"udp_port", cfg.UDPPort,
		"output", artifact.Path,
		"stages", len(stages),
	)

	return &Pipeline{
		graph:    graph,
		stages:   stages,
		variant:  variant,
		artifact: artifact,
	}, nil
}

func release(graph Graph) {
	if err := graph.Close(); err != nil {
		slog.Warn("pipeline: failed to release partial graph", "error", err)
	}
}
