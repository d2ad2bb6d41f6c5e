package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
)

// Codec identifies the RTP video payload carried by the incoming stream
type Codec string

const (
	// CodecMP4 is MPEG-4 Part 2 video (RTP encoding name MP4V-ES)
	CodecMP4 Codec = "MP4"
	// CodecH264 is H.264/AVC video
	CodecH264 Codec = "H264"
	// CodecH265 is H.265/HEVC video
	CodecH265 Codec = "H265"
)

// ParseCodec normalizes a configuration token. The result is not validated;
// SelectVariant decides what to do with unknown tokens.
func ParseCodec(s string) Codec {
	return Codec(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether c is one of the supported codecs
func (c Codec) Valid() bool {
	switch c {
	case CodecMP4, CodecH264, CodecH265:
		return true
	default:
		return false
	}
}

// Variant is the decoding half of a pipeline for one codec.
type Variant struct {
	// Codec is the codec the variant decodes (H265 when a fallback happened)
	Codec Codec
	// Requested is the codec token the caller asked for
	Requested Codec
	// EncodingName is announced in the source caps
	EncodingName string
	Depayloader  StageDescriptor
	Parser       StageDescriptor
}

// Fallback reports whether the variant was chosen by the H265 fallback policy
func (v Variant) Fallback() bool {
	return v.Codec != v.Requested
}

// SelectVariant maps a codec to its depayloader and parser descriptors.
//
// Unknown codecs fail with ErrUnsupportedCodec. When allowFallback is set they
// select the H265 variant instead and a warning is logged.
func SelectVariant(codec Codec, allowFallback bool) (Variant, error) {
	switch codec {
	case CodecMP4:
		return Variant{
			Codec:        CodecMP4,
			Requested:    codec,
			EncodingName: "MP4V-ES",
			Depayloader:  Depayloader("rtpmp4vdepay"),
			Parser:       Parser("mpeg4videoparse", "mpeg4-parser"),
		}, nil
	case CodecH264:
		return Variant{
			Codec:        CodecH264,
			Requested:    codec,
			EncodingName: "H264",
			Depayloader:  Depayloader("rtph264depay"),
			Parser:       Parser("h264parse", "h264-parser"),
		}, nil
	case CodecH265:
		return Variant{
			Codec:        CodecH265,
			Requested:    codec,
			EncodingName: "H265",
			Depayloader:  Depayloader("rtph265depay"),
			Parser:       Parser("h265parse", "h265-parser"),
		}, nil
	}

	if !allowFallback {
		return Variant{}, fmt.Errorf("%w: %q (must be MP4, H264 or H265)", ErrUnsupportedCodec, string(codec))
	}

	slog.Warn("pipeline: unsupported codec, falling back to H265",
		"codec", string(codec),
	)
	v, _ := SelectVariant(CodecH265, false)
	v.Requested = codec
	return v, nil
}
