package gstengine

import "strings"

// ErrorCategory is the classification of GStreamer errors for logs and metrics
type ErrorCategory int

const (
	// CategoryNetwork indicates socket or port failures (bind, receive)
	CategoryNetwork ErrorCategory = iota
	// CategoryCodec indicates stream format failures (caps, parsing, payload)
	CategoryCodec
	// CategoryResource indicates local resource failures (file, disk, permissions)
	CategoryResource
	// CategoryUnknown indicates unclassified errors
	CategoryUnknown
)

// String returns a human-readable string representation of the error category
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryCodec:
		return "codec"
	case CategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

var (
	resourceKeywords = []string{
		"could not open file",
		"could not write",
		"no space left",
		"permission denied",
		"read-only file system",
		"filesink",
	}
	codecKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"depay",
		"parse",
		"format",
		"h264",
		"h265",
		"mpeg4",
		"qtmux",
		"missing plugin",
	}
	networkKeywords = []string{
		"udpsrc",
		"socket",
		"bind",
		"address already in use",
		"network",
		"timeout",
		"could not get/set settings",
	}
)

// Classify categorizes an error from its message and debug string.
//
// go-gst's GError does not expose the error domain, so classification relies
// on keywords. Resource errors are checked first, then codec, then network.
func Classify(text, debug string) ErrorCategory {
	combined := strings.ToLower(text + " " + debug)

	switch {
	case containsAny(combined, resourceKeywords):
		return CategoryResource
	case containsAny(combined, codecKeywords):
		return CategoryCodec
	case containsAny(combined, networkKeywords):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
