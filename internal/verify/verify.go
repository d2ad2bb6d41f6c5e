// Package verify inspects finished MP4 files.
//
// A file is playable only if the muxer wrote its moov box, which happens when
// end-of-stream reached the muxer before the file was closed. A file cut off
// mid-recording has ftyp and mdat but no moov.
package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

var (
	// ErrEmptyFile means the output file exists but has no content
	ErrEmptyFile = errors.New("verify: output file is empty")
	// ErrMissingMoov means the container trailer (moov box) was never written
	ErrMissingMoov = errors.New("verify: moov box missing, file was not finalized")
)

// Summary describes a finalized MP4 file
type Summary struct {
	Path       string
	Size       int64
	Brand      string
	Tracks     int
	Duration   time.Duration
	Fragmented bool
}

// Inspect decodes the box structure of the file at path
func Inspect(path string) (*Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	defer f.Close()

	// lazy mdat: only box headers of the media payload are read
	parsed, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("verify: failed to decode %s: %w", path, err)
	}

	moov := parsed.Moov
	if moov == nil && parsed.Init != nil {
		moov = parsed.Init.Moov
	}
	if moov == nil {
		return nil, ErrMissingMoov
	}

	s := &Summary{
		Path:       path,
		Size:       info.Size(),
		Tracks:     len(moov.Traks),
		Fragmented: parsed.IsFragmented(),
	}
	if parsed.Ftyp != nil {
		s.Brand = parsed.Ftyp.MajorBrand()
	}
	if mvhd := moov.Mvhd; mvhd != nil && mvhd.Timescale > 0 {
		s.Duration = time.Duration(float64(mvhd.Duration) / float64(mvhd.Timescale) * float64(time.Second))
	}

	slog.Debug("verify: output inspected",
		"path", path,
		"size", s.Size,
		"tracks", s.Tracks,
		"duration", s.Duration,
	)
	return s, nil
}
