// Package verifytest builds small MP4 byte streams for tests.
package verifytest

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/Eyevinn/mp4ff/mp4"
)

const (
	videoTimescale = 90000
	frameRate      = 25
)

// Progressive returns ftyp, mdat of mdatSize zero bytes, then moov: the
// layout qtmux writes when end-of-stream reached it. The movie lasts seconds.
func Progressive(seconds uint64, mdatSize int64) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteProgressive(&buf, seconds, mdatSize); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteProgressive streams the Progressive layout to w without holding the
// mdat payload in memory.
func WriteProgressive(w io.Writer, seconds uint64, mdatSize int64) error {
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(w); err != nil {
		return err
	}

	mdatOffset := ftyp.Size()
	headerSize, err := writeMdatHeader(w, mdatSize)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(w, zeros{}, mdatSize); err != nil {
		return err
	}

	return progressiveMoov(seconds, mdatSize, mdatOffset+headerSize).Encode(w)
}

// progressiveMoov builds a moov with one video track, sample tables and no
// mvex box
func progressiveMoov(seconds uint64, mdatSize int64, chunkOffset uint64) *mp4.MoovBox {
	moov := mp4.NewMoovBox()
	mvhd := mp4.CreateMvhd()
	mvhd.Timescale = 1000
	mvhd.Duration = seconds * 1000
	mvhd.NextTrackID = 2
	moov.AddChild(mvhd)

	trak := mp4.CreateEmptyTrak(1, videoTimescale, "video", "und")
	moov.AddChild(trak)

	samples := uint32(seconds * frameRate)
	if samples == 0 {
		samples = 1
	}
	stbl := trak.Mdia.Minf.Stbl
	stbl.Stts.SampleCount = []uint32{samples}
	stbl.Stts.SampleTimeDelta = []uint32{videoTimescale / frameRate}
	stbl.Stsz.SampleNumber = samples
	stbl.Stsz.SampleUniformSize = uint32(mdatSize / int64(samples))
	stbl.Stco.ChunkOffset = []uint32{uint32(chunkOffset)}

	return moov
}

// writeMdatHeader writes a 32-bit or 64-bit (largesize) mdat header and
// returns its length
func writeMdatHeader(w io.Writer, payload int64) (uint64, error) {
	if payload+8 <= math.MaxUint32 {
		var hdr [8]byte
		binary.BigEndian.PutUint32(hdr[0:4], uint32(payload+8))
		copy(hdr[4:8], "mdat")
		_, err := w.Write(hdr[:])
		return 8, err
	}

	var hdr [16]byte
	binary.BigEndian.PutUint32(hdr[0:4], 1)
	copy(hdr[4:8], "mdat")
	binary.BigEndian.PutUint64(hdr[8:16], uint64(payload+16))
	_, err := w.Write(hdr[:])
	return 16, err
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// FragmentedInit returns an ftyp+moov init segment (moov with mvex, no
// samples) as written by a fragmenting muxer. The movie lasts seconds.
func FragmentedInit(seconds uint64) ([]byte, error) {
	seg := mp4.CreateEmptyInit()
	seg.AddEmptyTrack(videoTimescale, "video", "und")
	seg.Moov.Mvhd.Timescale = 1000
	seg.Moov.Mvhd.Duration = seconds * 1000

	var buf bytes.Buffer
	if err := seg.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unfinalized returns ftyp+mdat bytes, what a muxer leaves behind when the
// file is closed before end-of-stream reached it.
func Unfinalized() ([]byte, error) {
	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, err
	}
	mdat := &mp4.MdatBox{Data: make([]byte, 256)}
	if err := mdat.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
