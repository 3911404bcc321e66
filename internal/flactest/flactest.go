// Package flactest synthesizes FLAC streams for tests. Every structure of the
// format the decoder understands can be produced, including malformed tag
// vectors and all subframe and channel assignment variants.
package flactest

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// A Stream describes a FLAC stream to synthesize.
type Stream struct {
	// StreamInfo metadata block. Zero block sizes and sample count are derived
	// from the frames.
	Info StreamInfo
	// UnknownLength stores a zero sample count in the StreamInfo block.
	UnknownLength bool
	// ComputeMD5 stores the MD5 checksum of the samples of all frames in the
	// StreamInfo block.
	ComputeMD5 bool
	// Metadata blocks following the StreamInfo block.
	Blocks []Block
	// Audio frames.
	Frames []Frame
	// ID3Size prepends an ID3v2 tag with a body of the given size in bytes.
	ID3Size int
}

// StreamInfo mirrors the fields of a StreamInfo metadata block.
type StreamInfo struct {
	BlockSizeMin  uint16
	BlockSizeMax  uint16
	FrameSizeMin  uint32
	FrameSizeMax  uint32
	SampleRate    uint32
	NChannels     uint8
	BitsPerSample uint8
	NSamples      uint64
	MD5sum        [16]byte
}

// Bytes encodes the stream.
func (s *Stream) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	if s.ID3Size > 0 {
		buf.WriteString("ID3")
		// Version 2.4.0, no flags.
		buf.Write([]byte{4, 0, 0})
		// Size encoded as a synchsafe integer.
		n := s.ID3Size
		buf.Write([]byte{byte(n >> 21 & 0x7F), byte(n >> 14 & 0x7F), byte(n >> 7 & 0x7F), byte(n & 0x7F)})
		buf.Write(make([]byte, n))
	}
	buf.WriteString("fLaC")

	info := s.info()
	bw := bitio.NewWriter(buf)
	if err := writeStreamInfo(bw, info, len(s.Blocks) == 0); err != nil {
		return nil, errutil.Err(err)
	}
	for i, block := range s.Blocks {
		if err := writeBlock(bw, block, i == len(s.Blocks)-1); err != nil {
			return nil, errutil.Err(err)
		}
	}
	if err := bw.Close(); err != nil {
		return nil, errutil.Err(err)
	}

	var num uint64
	for i := range s.Frames {
		f := &s.Frames[i]
		if f.Variable {
			if err := f.write(buf, info, num); err != nil {
				return nil, errutil.Err(err)
			}
		} else if err := f.write(buf, info, uint64(i)); err != nil {
			return nil, errutil.Err(err)
		}
		num += uint64(f.blockSize())
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the stream to name within dir, failing the test on error,
// and returns the path of the file.
func WriteFile(tb testing.TB, dir, name string, s *Stream) string {
	tb.Helper()
	data, err := s.Bytes()
	if err != nil {
		tb.Fatalf("unable to encode %q: %v", name, err)
	}
	return WriteBytes(tb, dir, name, data)
}

// WriteBytes stores data as name within dir, failing the test on error, and
// returns the path of the file.
func WriteBytes(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("unable to write %q: %v", path, err)
	}
	return path
}

// info returns the StreamInfo block of the stream with derived fields filled
// in.
func (s *Stream) info() StreamInfo {
	info := s.Info
	var nsamples uint64
	var lo, hi uint16
	for i := range s.Frames {
		n := s.Frames[i].blockSize()
		nsamples += uint64(n)
		if n > hi {
			hi = n
		}
		// The last frame may be shorter than the minimum block size.
		if i < len(s.Frames)-1 && (lo == 0 || n < lo) {
			lo = n
		}
	}
	if lo == 0 {
		lo = hi
	}
	if lo < 16 {
		lo = 16
	}
	if hi < lo {
		hi = lo
	}
	if info.BlockSizeMin == 0 {
		info.BlockSizeMin = lo
	}
	if info.BlockSizeMax == 0 {
		info.BlockSizeMax = hi
	}
	if info.NSamples == 0 && !s.UnknownLength {
		info.NSamples = nsamples
	}
	if s.ComputeMD5 {
		info.MD5sum = s.MD5()
	}
	return info
}

// MD5 returns the MD5 checksum of the interleaved samples of all frames, each
// stored as a little-endian integer of the smallest number of whole bytes
// holding the sample size.
func (s *Stream) MD5() [16]byte {
	h := md5.New()
	width := (int(s.Info.BitsPerSample) + 7) / 8
	var buf [4]byte
	for _, f := range s.Frames {
		for i := 0; i < int(f.blockSize()); i++ {
			for _, ch := range f.Samples {
				binary.LittleEndian.PutUint32(buf[:], uint32(ch[i]))
				h.Write(buf[:width])
			}
		}
	}
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Interleave returns the samples of all frames interleaved across channels.
func (s *Stream) Interleave() []int32 {
	var samples []int32
	for _, f := range s.Frames {
		for i := 0; i < int(f.blockSize()); i++ {
			for _, ch := range f.Samples {
				samples = append(samples, ch[i])
			}
		}
	}
	return samples
}
