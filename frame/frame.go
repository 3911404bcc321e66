// Package frame implements access to FLAC audio frames.
//
// A brief introduction of the FLAC audio format follows. FLAC encoders divide
// the audio stream into blocks through a process called blocking. A block
// contains the unencoded audio samples from all channels during a short period
// of time. Each audio block is divided into subblocks, one per channel.
//
// There is often a correlation between the left and right channel of stereo
// audio. Using inter-channel decorrelation it is possible to store only one of
// the channels and the difference between the channels, or store the average
// of the channels and their difference. An encoder decorrelates audio samples
// as follows:
//
//	mid = (left + right)/2 // average of the channels
//	side = left - right    // difference between the channels
//
// The blocks are encoded using a variety of prediction methods and stored in
// frames. Blocks and subblocks contains unencoded audio samples while frames
// and subframes contain encoded audio samples. A FLAC stream contains one or
// more audio frames.
//
// ref: https://www.xiph.org/flac/format.html#frame
package frame

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/icza/bitio"
	"github.com/litesound/flac/meta"
	"github.com/mewkiz/pkg/errutil"
)

// A Frame contains the header and subframes of an audio frame. It holds the
// decoded samples from a block (a part) of the audio stream, one subframe per
// channel.
//
// ref: https://www.xiph.org/flac/format.html#frame
type Frame struct {
	// Audio frame header.
	Header
	// One subframe per channel, containing decoded and decorrelated audio
	// samples.
	Subframes []*Subframe
	// CRC-16 checksum of the frame.
	CRC16 uint16
}

// Parse reads and parses an entire audio frame from r, including the audio
// samples of its subframes, and verifies the CRC-8 of its header and the
// CRC-16 of the frame. The StreamInfo block supplies the sample rate and
// sample size of frames which do not store them; it may be nil otherwise.
//
// Parse returns io.EOF, unwrapped, when r ends before the first byte of the
// frame. If r implements io.ByteReader no byte past the end of the frame is
// consumed.
func Parse(r io.Reader, info *meta.StreamInfo) (*Frame, error) {
	hr := newHashReader(r)
	frame := new(Frame)
	if err := frame.parseHeader(hr, info); err != nil {
		return nil, err
	}
	br := bitio.NewReader(hr)

	// Parse subframes.
	nchannels := frame.Channels.Count()
	frame.Subframes = make([]*Subframe, nchannels)
	for i := range frame.Subframes {
		// The side channel requires an extra bit per sample when using
		// inter-channel decorrelation.
		bps := uint(frame.BitsPerSample)
		if frame.Channels.isSide(i) {
			bps++
		}
		subframe, err := parseSubframe(br, frame.BlockSize, bps)
		if err != nil {
			return nil, fmt.Errorf("subframe %d: %w", i, err)
		}
		frame.Subframes[i] = subframe
	}

	// Inter-channel correlation of subframe samples.
	frame.correlate()

	// 0-7 bits: zero padding to byte alignment.
	if skipped := br.Align(); skipped > 0 && hr.buf[0]&(1<<skipped-1) != 0 {
		return nil, errutil.Newf("non-zero padding bits at end of frame")
	}

	// The CRC-16 covers every byte of the frame up to, but excluding, the
	// checksum itself.
	want := hr.crc16.Sum16()

	// 2 bytes: CRC-16 checksum.
	got, err := br.ReadBits(16)
	if err != nil {
		return nil, unexpected(err)
	}
	frame.CRC16 = uint16(got)
	if frame.CRC16 != want {
		return nil, fmt.Errorf("%w; frame CRC-16 expected 0x%04X, got 0x%04X", ErrChecksum, want, frame.CRC16)
	}
	return frame, nil
}

// correlate reverts any inter-channel decorrelation. Samples of decorrelated
// channels are reconstructed into the left and right channel, which fit in 32
// bits.
//
// ref: https://www.xiph.org/flac/format.html#interchannel
func (frame *Frame) correlate() {
	switch frame.Channels {
	case ChannelsLeftSide:
		// 2 subframes: left, side.
		left := frame.Subframes[0].samples
		side := frame.Subframes[1].samples
		for i := range side {
			// right = left - side
			side[i] = left[i] - side[i]
		}
	case ChannelsSideRight:
		// 2 subframes: side, right.
		side := frame.Subframes[0].samples
		right := frame.Subframes[1].samples
		for i := range side {
			// left = right + side
			side[i] += right[i]
		}
	case ChannelsMidSide:
		// 2 subframes: mid, side.
		mid := frame.Subframes[0].samples
		side := frame.Subframes[1].samples
		for i := range side {
			m := mid[i]<<1 | side[i]&1
			s := side[i]
			// left = (mid + side) / 2
			mid[i] = (m + s) >> 1
			// right = (mid - side) / 2
			side[i] = (m - s) >> 1
		}
	}
	for _, subframe := range frame.Subframes {
		subframe.Samples = make([]int32, len(subframe.samples))
		for i, sample := range subframe.samples {
			subframe.Samples[i] = int32(sample)
		}
		subframe.samples = nil
	}
}

// NSamples returns the number of inter-channel samples held by the frame.
func (frame *Frame) NSamples() int {
	return int(frame.BlockSize)
}

// AppendInterleaved appends the samples of the frame to dst, interleaved
// across channels, and returns the extended slice.
func (frame *Frame) AppendInterleaved(dst []int32) []int32 {
	for i := 0; i < int(frame.BlockSize); i++ {
		for _, subframe := range frame.Subframes {
			dst = append(dst, subframe.Samples[i])
		}
	}
	return dst
}

// Hash adds the decoded audio samples of the frame to a running MD5 hash. It
// can be used in conjunction with StreamInfo.MD5sum to verify the integrity of
// the decoded audio samples.
//
// Samples are hashed interleaved as little-endian signed integers of the
// smallest whole number of bytes holding the sample size.
func (frame *Frame) Hash(md5sum hash.Hash) {
	var buf [4]byte
	width := (int(frame.BitsPerSample) + 7) / 8
	for i := 0; i < int(frame.BlockSize); i++ {
		for _, subframe := range frame.Subframes {
			binary.LittleEndian.PutUint32(buf[:], uint32(subframe.Samples[i]))
			md5sum.Write(buf[:width])
		}
	}
}
