package meta

import (
	"bytes"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// StreamInfo contains the basic properties of a FLAC audio stream, such as its
// sample rate and channel count. It is the only mandatory metadata block and
// must be present as the first metadata block of a FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_streaminfo
type StreamInfo struct {
	// Minimum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMin uint16
	// Maximum block size (in samples) used in the stream; between 16 and 65535
	// samples.
	BlockSizeMax uint16
	// Minimum frame size in bytes; a 0 value implies unknown.
	FrameSizeMin uint32
	// Maximum frame size in bytes; a 0 value implies unknown.
	FrameSizeMax uint32
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate uint32
	// Number of channels; between 1 and 8 channels.
	NChannels uint8
	// Sample size in bits-per-sample; between 4 and 32 bits.
	BitsPerSample uint8
	// Total number of inter-channel samples in the stream. One second of 44.1
	// KHz audio will have 44100 samples regardless of the number of channels. A
	// 0 value implies unknown.
	NSamples uint64
	// MD5 checksum of the unencoded audio data; all zero if not computed.
	MD5sum [16]uint8
}

// streamInfoLength is the fixed length in bytes of a StreamInfo block body.
const streamInfoLength = 34

// parseStreamInfo reads and parses the body of a StreamInfo metadata block.
func (block *Block) parseStreamInfo() error {
	if block.Length != streamInfoLength {
		return errutil.Newf("invalid StreamInfo block length; expected %d, got %d", streamInfoLength, block.Length)
	}
	buf, err := block.readBytes(streamInfoLength)
	if err != nil {
		return err
	}
	br := bitio.NewReader(bytes.NewReader(buf))
	si := new(StreamInfo)
	block.Body = si

	// 16 bits: BlockSizeMin.
	x, err := br.ReadBits(16)
	if err != nil {
		return errutil.Err(err)
	}
	if x < 16 {
		return errutil.Newf("invalid minimum block size (%d); expected >= 16", x)
	}
	si.BlockSizeMin = uint16(x)

	// 16 bits: BlockSizeMax.
	x, err = br.ReadBits(16)
	if err != nil {
		return errutil.Err(err)
	}
	if x < 16 {
		return errutil.Newf("invalid maximum block size (%d); expected >= 16", x)
	}
	si.BlockSizeMax = uint16(x)

	// 24 bits: FrameSizeMin.
	x, err = br.ReadBits(24)
	if err != nil {
		return errutil.Err(err)
	}
	si.FrameSizeMin = uint32(x)

	// 24 bits: FrameSizeMax.
	x, err = br.ReadBits(24)
	if err != nil {
		return errutil.Err(err)
	}
	si.FrameSizeMax = uint32(x)

	// 20 bits: SampleRate.
	x, err = br.ReadBits(20)
	if err != nil {
		return errutil.Err(err)
	}
	if x == 0 || x > 655350 {
		return errutil.Newf("invalid sample rate (%d)", x)
	}
	si.SampleRate = uint32(x)

	// 3 bits: NChannels; stored as (number of channels) - 1.
	x, err = br.ReadBits(3)
	if err != nil {
		return errutil.Err(err)
	}
	si.NChannels = uint8(x + 1)

	// 5 bits: BitsPerSample; stored as (bits-per-sample) - 1.
	x, err = br.ReadBits(5)
	if err != nil {
		return errutil.Err(err)
	}
	if x < 3 {
		return errutil.Newf("invalid sample size (%d); expected >= 4", x+1)
	}
	si.BitsPerSample = uint8(x + 1)

	// 36 bits: NSamples.
	si.NSamples, err = br.ReadBits(36)
	if err != nil {
		return errutil.Err(err)
	}

	// 16 bytes: MD5sum; the preceding fields end on a byte boundary.
	copy(si.MD5sum[:], buf[streamInfoLength-len(si.MD5sum):])
	return nil
}
