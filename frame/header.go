package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
	"github.com/litesound/flac/meta"
	"github.com/mewkiz/pkg/errutil"
)

// A Header contains the basic properties of an audio frame, such as its sample
// rate and channel count. To facilitate random access decoding each frame
// header starts with a sync-code. This allows the decoder to synchronize and
// locate the start of a frame header.
//
// ref: https://www.xiph.org/flac/format.html#frame_header
type Header struct {
	// Specifies if the block size is fixed or variable.
	HasFixedBlockSize bool
	// Block size in inter-channel samples, i.e. the number of audio samples in
	// each subframe.
	BlockSize uint16
	// Sample rate in Hz; resolved from StreamInfo when not stored in the frame.
	SampleRate uint32
	// Specifies the number of channels (subframes) that exist in the frame,
	// their order and possible inter-channel decorrelation.
	Channels Channels
	// Sample size in bits-per-sample; resolved from StreamInfo when not stored
	// in the frame.
	BitsPerSample uint8
	// Specifies the frame number if the block size is fixed, and the first
	// sample number in the frame otherwise. When using fixed block size, the
	// first sample number in the frame can be derived by multiplying the frame
	// number with the block size (in samples).
	Num uint64
}

// syncCode marks the beginning of a frame header; 11111111111110.
const syncCode = 0x3FFE

// Errors reported while decoding a frame.
var (
	// ErrInvalidSync reports a frame which does not start with a sync code.
	ErrInvalidSync = errors.New("frame: invalid sync code")
	// ErrChecksum reports a CRC mismatch of a frame header or a frame.
	ErrChecksum = errors.New("frame: checksum mismatch")
)

// parseHeader reads and parses the header of an audio frame. An io.EOF is
// returned as is when the stream ends cleanly before the first byte of the
// frame.
func (frame *Frame) parseHeader(hr *hashReader, info *meta.StreamInfo) error {
	// 14 bits: sync-code (11111111111110)
	//  1 bit:  reserved.
	//  1 bit:  HasFixedBlockSize.
	b0, err := hr.ReadByte()
	if err != nil {
		// Clean end of stream.
		return err
	}
	b1, err := hr.ReadByte()
	if err != nil {
		return unexpected(err)
	}
	x := uint16(b0)<<8 | uint16(b1)
	if x>>2 != syncCode {
		return fmt.Errorf("%w; expected 0x%04X, got 0x%04X", ErrInvalidSync, syncCode, x>>2)
	}
	if x&0x2 != 0 {
		return errutil.Newf("non-zero reserved value in frame header")
	}
	// Blocking strategy:
	//    0: fixed block size.
	//    1: variable block size.
	frame.HasFixedBlockSize = x&0x1 == 0

	br := bitio.NewReader(hr)

	// 4 bits: BlockSize. The block size parsing is simplified by deferring it to
	// the end of the header.
	blockSize, err := br.ReadBits(4)
	if err != nil {
		return unexpected(err)
	}

	// 4 bits: SampleRate. The sample rate parsing is simplified by deferring it
	// to the end of the header.
	sampleRate, err := br.ReadBits(4)
	if err != nil {
		return unexpected(err)
	}

	// 4 bits: Channels.
	//
	// The 4 bits are used to specify the channels as follows:
	//    0000: (1 channel) mono.
	//    0001: (2 channels) left, right.
	//    0010: (3 channels) left, right, center.
	//    0011: (4 channels) left, right, left surround, right surround.
	//    0100: (5 channels) left, right, center, left surround, right surround.
	//    0101: (6 channels) left, right, center, LFE, left surround, right surround.
	//    0110: (7 channels) left, right, center, LFE, center surround, side left, side right.
	//    0111: (8 channels) left, right, center, LFE, left surround, right surround, side left, side right.
	//    1000: (2 channels) left, side; using inter-channel decorrelation.
	//    1001: (2 channels) side, right; using inter-channel decorrelation.
	//    1010: (2 channels) mid, side; using inter-channel decorrelation.
	//    1011: reserved.
	//    1100: reserved.
	//    1101: reserved.
	//    1111: reserved.
	x64, err := br.ReadBits(4)
	if err != nil {
		return unexpected(err)
	}
	if x64 >= 0xB {
		return errutil.Newf("reserved channel assignment bit pattern (%04b)", x64)
	}
	frame.Channels = Channels(x64)

	// 3 bits: BitsPerSample.
	if x64, err = br.ReadBits(3); err != nil {
		return unexpected(err)
	}
	// The 3 bits are used to specify the sample size as follows:
	//    000: unknown sample size; get from StreamInfo.
	//    001: 8 bits-per-sample.
	//    010: 12 bits-per-sample.
	//    011: reserved.
	//    100: 16 bits-per-sample.
	//    101: 20 bits-per-sample.
	//    110: 24 bits-per-sample.
	//    111: 32 bits-per-sample.
	switch x64 {
	case 0x0:
		// 000: unknown bits-per-sample; get from StreamInfo.
		if info == nil {
			return errutil.Newf("sample size stored in StreamInfo, which is unavailable")
		}
		frame.BitsPerSample = info.BitsPerSample
	case 0x1:
		frame.BitsPerSample = 8
	case 0x2:
		frame.BitsPerSample = 12
	case 0x4:
		frame.BitsPerSample = 16
	case 0x5:
		frame.BitsPerSample = 20
	case 0x6:
		frame.BitsPerSample = 24
	case 0x7:
		frame.BitsPerSample = 32
	default:
		// 011: reserved.
		return errutil.Newf("reserved sample size bit pattern (%03b)", x64)
	}

	// 1 bit: reserved.
	if x64, err = br.ReadBits(1); err != nil {
		return unexpected(err)
	}
	if x64 != 0 {
		return errutil.Newf("non-zero reserved value in frame header")
	}

	// if (fixed block size)
	//    1-6 bytes: UTF-8 encoded frame number.
	// else
	//    1-7 bytes: UTF-8 encoded sample number.
	frame.Num, err = decodeUTF8(br)
	if err != nil {
		return err
	}
	if frame.HasFixedBlockSize && frame.Num >= 1<<31 {
		return errutil.Newf("frame number %d exceeds 31 bits", frame.Num)
	}

	// Block size in inter-channel samples:
	//    0000: reserved.
	//    0001: 192 samples.
	//    0010-0101: 576 * 2^(n-2) samples.
	//    0110: get 8 bit (block size)-1 from the end of the header.
	//    0111: get 16 bit (block size)-1 from the end of the header.
	//    1000-1111: 256 * 2^(n-8) samples.
	n := blockSize
	switch {
	case n == 0x0:
		// 0000: reserved.
		return errutil.Newf("reserved block size bit pattern (%04b)", n)
	case n == 0x1:
		// 0001: 192 samples.
		frame.BlockSize = 192
	case n >= 0x2 && n <= 0x5:
		// 0010-0101: 576 * 2^(n-2) samples.
		frame.BlockSize = 576 * (1 << (n - 2))
	case n == 0x6:
		// 0110: get 8 bit (block size)-1 from the end of the header.
		x, err := br.ReadBits(8)
		if err != nil {
			return unexpected(err)
		}
		frame.BlockSize = uint16(x + 1)
	case n == 0x7:
		// 0111: get 16 bit (block size)-1 from the end of the header.
		x, err := br.ReadBits(16)
		if err != nil {
			return unexpected(err)
		}
		if x == 0xFFFF {
			return errutil.Newf("invalid block size 65536")
		}
		frame.BlockSize = uint16(x + 1)
	default:
		//    1000-1111: 256 * 2^(n-8) samples.
		frame.BlockSize = 256 * (1 << (n - 8))
	}

	// Sample rate:
	//    0000: unknown sample rate; get from StreamInfo.
	//    0001: 88.2 kHz.
	//    0010: 176.4 kHz.
	//    0011: 192 kHz.
	//    0100: 8 kHz.
	//    0101: 16 kHz.
	//    0110: 22.05 kHz.
	//    0111: 24 kHz.
	//    1000: 32 kHz.
	//    1001: 44.1 kHz.
	//    1010: 48 kHz.
	//    1011: 96 kHz.
	//    1100: get 8 bit sample rate (in kHz) from the end of the header.
	//    1101: get 16 bit sample rate (in Hz) from the end of the header.
	//    1110: get 16 bit sample rate (in daHz) from the end of the header.
	//    1111: invalid.
	switch sampleRate {
	case 0x0:
		if info == nil {
			return errutil.Newf("sample rate stored in StreamInfo, which is unavailable")
		}
		frame.SampleRate = info.SampleRate
	case 0xC:
		// 1100: get 8 bit sample rate (in kHz) from the end of the header.
		x, err := br.ReadBits(8)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x * 1000)
	case 0xD:
		// 1101: get 16 bit sample rate (in Hz) from the end of the header.
		x, err := br.ReadBits(16)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x)
	case 0xE:
		// 1110: get 16 bit sample rate (in daHz) from the end of the header.
		x, err := br.ReadBits(16)
		if err != nil {
			return unexpected(err)
		}
		frame.SampleRate = uint32(x * 10)
	case 0xF:
		// 1111: invalid.
		return errutil.Newf("invalid sample rate bit pattern (%04b)", sampleRate)
	default:
		frame.SampleRate = sampleRates[sampleRate]
	}

	// Every field above ends on a byte boundary, so the CRC-8 hash holds
	// exactly the header bytes at this point.
	want := hr.crc8.Sum8()

	// 1 byte: CRC-8 checksum.
	got, err := br.ReadBits(8)
	if err != nil {
		return unexpected(err)
	}
	if uint8(got) != want {
		return fmt.Errorf("%w; frame header CRC-8 expected 0x%02X, got 0x%02X", ErrChecksum, want, got)
	}
	return nil
}

// sampleRates maps from sample rate bit patterns to sample rates in Hz.
var sampleRates = [...]uint32{
	0x1: 88200,
	0x2: 176400,
	0x3: 192000,
	0x4: 8000,
	0x5: 16000,
	0x6: 22050,
	0x7: 24000,
	0x8: 32000,
	0x9: 44100,
	0xA: 48000,
	0xB: 96000,
}

// Channels specifies the number of channels (subframes) that exist in a frame,
// their order and possible inter-channel decorrelation.
type Channels uint8

// Channel assignments. The following abbreviations are used:
//
//	C:   center (directly in front)
//	R:   right (standard stereo)
//	Sr:  side right (directly to the right)
//	Rs:  right surround (back right)
//	Cs:  center surround (rear center)
//	Ls:  left surround (back left)
//	Sl:  side left (directly to the left)
//	L:   left (standard stereo)
//	Lfe: low-frequency effect (placed according to room acoustics)
const (
	ChannelsMono           Channels = iota // 1 channel: mono.
	ChannelsLR                             // 2 channels: left, right.
	ChannelsLRC                            // 3 channels: left, right, center.
	ChannelsLRLsRs                         // 4 channels: left, right, left surround, right surround.
	ChannelsLRCLsRs                        // 5 channels: left, right, center, left surround, right surround.
	ChannelsLRCLfeLsRs                     // 6 channels: left, right, center, LFE, left surround, right surround.
	ChannelsLRCLfeCsSlSr                   // 7 channels: left, right, center, LFE, center surround, side left, side right.
	ChannelsLRCLfeLsRsSlSr                 // 8 channels: left, right, center, LFE, left surround, right surround, side left, side right.
	ChannelsLeftSide                       // 2 channels: left, side; using inter-channel decorrelation.
	ChannelsSideRight                      // 2 channels: side, right; using inter-channel decorrelation.
	ChannelsMidSide                        // 2 channels: mid, side; using inter-channel decorrelation.
)

// Count returns the number of channels (subframes) used by the provided
// channel assignment.
func (channels Channels) Count() int {
	switch {
	case channels <= ChannelsLRCLfeLsRsSlSr:
		return int(channels) + 1
	case channels <= ChannelsMidSide:
		return 2
	}
	return 0
}

// isSide reports whether subframe i of the given channel assignment holds a
// side (difference) channel, which carries one extra bit per sample.
func (channels Channels) isSide(i int) bool {
	switch channels {
	case ChannelsLeftSide, ChannelsMidSide:
		return i == 1
	case ChannelsSideRight:
		return i == 0
	}
	return false
}

func (channels Channels) String() string {
	switch channels {
	case ChannelsLeftSide:
		return "left/side"
	case ChannelsSideRight:
		return "side/right"
	case ChannelsMidSide:
		return "mid/side"
	}
	if n := channels.Count(); n > 0 {
		return fmt.Sprintf("%d independent", n)
	}
	return fmt.Sprintf("reserved(%d)", uint8(channels))
}

// unexpected converts an io.EOF encountered inside a frame to
// io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errutil.Err(err)
}
