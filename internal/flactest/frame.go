package flactest

import (
	"bytes"
	"math/bits"

	"github.com/icza/bitio"
	iobits "github.com/litesound/flac/internal/bits"
	"github.com/litesound/flac/internal/hashutil/crc16"
	"github.com/litesound/flac/internal/hashutil/crc8"
	"github.com/mewkiz/pkg/errutil"
)

// Channel assignments.
const (
	ChannelsIndependent = 0 // add (number of channels)-1
	ChannelsLeftSide    = 8
	ChannelsSideRight   = 9
	ChannelsMidSide     = 10
)

// A Frame describes an audio frame.
type Frame struct {
	// Variable stores the first sample number instead of the frame number.
	Variable bool
	// Channel assignment bit pattern; the number of independent channels minus
	// one, or one of the decorrelated stereo assignments.
	Channels uint8
	// Sample rate stored in the frame header; 0 defers to StreamInfo.
	SampleRate uint32
	// Sample size stored in the frame header; 0 defers to StreamInfo.
	BitsPerSample uint8
	// Samples per channel, in left/right order regardless of the channel
	// assignment.
	Samples [][]int32
	// Encoding of each subframe; verbatim when absent.
	Subframes []Subframe
}

// Pred is a subframe prediction method.
type Pred uint8

// Prediction methods.
const (
	PredVerbatim Pred = iota
	PredConstant
	PredFixed
	PredLPC
)

// Escape marks an escaped partition in Subframe.Params.
const Escape = -1

// A Subframe describes the encoding of a subframe.
type Subframe struct {
	Pred Pred
	// Prediction order of fixed and LPC subframes.
	Order int
	// Wasted bits-per-sample; the channel samples must be multiples of
	// 2^Wasted.
	Wasted uint
	// LPC coefficients, their precision in bits and the prediction shift.
	Coeffs    []int32
	Precision uint
	Shift     uint
	// Rice2 selects 5-bit Rice parameters.
	Rice2 bool
	// Partition order of the residual.
	PartOrder int
	// Rice parameter of each partition, or Escape; derived from the residuals
	// when nil.
	Params []int
}

// fixedCoeffs maps from prediction order to fixed predictor coefficients.
var fixedCoeffs = [...][]int32{
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

// blockSize returns the number of inter-channel samples of the frame.
func (f *Frame) blockSize() uint16 {
	if len(f.Samples) == 0 {
		return 0
	}
	return uint16(len(f.Samples[0]))
}

// write appends the encoded frame to buf.
func (f *Frame) write(buf *bytes.Buffer, info StreamInfo, num uint64) error {
	data := new(bytes.Buffer)
	bw := bitio.NewWriter(data)
	if err := f.writeHeader(bw, num); err != nil {
		return errutil.Err(err)
	}
	if err := bw.Close(); err != nil {
		return errutil.Err(err)
	}
	// CRC-8 (polynomial = x^8 + x^2 + x^1 + x^0, initialized with 0) of
	// everything before the crc, including the sync code.
	data.WriteByte(crc8.ChecksumATM(data.Bytes()))

	bps := uint(f.BitsPerSample)
	if bps == 0 {
		bps = uint(info.BitsPerSample)
	}
	bw = bitio.NewWriter(data)
	for i, signal := range f.signals() {
		var sub Subframe
		if i < len(f.Subframes) {
			sub = f.Subframes[i]
		}
		n := bps
		if f.isSide(i) {
			n++
		}
		if err := sub.write(bw, signal, n); err != nil {
			return errutil.Err(err)
		}
	}
	// Zero padding to byte alignment.
	if err := bw.Close(); err != nil {
		return errutil.Err(err)
	}

	// CRC-16 (polynomial = x^16 + x^15 + x^2 + x^0, initialized with 0) of
	// everything before the crc, back to and including the frame header sync
	// code.
	h := crc16.NewIBM()
	h.Write(data.Bytes())
	crc := h.Sum16()
	data.Write([]byte{byte(crc >> 8), byte(crc)})

	buf.Write(data.Bytes())
	return nil
}

// isSide reports whether subframe i holds a side channel.
func (f *Frame) isSide(i int) bool {
	switch f.Channels {
	case ChannelsLeftSide, ChannelsMidSide:
		return i == 1
	case ChannelsSideRight:
		return i == 0
	}
	return false
}

// signals returns the decorrelated subframe signals of the frame. Side
// channels of 32-bit audio need 33 bits.
func (f *Frame) signals() [][]int64 {
	if f.Channels < ChannelsLeftSide {
		signals := make([][]int64, len(f.Samples))
		for i, samples := range f.Samples {
			signals[i] = make([]int64, len(samples))
			for j, s := range samples {
				signals[i][j] = int64(s)
			}
		}
		return signals
	}
	left, right := f.Samples[0], f.Samples[1]
	a := make([]int64, len(left))
	b := make([]int64, len(left))
	for i := range left {
		l, r := int64(left[i]), int64(right[i])
		side := l - r
		switch f.Channels {
		case ChannelsLeftSide:
			a[i], b[i] = l, side
		case ChannelsSideRight:
			a[i], b[i] = side, r
		case ChannelsMidSide:
			a[i], b[i] = (l+r)>>1, side
		}
	}
	return [][]int64{a, b}
}

// writeHeader writes the frame header, excluding its CRC-8.
func (f *Frame) writeHeader(bw *bitio.Writer, num uint64) error {
	//  Sync code: 11111111111110
	if err := bw.WriteBits(0x3FFE, 14); err != nil {
		return errutil.Err(err)
	}

	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	// Blocking strategy:
	//    0 : fixed-blocksize stream; frame header encodes the frame number
	//    1 : variable-blocksize stream; frame header encodes the sample number
	if err := bw.WriteBool(f.Variable); err != nil {
		return errutil.Err(err)
	}

	// Block size in inter-channel samples:
	//    0001 : 192 samples
	//    0010-0101 : 576 * (2^(n-2)) samples, i.e. 576/1152/2304/4608
	//    0110 : get 8 bit (blocksize-1) from end of header
	//    0111 : get 16 bit (blocksize-1) from end of header
	//    1000-1111 : 256 * (2^(n-8)) samples, i.e. 256/512/1024/2048/4096/8192/16384/32768
	blockSize := f.blockSize()
	var (
		code uint64
		// number of bits used to store block size after the frame header.
		nblockSizeSuffixBits uint8
	)
	switch blockSize {
	case 192:
		code = 0x1
	case 576, 1152, 2304, 4608:
		code = 0x2 + uint64(bits.TrailingZeros16(blockSize/576))
	case 256, 512, 1024, 2048, 4096, 8192, 16384, 32768:
		code = 0x8 + uint64(bits.TrailingZeros16(blockSize/256))
	default:
		if blockSize <= 256 {
			code = 0x6
			nblockSizeSuffixBits = 8
		} else {
			code = 0x7
			nblockSizeSuffixBits = 16
		}
	}
	if err := bw.WriteBits(code, 4); err != nil {
		return errutil.Err(err)
	}

	// Sample rate; see sampleRateCode.
	code, suffix, nsuffix, err := sampleRateCode(f.SampleRate)
	if err != nil {
		return errutil.Err(err)
	}
	if err := bw.WriteBits(code, 4); err != nil {
		return errutil.Err(err)
	}

	// Channel assignment.
	if err := bw.WriteBits(uint64(f.Channels), 4); err != nil {
		return errutil.Err(err)
	}

	// Sample size in bits:
	//    000 : get from STREAMINFO metadata block
	//    001 : 8 bits per sample
	//    010 : 12 bits per sample
	//    100 : 16 bits per sample
	//    101 : 20 bits per sample
	//    110 : 24 bits per sample
	//    111 : 32 bits per sample
	switch f.BitsPerSample {
	case 0:
		code = 0x0
	case 8:
		code = 0x1
	case 12:
		code = 0x2
	case 16:
		code = 0x4
	case 20:
		code = 0x5
	case 24:
		code = 0x6
	case 32:
		code = 0x7
	default:
		return errutil.Newf("unable to encode sample size %d in frame header", f.BitsPerSample)
	}
	if err := bw.WriteBits(code, 3); err != nil {
		return errutil.Err(err)
	}

	// Reserved: 0
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	//    if (variable blocksize)
	//       <8-56>:"UTF-8" coded sample number (decoded number is 36 bits)
	//    else
	//       <8-48>:"UTF-8" coded frame number (decoded number is 31 bits)
	if err := encodeUTF8(bw, num); err != nil {
		return errutil.Err(err)
	}

	// Write block size after the frame header (used for uncommon block sizes).
	if nblockSizeSuffixBits > 0 {
		if err := bw.WriteBits(uint64(blockSize-1), nblockSizeSuffixBits); err != nil {
			return errutil.Err(err)
		}
	}

	// Write sample rate after the frame header (used for uncommon sample rates).
	if nsuffix > 0 {
		if err := bw.WriteBits(suffix, nsuffix); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// sampleRateCode returns the frame header bit pattern of the given sample
// rate, and the value and size in bits of its suffix if any.
//
//	0000 : get from STREAMINFO metadata block
//	0001-1011 : 88.2/176.4/192/8/16/22.05/24/32/44.1/48/96 kHz
//	1100 : get 8 bit sample rate (in kHz) from end of header
//	1101 : get 16 bit sample rate (in Hz) from end of header
//	1110 : get 16 bit sample rate (in tens of Hz) from end of header
func sampleRateCode(sampleRate uint32) (code, suffix uint64, nsuffix uint8, err error) {
	switch sampleRate {
	case 0:
		return 0x0, 0, 0, nil
	case 88200:
		return 0x1, 0, 0, nil
	case 176400:
		return 0x2, 0, 0, nil
	case 192000:
		return 0x3, 0, 0, nil
	case 8000:
		return 0x4, 0, 0, nil
	case 16000:
		return 0x5, 0, 0, nil
	case 22050:
		return 0x6, 0, 0, nil
	case 24000:
		return 0x7, 0, 0, nil
	case 32000:
		return 0x8, 0, 0, nil
	case 44100:
		return 0x9, 0, 0, nil
	case 48000:
		return 0xA, 0, 0, nil
	case 96000:
		return 0xB, 0, 0, nil
	}
	switch {
	case sampleRate <= 255000 && sampleRate%1000 == 0:
		return 0xC, uint64(sampleRate / 1000), 8, nil
	case sampleRate <= 65535:
		return 0xD, uint64(sampleRate), 16, nil
	case sampleRate <= 655350 && sampleRate%10 == 0:
		return 0xE, uint64(sampleRate / 10), 16, nil
	}
	return 0, 0, 0, errutil.Newf("unable to encode sample rate %v", sampleRate)
}

// encodeUTF8 encodes x as a "UTF-8" coded number.
func encodeUTF8(bw *bitio.Writer, x uint64) error {
	// 1-byte, 7-bit sequence?
	if x < 1<<7 {
		return bw.WriteBits(x, 8)
	}
	// Number of continuation bytes, and the leading bits of the first byte.
	var l int
	var lead uint64
	switch {
	case x < 1<<11:
		l, lead = 1, 0xC0
	case x < 1<<16:
		l, lead = 2, 0xE0
	case x < 1<<21:
		l, lead = 3, 0xF0
	case x < 1<<26:
		l, lead = 4, 0xF8
	case x < 1<<31:
		l, lead = 5, 0xFC
	case x < 1<<36:
		l, lead = 6, 0xFE
	default:
		return errutil.Newf("unable to encode %d as a coded number", x)
	}
	if err := bw.WriteBits(lead|x>>uint(6*l), 8); err != nil {
		return errutil.Err(err)
	}
	for i := l - 1; i >= 0; i-- {
		if err := bw.WriteBits(0x80|(x>>uint(6*i))&0x3F, 8); err != nil {
			return errutil.Err(err)
		}
	}
	return nil
}

// write encodes the subframe holding signal, of bps bits per sample before
// wasted bits are removed.
func (sub Subframe) write(bw *bitio.Writer, signal []int64, bps uint) error {
	// Zero bit padding, to prevent sync-fooling string of 1s.
	if err := bw.WriteBits(0x0, 1); err != nil {
		return errutil.Err(err)
	}

	// Subframe type:
	//     000000 : SUBFRAME_CONSTANT
	//     000001 : SUBFRAME_VERBATIM
	//     001xxx : if(xxx <= 4) SUBFRAME_FIXED, xxx=order ; else reserved
	//     1xxxxx : SUBFRAME_LPC, xxxxx=order-1
	var code uint64
	switch sub.Pred {
	case PredConstant:
		code = 0x00
	case PredVerbatim:
		code = 0x01
	case PredFixed:
		code = 0x08 | uint64(sub.Order)
	case PredLPC:
		code = 0x20 | uint64(sub.Order-1)
	}
	if err := bw.WriteBits(code, 6); err != nil {
		return errutil.Err(err)
	}

	// <1+k> 'Wasted bits-per-sample' flag:
	//
	//     0 : no wasted bits-per-sample in source subblock, k=0
	//     1 : k wasted bits-per-sample in source subblock, k-1 follows, unary coded; e.g. k=3 => 001 follows, k=7 => 0000001 follows.
	if err := bw.WriteBool(sub.Wasted > 0); err != nil {
		return errutil.Err(err)
	}
	samples := signal
	if sub.Wasted > 0 {
		if err := iobits.WriteUnary(bw, uint64(sub.Wasted-1)); err != nil {
			return errutil.Err(err)
		}
		samples = make([]int64, len(signal))
		for i, s := range signal {
			if s&(1<<sub.Wasted-1) != 0 {
				return errutil.Newf("sample %d has non-zero wasted bits", s)
			}
			samples[i] = s >> sub.Wasted
		}
		bps -= sub.Wasted
	}

	switch sub.Pred {
	case PredConstant:
		for _, s := range samples[1:] {
			if s != samples[0] {
				return errutil.Newf("constant sample mismatch; expected %v, got %v", samples[0], s)
			}
		}
		return writeSample(bw, samples[0], bps)
	case PredVerbatim:
		for _, s := range samples {
			if err := writeSample(bw, s, bps); err != nil {
				return errutil.Err(err)
			}
		}
		return nil
	case PredFixed:
		// Unencoded warm-up samples.
		for _, s := range samples[:sub.Order] {
			if err := writeSample(bw, s, bps); err != nil {
				return errutil.Err(err)
			}
		}
		return sub.writeResiduals(bw, residuals(samples, fixedCoeffs[sub.Order], sub.Order, 0))
	case PredLPC:
		for _, s := range samples[:sub.Order] {
			if err := writeSample(bw, s, bps); err != nil {
				return errutil.Err(err)
			}
		}
		// 4 bits: (coefficients' precision in bits) - 1.
		if err := bw.WriteBits(uint64(sub.Precision-1), 4); err != nil {
			return errutil.Err(err)
		}
		// 5 bits: predictor coefficient shift needed in bits.
		if err := bw.WriteBits(uint64(sub.Shift), 5); err != nil {
			return errutil.Err(err)
		}
		// (precision) bits: predictor coefficients.
		for _, c := range sub.Coeffs {
			if err := writeSample(bw, int64(c), sub.Precision); err != nil {
				return errutil.Err(err)
			}
		}
		return sub.writeResiduals(bw, residuals(samples, sub.Coeffs, sub.Order, sub.Shift))
	}
	return errutil.Newf("unknown prediction method %d", sub.Pred)
}

// writeSample writes the n-bit two's complement representation of x.
func writeSample(bw *bitio.Writer, x int64, n uint) error {
	if n == 0 {
		return nil
	}
	if iobits.MinWidth(x) > n {
		return errutil.Newf("sample %d does not fit in %d bits", x, n)
	}
	return bw.WriteBits(iobits.UintN(x, n), uint8(n))
}

// residuals returns the difference between the samples following the order
// warm-up samples and their prediction.
func residuals(samples []int64, coeffs []int32, order int, shift uint) []int64 {
	var res []int64
	for i := order; i < len(samples); i++ {
		var sample int64
		for j, c := range coeffs {
			sample += int64(c) * samples[i-j-1]
		}
		res = append(res, samples[i]-sample>>shift)
	}
	return res
}

// writeResiduals encodes the residuals of a fixed or LPC subframe.
func (sub Subframe) writeResiduals(bw *bitio.Writer, res []int64) error {
	// 2 bits: Residual coding method.
	//    00: Rice coding with a 4-bit Rice parameter.
	//    01: Rice coding with a 5-bit Rice parameter.
	paramSize := uint8(4)
	var method uint64
	if sub.Rice2 {
		paramSize, method = 5, 1
	}
	if err := bw.WriteBits(method, 2); err != nil {
		return errutil.Err(err)
	}

	// 4 bits: Partition order.
	if err := bw.WriteBits(uint64(sub.PartOrder), 4); err != nil {
		return errutil.Err(err)
	}
	nparts := 1 << sub.PartOrder
	blockSize := len(res) + sub.Order
	escape := uint64(1)<<paramSize - 1
	for i := 0; i < nparts; i++ {
		// The first partition holds the residuals following the warm-up samples.
		start := i*blockSize/nparts - sub.Order
		if i == 0 {
			start = 0
		}
		end := (i+1)*blockSize/nparts - sub.Order
		part := res[start:end]

		var param int
		if sub.Params != nil {
			param = sub.Params[i]
		} else {
			param = riceParam(part, int(escape)-1)
		}

		if param == Escape {
			// (4 or 5) bits: escape code, followed by a 5-bit sample size.
			if err := bw.WriteBits(escape, paramSize); err != nil {
				return errutil.Err(err)
			}
			var n uint
			for _, r := range part {
				if w := iobits.MinWidth(r); w > n {
					n = w
				}
			}
			if err := bw.WriteBits(uint64(n), 5); err != nil {
				return errutil.Err(err)
			}
			for _, r := range part {
				if err := writeSample(bw, r, n); err != nil {
					return errutil.Err(err)
				}
			}
			continue
		}

		// (4 or 5) bits: Rice parameter.
		if err := bw.WriteBits(uint64(param), paramSize); err != nil {
			return errutil.Err(err)
		}
		for _, r := range part {
			// ZigZag encode, then store the high bits in unary and the low k bits
			// in binary.
			folded := iobits.EncodeZigZag(r)
			if err := iobits.WriteUnary(bw, folded>>uint(param)); err != nil {
				return errutil.Err(err)
			}
			if param > 0 {
				if err := bw.WriteBits(folded&(1<<uint(param)-1), uint8(param)); err != nil {
					return errutil.Err(err)
				}
			}
		}
	}
	return nil
}

// riceParam returns a Rice parameter suited for the given residuals, capped at
// limit.
func riceParam(res []int64, limit int) int {
	if len(res) == 0 {
		return 0
	}
	var sum uint64
	for _, r := range res {
		sum += iobits.EncodeZigZag(r)
	}
	k := bits.Len64(sum / uint64(len(res)))
	if k > limit {
		k = limit
	}
	return k
}
