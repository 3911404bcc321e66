package frame

import (
	"github.com/icza/bitio"
	"github.com/litesound/flac/internal/bits"
	"github.com/mewkiz/pkg/errutil"
)

// A Subframe contains the decoded audio samples of a channel.
//
// ref: https://www.xiph.org/flac/format.html#subframe
type Subframe struct {
	// Subframe header.
	SubHeader
	// Decoded audio samples. Side channels hold the reconstructed left or
	// right channel.
	Samples []int32
	// Number of audio samples in the subframe.
	NSamples int

	// Samples as decoded, before inter-channel correlation. Side channels of
	// 32-bit audio need 33 bits.
	samples []int64
}

// A SubHeader specifies the prediction method and order of a subframe.
//
// ref: https://www.xiph.org/flac/format.html#subframe_header
type SubHeader struct {
	// Specifies the prediction method used to encode the audio sample of the
	// subframe.
	Pred Pred
	// Prediction order used by fixed and FIR linear prediction decoding.
	Order int
	// Wasted bits-per-sample.
	Wasted uint
	// Residual coding method used by fixed and FIR linear prediction decoding.
	ResidualCodingMethod ResidualCodingMethod
	// Coefficients' precision in bits used by FIR linear prediction decoding.
	CoeffPrec uint
	// Predictor coefficient shift needed in bits used by FIR linear prediction
	// decoding.
	CoeffShift int32
	// Predictor coefficients used by FIR linear prediction decoding.
	Coeffs []int32
	// Rice-coding subframe fields used by residual coding methods rice1 and
	// rice2; nil if unused.
	RiceSubframe *RiceSubframe
}

// Pred specifies the prediction method used to encode the audio samples of a
// subframe.
type Pred uint8

// Prediction methods.
const (
	// PredConstant specifies that the subframe contains a constant sound. The
	// audio samples are encoded using run-length encoding. Since every audio
	// sample has the same constant value, a single unencoded audio sample is
	// stored in practice. It is replicated a number of times, as specified by
	// BlockSize in the frame header.
	PredConstant Pred = iota
	// PredVerbatim specifies that the subframe contains unencoded audio
	// samples. Random sound is often stored verbatim, since no prediction
	// method can compress it sufficiently.
	PredVerbatim
	// PredFixed specifies that the subframe contains linear prediction coded
	// audio samples. The coefficients of the prediction polynomial are selected
	// from a fixed set, and can represent 0th through fourth-order polynomials.
	// The prediction order (0 through 4) is stored within the subframe along
	// with the same number of unencoded warm-up samples. The residuals are
	// stored as Rice coded integers.
	PredFixed
	// PredFIR specifies that the subframe contains linear prediction coded
	// audio samples, using a finite impulse response predictor. The
	// prediction order (1 through 32), the coefficients and their precision
	// and shift are stored within the subframe along with the same number of
	// unencoded warm-up samples.
	PredFIR
)

func (pred Pred) String() string {
	switch pred {
	case PredConstant:
		return "CONSTANT"
	case PredVerbatim:
		return "VERBATIM"
	case PredFixed:
		return "FIXED"
	case PredFIR:
		return "LPC"
	}
	return "UNKNOWN"
}

// FixedCoeffs maps from prediction order to the LPC coefficients used in fixed
// encoding.
//
//	x_0[n] = 0
//	x_1[n] = x[n-1]
//	x_2[n] = 2*x[n-1] - x[n-2]
//	x_3[n] = 3*x[n-1] - 3*x[n-2] + x[n-3]
//	x_4[n] = 4*x[n-1] - 6*x[n-2] + 4*x[n-3] - x[n-4]
var FixedCoeffs = [...][]int32{
	// ref: Section 2.2 of http://www.hpl.hp.com/techreports/1999/HPL-1999-144.pdf
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	// ref: Data Compression: The Complete Reference (7.10.1)
	4: {4, -6, 4, -1},
}

// ResidualCodingMethod specifies a residual coding method.
type ResidualCodingMethod uint8

// Residual coding methods.
const (
	// Rice coding with a 4-bit Rice parameter (rice1).
	ResidualCodingMethodRice1 ResidualCodingMethod = 0
	// Rice coding with a 5-bit Rice parameter (rice2).
	ResidualCodingMethodRice2 ResidualCodingMethod = 1
)

// RiceSubframe holds rice-coding subframe fields used by residual coding
// methods rice1 and rice2.
type RiceSubframe struct {
	// Partition order used by fixed and FIR linear prediction decoding
	// (for residual coding methods, rice1 and rice2).
	PartOrder int
	// Rice partitions.
	Partitions []RicePartition
}

// RicePartition is a partition containing a subset of the residuals of a
// subframe.
type RicePartition struct {
	// Rice parameter.
	Param uint
	// Residual sample size in bits-per-sample used by escaped partitions.
	EscapedBitsPerSample uint
}

// maxSampleSize is the largest sample size of a subframe; the side channel of
// 32-bit audio.
const maxSampleSize = 33

// parseSubframe reads and parses the header, and the audio samples of a
// subframe of blockSize samples, each of bps bits before wasted bits are
// removed.
//
// ref: https://www.xiph.org/flac/format.html#subframe
func parseSubframe(br *bitio.Reader, blockSize uint16, bps uint) (*Subframe, error) {
	if bps > maxSampleSize {
		return nil, errutil.Newf("unsupported subframe sample size %d", bps)
	}
	subframe := &Subframe{NSamples: int(blockSize)}
	if err := subframe.parseHeader(br); err != nil {
		return nil, err
	}
	// Adjust bps of subframe for wasted bits-per-sample.
	if subframe.Wasted >= bps {
		return nil, errutil.Newf("wasted bits-per-sample (%d) exceeds sample size (%d)", subframe.Wasted, bps)
	}
	bps -= subframe.Wasted

	// Decode subframe audio samples.
	subframe.samples = make([]int64, 0, subframe.NSamples)
	var err error
	switch subframe.Pred {
	case PredConstant:
		err = subframe.decodeConstant(br, bps)
	case PredVerbatim:
		err = subframe.decodeVerbatim(br, bps)
	case PredFixed:
		err = subframe.decodeFixed(br, bps)
	case PredFIR:
		err = subframe.decodeFIR(br, bps)
	}
	if err != nil {
		return nil, err
	}

	// Left shift to account for wasted bits-per-sample.
	if subframe.Wasted > 0 {
		for i, sample := range subframe.samples {
			subframe.samples[i] = sample << subframe.Wasted
		}
	}
	return subframe, nil
}

// parseHeader reads and parses the header of a subframe.
//
// ref: https://www.xiph.org/flac/format.html#subframe_header
func (subframe *Subframe) parseHeader(br *bitio.Reader) error {
	// 1 bit: zero-padding.
	x, err := br.ReadBits(1)
	if err != nil {
		return unexpected(err)
	}
	if x != 0 {
		return errutil.Newf("non-zero padding in subframe header")
	}

	// 6 bits: Pred.
	x, err = br.ReadBits(6)
	if err != nil {
		return unexpected(err)
	}
	// The 6 bits are used to specify the prediction method and order as
	// follows:
	//    000000: Constant prediction method.
	//    000001: Verbatim prediction method.
	//    00001x: reserved.
	//    0001xx: reserved.
	//    001xxx:
	//       if xxx <= 4
	//          Fixed prediction method; xxx=order
	//       else
	//          reserved.
	//    01xxxx: reserved.
	//    1xxxxx: FIR prediction method; xxxxx=order-1
	switch {
	case x < 1:
		// 000000: Constant prediction method.
		subframe.Pred = PredConstant
	case x < 2:
		// 000001: Verbatim prediction method.
		subframe.Pred = PredVerbatim
	case x < 8:
		// 00001x: reserved.
		// 0001xx: reserved.
		return errutil.Newf("reserved subframe type bit pattern (%06b)", x)
	case x < 16:
		// 001xxx:
		//    if xxx <= 4
		//       Fixed prediction method; xxx=order
		//    else
		//       reserved.
		order := int(x & 0x07)
		if order > 4 {
			return errutil.Newf("reserved subframe type bit pattern (%06b)", x)
		}
		subframe.Pred = PredFixed
		subframe.Order = order
	case x < 32:
		// 01xxxx: reserved.
		return errutil.Newf("reserved subframe type bit pattern (%06b)", x)
	default:
		// 1xxxxx: FIR prediction method; xxxxx=order-1
		subframe.Pred = PredFIR
		subframe.Order = int(x&0x1F) + 1
	}
	if subframe.Order > subframe.NSamples {
		return errutil.Newf("prediction order (%d) exceeds block size (%d)", subframe.Order, subframe.NSamples)
	}

	// 1 bit: hasWastedBits.
	hasWastedBits, err := br.ReadBool()
	if err != nil {
		return unexpected(err)
	}
	if hasWastedBits {
		// k wasted bits-per-sample in source subblock, k-1 follows, unary coded;
		// e.g. k=3 => 001 follows, k=7 => 0000001 follows.
		x, err = bits.ReadUnary(br)
		if err != nil {
			return unexpected(err)
		}
		if x >= maxSampleSize {
			return errutil.Newf("invalid wasted bits-per-sample (%d)", x+1)
		}
		subframe.Wasted = uint(x) + 1
	}

	return nil
}

// readSample reads a single unencoded signed sample of bps bits.
func readSample(br *bitio.Reader, bps uint) (int64, error) {
	if bps == 0 {
		return 0, nil
	}
	x, err := br.ReadBits(uint8(bps))
	if err != nil {
		return 0, unexpected(err)
	}
	return bits.IntN(x, bps), nil
}

// decodeConstant reads an unencoded audio sample of the subframe. Each sample
// of the subframe has this constant value. The constant encoding can be
// thought of as run-length encoding.
//
// ref: https://www.xiph.org/flac/format.html#subframe_constant
func (subframe *Subframe) decodeConstant(br *bitio.Reader, bps uint) error {
	// (bits-per-sample) bits: Unencoded constant value of the subblock.
	sample, err := readSample(br, bps)
	if err != nil {
		return err
	}
	for i := 0; i < subframe.NSamples; i++ {
		subframe.samples = append(subframe.samples, sample)
	}
	return nil
}

// decodeVerbatim reads the unencoded audio samples of the subframe.
//
// ref: https://www.xiph.org/flac/format.html#subframe_verbatim
func (subframe *Subframe) decodeVerbatim(br *bitio.Reader, bps uint) error {
	// Parse the unencoded audio samples of the subframe.
	for i := 0; i < subframe.NSamples; i++ {
		// (bits-per-sample) bits: Unencoded constant value of the subblock.
		sample, err := readSample(br, bps)
		if err != nil {
			return err
		}
		subframe.samples = append(subframe.samples, sample)
	}
	return nil
}

// decodeFixed decodes the linear prediction coded samples of the subframe,
// using a fixed set of predefined polynomial coefficients.
//
// ref: https://www.xiph.org/flac/format.html#subframe_fixed
func (subframe *Subframe) decodeFixed(br *bitio.Reader, bps uint) error {
	// Parse unencoded warm-up samples.
	for i := 0; i < subframe.Order; i++ {
		// (bits-per-sample) bits: Unencoded warm-up sample.
		sample, err := readSample(br, bps)
		if err != nil {
			return err
		}
		subframe.samples = append(subframe.samples, sample)
	}

	// Decode subframe residuals.
	if err := subframe.decodeResiduals(br); err != nil {
		return err
	}

	// Predict the audio samples of the subframe using a polynomial with
	// predefined coefficients of a given order. Correct signal errors using the
	// decoded residuals.
	const shift = 0
	subframe.Coeffs = FixedCoeffs[subframe.Order]
	subframe.predict(shift)
	return nil
}

// decodeFIR decodes the linear prediction coded samples of the subframe, using
// polynomial coefficients stored in the stream.
//
// ref: https://www.xiph.org/flac/format.html#subframe_lpc
func (subframe *Subframe) decodeFIR(br *bitio.Reader, bps uint) error {
	// Parse unencoded warm-up samples.
	for i := 0; i < subframe.Order; i++ {
		// (bits-per-sample) bits: Unencoded warm-up sample.
		sample, err := readSample(br, bps)
		if err != nil {
			return err
		}
		subframe.samples = append(subframe.samples, sample)
	}

	// 4 bits: (coefficients' precision in bits) - 1.
	x, err := br.ReadBits(4)
	if err != nil {
		return unexpected(err)
	}
	if x == 0xF {
		return errutil.Newf("invalid coefficient precision bit pattern (%04b)", x)
	}
	prec := uint(x) + 1
	subframe.CoeffPrec = prec

	// 5 bits: predictor coefficient shift needed in bits.
	x, err = br.ReadBits(5)
	if err != nil {
		return unexpected(err)
	}
	shift := int32(bits.IntN(x, 5))
	if shift < 0 {
		return errutil.Newf("invalid negative shift (%d)", shift)
	}
	subframe.CoeffShift = shift

	// Parse coefficients.
	coeffs := make([]int32, subframe.Order)
	for i := range coeffs {
		// (prec) bits: Predictor coefficient.
		x, err = br.ReadBits(uint8(prec))
		if err != nil {
			return unexpected(err)
		}
		coeffs[i] = int32(bits.IntN(x, prec))
	}
	subframe.Coeffs = coeffs

	// Decode subframe residuals.
	if err := subframe.decodeResiduals(br); err != nil {
		return err
	}

	// Predict the audio samples of the subframe using a polynomial with
	// predefined coefficients of a given order. Correct signal errors using the
	// decoded residuals.
	subframe.predict(shift)
	return nil
}

// decodeResiduals decodes the residuals (signal errors of the prediction) of
// the subframe, appending them after the warm-up samples.
//
// ref: https://www.xiph.org/flac/format.html#residual
func (subframe *Subframe) decodeResiduals(br *bitio.Reader) error {
	// 2 bits: Residual coding method.
	x, err := br.ReadBits(2)
	if err != nil {
		return unexpected(err)
	}
	// The 2 bits are used to specify the residual coding method as follows:
	//    00: Rice coding with a 4-bit Rice parameter.
	//    01: Rice coding with a 5-bit Rice parameter.
	//    10: reserved.
	//    11: reserved.
	subframe.ResidualCodingMethod = ResidualCodingMethod(x)
	switch subframe.ResidualCodingMethod {
	case ResidualCodingMethodRice1:
		return subframe.decodeRicePart(br, 4)
	case ResidualCodingMethodRice2:
		return subframe.decodeRicePart(br, 5)
	}
	return errutil.Newf("reserved residual coding method bit pattern (%02b)", x)
}

// decodeRicePart decodes a Rice partition of encoded residuals from the
// subframe, using a Rice parameter of the specified size in bits.
//
// ref: https://www.xiph.org/flac/format.html#partitioned_rice
// ref: https://www.xiph.org/flac/format.html#partitioned_rice2
func (subframe *Subframe) decodeRicePart(br *bitio.Reader, paramSize uint) error {
	// 4 bits: Partition order.
	x, err := br.ReadBits(4)
	if err != nil {
		return unexpected(err)
	}
	partOrder := int(x)
	riceSubframe := &RiceSubframe{PartOrder: partOrder}
	subframe.RiceSubframe = riceSubframe

	// The block size must split evenly into 2^partOrder partitions, and the
	// first partition must hold at least the warm-up samples.
	nparts := 1 << partOrder
	if subframe.NSamples%nparts != 0 {
		return errutil.Newf("block size (%d) not divisible by %d partitions", subframe.NSamples, nparts)
	}
	if subframe.NSamples/nparts < subframe.Order {
		return errutil.Newf("partition size (%d) smaller than prediction order (%d)", subframe.NSamples/nparts, subframe.Order)
	}

	// Parse Rice partitions; in total 2^partOrder partitions.
	//
	// ref: https://www.xiph.org/flac/format.html#rice_partition
	// ref: https://www.xiph.org/flac/format.html#rice2_partition
	escape := uint(1)<<paramSize - 1
	riceSubframe.Partitions = make([]RicePartition, nparts)
	for i := range riceSubframe.Partitions {
		partition := &riceSubframe.Partitions[i]
		// (4 or 5) bits: Rice parameter.
		x, err = br.ReadBits(uint8(paramSize))
		if err != nil {
			return unexpected(err)
		}
		param := uint(x)
		partition.Param = param

		// Determine the number of Rice encoded samples in the partition.
		nsamples := subframe.NSamples / nparts
		if i == 0 {
			nsamples -= subframe.Order
		}

		if param == escape {
			// 5 bits: Residual sample size in bits-per-sample; each residual is
			// stored unencoded using this many bits.
			x, err = br.ReadBits(5)
			if err != nil {
				return unexpected(err)
			}
			n := uint(x)
			partition.EscapedBitsPerSample = n
			for j := 0; j < nsamples; j++ {
				sample, err := readSample(br, n)
				if err != nil {
					return err
				}
				subframe.samples = append(subframe.samples, sample)
			}
			continue
		}

		// Decode the Rice encoded residuals of the partition.
		for j := 0; j < nsamples; j++ {
			residual, err := decodeRiceResidual(br, param)
			if err != nil {
				return err
			}
			subframe.samples = append(subframe.samples, residual)
		}
	}

	return nil
}

// decodeRiceResidual decodes and returns a Rice encoded residual (error
// signal).
func decodeRiceResidual(br *bitio.Reader, k uint) (int64, error) {
	// Read unary encoded most significant bits.
	high, err := bits.ReadUnary(br)
	if err != nil {
		return 0, unexpected(err)
	}

	// Read binary encoded least significant bits.
	var low uint64
	if k > 0 {
		low, err = br.ReadBits(uint8(k))
		if err != nil {
			return 0, unexpected(err)
		}
	}
	folded := high<<k | low

	// ZigZag decode.
	return bits.DecodeZigZag(folded), nil
}

// predict restores the audio samples of the subframe in place, adding the
// prediction of the coefficients, scaled down by shift, to each residual
// following the warm-up samples.
func (subframe *Subframe) predict(shift int32) {
	samples := subframe.samples
	coeffs := subframe.Coeffs
	for i := subframe.Order; i < len(samples); i++ {
		var sample int64
		for j, c := range coeffs {
			sample += int64(c) * samples[i-j-1]
		}
		samples[i] += sample >> uint(shift)
	}
}
