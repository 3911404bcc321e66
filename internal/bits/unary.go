package bits

import (
	"github.com/icza/bitio"
)

// ReadUnary decodes and returns an unary coded integer, whose value is
// represented by the number of leading zeros before a one.
//
// Examples of unary coded binary on the left and decoded decimal on the right:
//
//	1       => 0
//	01      => 1
//	001     => 2
//	0001    => 3
//	0000001 => 6
func ReadUnary(br *bitio.Reader) (x uint64, err error) {
	for {
		bit, err := br.ReadBool()
		if err != nil {
			return 0, err
		}
		if bit {
			return x, nil
		}
		x++
	}
}

// WriteUnary encodes x as an unary coded integer, whose value is represented by
// the number of leading zeros before a one.
func WriteUnary(bw *bitio.Writer, x uint64) error {
	for ; x >= 8; x -= 8 {
		if err := bw.WriteByte(0x0); err != nil {
			return err
		}
	}
	return bw.WriteBits(1, uint8(x+1))
}
