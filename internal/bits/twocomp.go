// Package bits provides the integer codings shared by the FLAC metadata and
// frame parsers.
package bits

// IntN sign extends the n-bit two's complement value x.
//
// Examples of 3-bit values on the left and decoded values on the right:
//
//	0b011 -> 3
//	0b001 -> 1
//	0b000 -> 0
//	0b111 -> -1
//	0b100 -> -4
func IntN(x uint64, n uint) int64 {
	if n == 0 {
		return 0
	}
	if n >= 64 {
		return int64(x)
	}
	x &= 1<<n - 1
	signBit := uint64(1) << (n - 1)
	if x&signBit == 0 {
		return int64(x)
	}
	return int64(x) - int64(signBit<<1)
}

// UintN returns the n lowest bits of the two's complement representation of
// x; the inverse of IntN.
func UintN(x int64, n uint) uint64 {
	if n >= 64 {
		return uint64(x)
	}
	return uint64(x) & (1<<n - 1)
}

// MinWidth returns the smallest bit width able to hold x as a two's
// complement value. Zero requires no bits at all.
func MinWidth(x int64) uint {
	if x == 0 {
		return 0
	}
	if x < 0 {
		x = ^x
	}
	var n uint
	for ; x != 0; x >>= 1 {
		n++
	}
	return n + 1
}
