package frame

import (
	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

const (
	tx = 0x80 // 1000 0000
	t2 = 0xC0 // 1100 0000
	t3 = 0xE0 // 1110 0000
	t4 = 0xF0 // 1111 0000
	t5 = 0xF8 // 1111 1000
	t6 = 0xFC // 1111 1100
	t7 = 0xFE // 1111 1110
	t8 = 0xFF // 1111 1111

	maskx = 0x3F // 0011 1111
	mask2 = 0x1F // 0001 1111
	mask3 = 0x0F // 0000 1111
	mask4 = 0x07 // 0000 0111
	mask5 = 0x03 // 0000 0011
	mask6 = 0x01 // 0000 0001
)

// minValue holds the smallest value which requires the given number of
// continuation bytes; shorter encodings are overlong.
var minValue = [...]uint64{0, 1 << 7, 1 << 11, 1 << 16, 1 << 21, 1 << 26, 1 << 31}

// decodeUTF8 decodes a "UTF-8" coded number of up to 36 bits, as used for
// frame and sample numbers.
//
// ref: https://www.xiph.org/flac/format.html#frame_header
func decodeUTF8(br *bitio.Reader) (x uint64, err error) {
	c0, err := br.ReadByte()
	if err != nil {
		return 0, unexpected(err)
	}

	// 1-byte, 7-bit sequence?
	if c0 < tx {
		// if c0 == 0xxxxxxx
		// total: 7 bits (7)
		return uint64(c0), nil
	}

	// unexpected continuation byte?
	if c0 < t2 {
		// if c0 == 10xxxxxx
		return 0, errutil.Newf("unexpected continuation byte 0x%02X at start of coded number", c0)
	}

	// get number of continuation bytes and store bits from c0.
	var l int
	switch {
	case c0 < t3:
		// if c0 == 110xxxxx
		// total: 11 bits (5 + 6)
		l = 1
		x = uint64(c0 & mask2)
	case c0 < t4:
		// if c0 == 1110xxxx
		// total: 16 bits (4 + 6 + 6)
		l = 2
		x = uint64(c0 & mask3)
	case c0 < t5:
		// if c0 == 11110xxx
		// total: 21 bits (3 + 6 + 6 + 6)
		l = 3
		x = uint64(c0 & mask4)
	case c0 < t6:
		// if c0 == 111110xx
		// total: 26 bits (2 + 6 + 6 + 6 + 6)
		l = 4
		x = uint64(c0 & mask5)
	case c0 < t7:
		// if c0 == 1111110x
		// total: 31 bits (1 + 6 + 6 + 6 + 6 + 6)
		l = 5
		x = uint64(c0 & mask6)
	case c0 < t8:
		// if c0 == 11111110
		// total: 36 bits (0 + 6 + 6 + 6 + 6 + 6 + 6)
		l = 6
		x = 0
	default:
		return 0, errutil.Newf("invalid first byte 0x%02X of coded number", c0)
	}

	// store bits from continuation bytes.
	for i := 0; i < l; i++ {
		c, err := br.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}
		if c&^maskx != tx {
			return 0, errutil.Newf("expected continuation byte, got 0x%02X", c)
		}
		x = x<<6 | uint64(c&maskx)
	}

	if x < minValue[l] {
		return 0, errutil.Newf("overlong coded number %d in %d bytes", x, l+1)
	}
	return x, nil
}
