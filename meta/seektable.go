package meta

import (
	"encoding/binary"

	"github.com/mewkiz/pkg/errutil"
)

// SeekTable contains one or more pre-calculated audio frame seek points.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_seektable
type SeekTable struct {
	// One or more seek points.
	Points []SeekPoint
}

// PlaceholderPoint is the sample number used for placeholder points.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

// seekPointLength is the length in bytes of a single seek point.
const seekPointLength = 18

// parseSeekTable reads and parses the body of a SeekTable metadata block.
func (block *Block) parseSeekTable() error {
	// The number of seek points is derived from the header length, divided by
	// the size of a SeekPoint; which is 18 bytes.
	n := block.Length / seekPointLength
	if n < 1 {
		return errutil.Newf("at least one seek point is required")
	}
	if block.Length%seekPointLength != 0 {
		return errutil.Newf("invalid SeekTable block length %d; not a multiple of %d", block.Length, seekPointLength)
	}
	table := &SeekTable{Points: make([]SeekPoint, n)}
	block.Body = table
	var prev uint64
	for i := range table.Points {
		point := &table.Points[i]
		if err := binary.Read(block.lr, binary.BigEndian, point); err != nil {
			return unexpected(err)
		}
		// Seek points within a table must be sorted in ascending order by sample
		// number, with placeholders at the end.
		if point.SampleNum == PlaceholderPoint {
			prev = PlaceholderPoint
			continue
		}
		if i > 0 && point.SampleNum <= prev {
			return errutil.Newf("invalid seek point order; sample number %d follows %d", point.SampleNum, prev)
		}
		prev = point.SampleNum
	}
	return nil
}

// A SeekPoint specifies the byte offset and initial sample number of a given
// target frame.
//
// ref: https://www.xiph.org/flac/format.html#seekpoint
type SeekPoint struct {
	// Sample number of the first sample in the target frame, or
	// 0xFFFFFFFFFFFFFFFF for a placeholder point.
	SampleNum uint64
	// Offset in bytes from the first byte of the first frame header to the first
	// byte of the target frame's header.
	Offset uint64
	// Number of samples in the target frame.
	NSamples uint16
}
