package meta

import (
	"encoding/binary"

	"github.com/mewkiz/pkg/errutil"
)

// Picture contains the image data of an embedded picture.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_picture
type Picture struct {
	// Picture type according to the ID3v2 APIC frame:
	//     0: Other.
	//     1: 32x32 pixels 'file icon' (PNG only).
	//     2: Other file icon.
	//     3: Cover (front).
	//     4: Cover (back).
	//     5: Leaflet page.
	//     6: Media (e.g. label side of CD).
	//     7: Lead artist/lead performer/soloist.
	//     8: Artist/performer.
	//     9: Conductor.
	//    10: Band/Orchestra.
	//    11: Composer.
	//    12: Lyricist/text writer.
	//    13: Recording Location.
	//    14: During recording.
	//    15: During performance.
	//    16: Movie/video screen capture.
	//    17: A bright coloured fish.
	//    18: Illustration.
	//    19: Band/artist logotype.
	//    20: Publisher/Studio logotype.
	//
	// ref: http://id3.org/id3v2.4.0-frames
	Type uint32
	// MIME type string. The MIME type "-->" specifies that the picture data is
	// to be interpreted as an URL instead of picture data.
	MIME string
	// Description of the picture.
	Desc string
	// Image dimensions.
	Width, Height uint32
	// Color depth in bits-per-pixel.
	Depth uint32
	// Number of colors in palette; 0 for non-indexed images.
	NPalColors uint32
	// Image data.
	Data []byte
}

// parsePicture reads and parses the body of a Picture metadata block. Picture
// types above 20 are reserved but tolerated.
func (block *Block) parsePicture() error {
	pic := new(Picture)
	block.Body = pic

	// 32 bits: Type.
	var err error
	if pic.Type, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// 32 bits: (MIME type length).
	x, err := block.readUint32(binary.BigEndian)
	if err != nil {
		return err
	}

	// (MIME type length) bytes: MIME.
	buf, err := block.readBytes(uint64(x))
	if err != nil {
		return err
	}
	for _, c := range buf {
		if c < 0x20 || c > 0x7E {
			return errutil.Newf("invalid character in MIME type; expected >= 0x20 and <= 0x7E, got 0x%02X", c)
		}
	}
	pic.MIME = string(buf)

	// 32 bits: (description length).
	if x, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// (description length) bytes: Desc.
	if buf, err = block.readBytes(uint64(x)); err != nil {
		return err
	}
	pic.Desc = string(buf)

	// 32 bits: Width.
	if pic.Width, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// 32 bits: Height.
	if pic.Height, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// 32 bits: Depth.
	if pic.Depth, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// 32 bits: NPalColors.
	if pic.NPalColors, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// 32 bits: (data length).
	if x, err = block.readUint32(binary.BigEndian); err != nil {
		return err
	}

	// (data length) bytes: Data.
	pic.Data, err = block.readBytes(uint64(x))
	return err
}
