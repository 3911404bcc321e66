package flactest

import (
	"bytes"
	"encoding/binary"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// Metadata block types.
const (
	TypeStreamInfo    = 0
	TypePadding       = 1
	TypeApplication   = 2
	TypeSeekTable     = 3
	TypeVorbisComment = 4
	TypeCueSheet      = 5
	TypePicture       = 6
)

// A Block is a raw metadata block following the StreamInfo block.
type Block struct {
	Type uint8
	Body []byte
}

// VorbisComment returns a VorbisComment block holding the given name-value
// pairs.
func VorbisComment(vendor string, tags ...[2]string) Block {
	vectors := make([]string, len(tags))
	for i, tag := range tags {
		vectors[i] = tag[0] + "=" + tag[1]
	}
	return RawVorbisComment(vendor, vectors...)
}

// RawVorbisComment returns a VorbisComment block holding the given comment
// vectors verbatim, well-formed or not.
func RawVorbisComment(vendor string, vectors ...string) Block {
	buf := new(bytes.Buffer)
	// 32 bits: vendor length.
	binary.Write(buf, binary.LittleEndian, uint32(len(vendor)))
	// (vendor length) bits: Vendor.
	buf.WriteString(vendor)
	// 32 bits: number of tags.
	binary.Write(buf, binary.LittleEndian, uint32(len(vectors)))
	for _, vector := range vectors {
		// 32 bits: vector length
		binary.Write(buf, binary.LittleEndian, uint32(len(vector)))
		// (vector length): vector.
		buf.WriteString(vector)
	}
	return Block{Type: TypeVorbisComment, Body: buf.Bytes()}
}

// Padding returns a Padding block of n zero bytes.
func Padding(n int) Block {
	return Block{Type: TypePadding, Body: make([]byte, n)}
}

// Application returns an Application block with the given four character ID.
func Application(id string, data []byte) Block {
	body := append([]byte(id[:4]), data...)
	return Block{Type: TypeApplication, Body: body}
}

// A SeekPoint mirrors a seek point of a SeekTable block.
type SeekPoint struct {
	SampleNum uint64
	Offset    uint64
	NSamples  uint16
}

// SeekTable returns a SeekTable block holding the given seek points.
func SeekTable(points ...SeekPoint) Block {
	buf := new(bytes.Buffer)
	for _, point := range points {
		binary.Write(buf, binary.BigEndian, point)
	}
	return Block{Type: TypeSeekTable, Body: buf.Bytes()}
}

// A Picture mirrors the fields of a Picture block.
type Picture struct {
	Type          uint32
	MIME          string
	Desc          string
	Width, Height uint32
	Depth         uint32
	NPalColors    uint32
	Data          []byte
}

// Block returns the Picture block holding pic.
func (pic Picture) Block() Block {
	buf := new(bytes.Buffer)
	put := func(x uint32) {
		binary.Write(buf, binary.BigEndian, x)
	}
	put(pic.Type)
	put(uint32(len(pic.MIME)))
	buf.WriteString(pic.MIME)
	put(uint32(len(pic.Desc)))
	buf.WriteString(pic.Desc)
	put(pic.Width)
	put(pic.Height)
	put(pic.Depth)
	put(pic.NPalColors)
	put(uint32(len(pic.Data)))
	buf.Write(pic.Data)
	return Block{Type: TypePicture, Body: buf.Bytes()}
}

// A CueSheet mirrors the fields of a CueSheet block.
type CueSheet struct {
	MCN            string
	NLeadInSamples uint64
	IsCompactDisc  bool
	Tracks         []CueSheetTrack
}

// A CueSheetTrack mirrors a track of a CueSheet block. Tracks are audio
// tracks unless NonAudio is set.
type CueSheetTrack struct {
	Offset         uint64
	Num            uint8
	ISRC           string
	NonAudio       bool
	HasPreEmphasis bool
	Indices        []CueSheetTrackIndex
}

// A CueSheetTrackIndex mirrors a track index point of a CueSheet block.
type CueSheetTrackIndex struct {
	Offset uint64
	Num    uint8
}

// Block returns the CueSheet block holding cs.
func (cs CueSheet) Block() Block {
	buf := new(bytes.Buffer)
	// 128 bytes: media catalog number, NUL padded.
	var mcn [128]byte
	copy(mcn[:], cs.MCN)
	buf.Write(mcn[:])
	binary.Write(buf, binary.BigEndian, cs.NLeadInSamples)
	var flags uint8
	if cs.IsCompactDisc {
		flags |= 0x80
	}
	buf.WriteByte(flags)
	// 258 reserved bytes.
	buf.Write(make([]byte, 258))
	buf.WriteByte(uint8(len(cs.Tracks)))
	for _, track := range cs.Tracks {
		binary.Write(buf, binary.BigEndian, track.Offset)
		buf.WriteByte(track.Num)
		var isrc [12]byte
		copy(isrc[:], track.ISRC)
		buf.Write(isrc[:])
		flags = 0
		if track.NonAudio {
			flags |= 0x80
		}
		if track.HasPreEmphasis {
			flags |= 0x40
		}
		buf.WriteByte(flags)
		// 13 reserved bytes.
		buf.Write(make([]byte, 13))
		buf.WriteByte(uint8(len(track.Indices)))
		for _, index := range track.Indices {
			binary.Write(buf, binary.BigEndian, index.Offset)
			buf.WriteByte(index.Num)
			// 3 reserved bytes.
			buf.Write(make([]byte, 3))
		}
	}
	return Block{Type: TypeCueSheet, Body: buf.Bytes()}
}

// writeBlockHeader writes the header of a metadata block.
func writeBlockHeader(bw *bitio.Writer, typ uint8, length int, isLast bool) error {
	// 1 bit: IsLast.
	if err := bw.WriteBool(isLast); err != nil {
		return errutil.Err(err)
	}

	// 7 bits: Type.
	if err := bw.WriteBits(uint64(typ), 7); err != nil {
		return errutil.Err(err)
	}

	// 24 bits: Length.
	if err := bw.WriteBits(uint64(length), 24); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeBlock writes a metadata block.
func writeBlock(bw *bitio.Writer, block Block, isLast bool) error {
	if err := writeBlockHeader(bw, block.Type, len(block.Body), isLast); err != nil {
		return errutil.Err(err)
	}
	if _, err := bw.Write(block.Body); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// writeStreamInfo writes the StreamInfo metadata block.
func writeStreamInfo(bw *bitio.Writer, si StreamInfo, isLast bool) error {
	const length = 34
	if err := writeBlockHeader(bw, TypeStreamInfo, length, isLast); err != nil {
		return errutil.Err(err)
	}
	fields := []struct {
		x uint64
		n uint8
	}{
		// 16 bits: BlockSizeMin.
		{uint64(si.BlockSizeMin), 16},
		// 16 bits: BlockSizeMax.
		{uint64(si.BlockSizeMax), 16},
		// 24 bits: FrameSizeMin.
		{uint64(si.FrameSizeMin), 24},
		// 24 bits: FrameSizeMax.
		{uint64(si.FrameSizeMax), 24},
		// 20 bits: SampleRate.
		{uint64(si.SampleRate), 20},
		// 3 bits: NChannels; stored as (number of channels) - 1.
		{uint64(si.NChannels - 1), 3},
		// 5 bits: BitsPerSample; stored as (bits-per-sample) - 1.
		{uint64(si.BitsPerSample - 1), 5},
		// 36 bits: NSamples.
		{si.NSamples, 36},
	}
	for _, f := range fields {
		if err := bw.WriteBits(f.x&(1<<f.n-1), f.n); err != nil {
			return errutil.Err(err)
		}
	}

	// 16 bytes: MD5sum.
	if _, err := bw.Write(si.MD5sum[:]); err != nil {
		return errutil.Err(err)
	}
	return nil
}
