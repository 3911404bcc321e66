// Package meta implements access to FLAC metadata blocks.
//
// A brief introduction of the FLAC metadata format follows. FLAC metadata is
// stored in blocks; each block contains a header followed by a body. The block
// header describes the type of the block body, its length in bytes, and
// specifies if the block was the last metadata block in a FLAC stream. The
// contents of the block body depends on the type specified in the block
// header.
//
// At the time of this writing, the FLAC metadata format defines seven
// different metadata block types, namely:
//   - StreamInfo
//   - Padding
//   - Application
//   - SeekTable
//   - VorbisComment
//   - CueSheet
//   - Picture
//
// ref: https://www.xiph.org/flac/format.html#format_overview
package meta

import (
	"bytes"
	"errors"
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// A Block contains the header and body of a metadata block.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block
type Block struct {
	// Metadata block header.
	Header
	// Metadata block body of type *StreamInfo, *Application, *SeekTable,
	// *VorbisComment, *CueSheet or *Picture; nil for Padding and reserved
	// blocks, and for blocks which have been skipped.
	Body interface{}
	// Underlying reader limited to the length of the block body.
	lr *io.LimitedReader
}

// New creates a new Block for accessing the metadata of r. It reads and parses
// a metadata block header.
//
// Call Block.Parse to parse the metadata block body, and call Block.Skip to
// ignore it. For reserved block types the returned error is ErrReservedType
// and the block may still be skipped.
func New(r io.Reader) (block *Block, err error) {
	block = new(Block)
	if err = block.parseHeader(r); err != nil {
		return block, err
	}
	block.lr = &io.LimitedReader{R: r, N: block.Length}
	if block.Type.IsReserved() {
		return block, ErrReservedType
	}
	return block, nil
}

// Parse reads and parses the header and body of a metadata block. Use New for
// additional granularity.
func Parse(r io.Reader) (block *Block, err error) {
	block, err = New(r)
	if err != nil {
		return block, err
	}
	if err := block.Parse(); err != nil {
		return block, err
	}
	return block, nil
}

// Errors returned by Parse.
var (
	ErrReservedType = errors.New("meta.Block.Parse: reserved block type")
	ErrInvalidType  = errors.New("meta.Block.parseHeader: invalid block type 127")
)

// Parse reads and parses the metadata block body. Unread bytes of the body are
// discarded, leaving the underlying reader positioned at the next block.
func (block *Block) Parse() error {
	var err error
	switch block.Type {
	case TypeStreamInfo:
		err = block.parseStreamInfo()
	case TypePadding:
		err = block.verifyPadding()
	case TypeApplication:
		err = block.parseApplication()
	case TypeSeekTable:
		err = block.parseSeekTable()
	case TypeVorbisComment:
		err = block.parseVorbisComment()
	case TypePicture:
		err = block.parsePicture()
	case TypeCueSheet:
		err = block.parseCueSheet()
	default:
		return ErrReservedType
	}
	if err != nil {
		return err
	}
	return block.Skip()
}

// Skip ignores the contents of the metadata block body.
func (block *Block) Skip() error {
	if _, err := io.Copy(io.Discard, block.lr); err != nil {
		return errutil.Err(err)
	}
	if block.lr.N > 0 {
		return errutil.Err(io.ErrUnexpectedEOF)
	}
	return nil
}

// A Header contains information about the type and length of a metadata
// block.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_header
type Header struct {
	// Metadata block body type.
	Type Type
	// Length of body data in bytes.
	Length int64
	// IsLast specifies if the block is the last metadata block.
	IsLast bool
}

// parseHeader reads and parses the header of a metadata block.
func (block *Block) parseHeader(r io.Reader) error {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF {
			return errutil.Err(io.ErrUnexpectedEOF)
		}
		return errutil.Err(err)
	}
	br := bitio.NewReader(bytes.NewReader(buf[:]))

	// 1 bit: IsLast.
	x, err := br.ReadBits(1)
	if err != nil {
		return errutil.Err(err)
	}
	block.IsLast = x != 0

	// 7 bits: Type.
	x, err = br.ReadBits(7)
	if err != nil {
		return errutil.Err(err)
	}
	block.Type = Type(x)
	if block.Type == typeInvalid {
		return ErrInvalidType
	}

	// 24 bits: Length.
	x, err = br.ReadBits(24)
	if err != nil {
		return errutil.Err(err)
	}
	block.Length = int64(x)

	return nil
}

// Type represents the type of a metadata block body.
type Type uint8

// Metadata block body types.
const (
	TypeStreamInfo    Type = 0
	TypePadding       Type = 1
	TypeApplication   Type = 2
	TypeSeekTable     Type = 3
	TypeVorbisComment Type = 4
	TypeCueSheet      Type = 5
	TypePicture       Type = 6

	// 7-126: reserved.
	// 127: invalid, to avoid confusion with a frame sync code.
	typeInvalid Type = 127
)

// IsReserved reports whether t is one of the reserved block types 7-126.
func (t Type) IsReserved() bool {
	return t > TypePicture && t < typeInvalid
}

func (t Type) String() string {
	switch t {
	case TypeStreamInfo:
		return "STREAMINFO"
	case TypePadding:
		return "PADDING"
	case TypeApplication:
		return "APPLICATION"
	case TypeSeekTable:
		return "SEEKTABLE"
	case TypeVorbisComment:
		return "VORBIS_COMMENT"
	case TypeCueSheet:
		return "CUESHEET"
	case TypePicture:
		return "PICTURE"
	}
	return "UNKNOWN"
}
