package meta

import (
	"encoding/binary"
	"strings"

	"github.com/mewkiz/pkg/errutil"
)

// VorbisComment contains a list of name-value pairs.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_vorbis_comment
type VorbisComment struct {
	// Vendor name.
	Vendor string
	// A list of tags, each represented by a name-value pair, in stream order.
	// Names may repeat.
	Tags [][2]string
}

// Get returns the values of every tag named name, compared case-insensitively
// as Vorbis comment field names are.
func (comment *VorbisComment) Get(name string) []string {
	var values []string
	for _, tag := range comment.Tags {
		if strings.EqualFold(tag[0], name) {
			values = append(values, tag[1])
		}
	}
	return values
}

// parseVorbisComment reads and parses the body of a VorbisComment metadata
// block. Unlike the rest of FLAC, its length fields are little-endian.
func (block *Block) parseVorbisComment() error {
	// 32 bits: vendor length.
	x, err := block.readUint32(binary.LittleEndian)
	if err != nil {
		return err
	}

	// (vendor length) bytes: Vendor.
	buf, err := block.readBytes(uint64(x))
	if err != nil {
		return err
	}
	comment := &VorbisComment{Vendor: string(buf)}
	block.Body = comment

	// 32 bits: number of tags.
	ntags, err := block.readUint32(binary.LittleEndian)
	if err != nil {
		return err
	}
	// Every tag occupies at least its 4 byte length field.
	if uint64(ntags)*4 > uint64(block.lr.N) {
		return errutil.Newf("tag count %d exceeds remaining block body of %d bytes", ntags, block.lr.N)
	}
	if ntags == 0 {
		return nil
	}
	comment.Tags = make([][2]string, ntags)
	for i := range comment.Tags {
		// 32 bits: vector length
		x, err = block.readUint32(binary.LittleEndian)
		if err != nil {
			return err
		}

		// (vector length): vector.
		buf, err = block.readBytes(uint64(x))
		if err != nil {
			return err
		}
		vector := string(buf)

		// Parse tag, which has the following format:
		//    NAME=VALUE
		//
		// A vector without separator is a name with an empty value.
		name, value, _ := strings.Cut(vector, "=")
		comment.Tags[i][0] = name
		comment.Tags[i][1] = value
	}
	return nil
}
