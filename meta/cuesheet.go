package meta

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/mewkiz/pkg/errutil"
)

// A CueSheet describes how tracks are laid out within a FLAC stream. It
// supports the track and index points of Red Book CD digital audio discs, as
// well as other CD-DA metadata such as the media catalog number and track
// ISRCs.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_cuesheet
type CueSheet struct {
	// Media catalog number; a thirteen digit number for CD-DA.
	MCN string
	// Number of lead-in samples; only meaningful for CD-DA.
	NLeadInSamples uint64
	// Specifies if the cue sheet corresponds to a Compact Disc.
	IsCompactDisc bool
	// One or more tracks. The last track is the lead-out track.
	Tracks []CueSheetTrack
}

// A CueSheetTrack describes a track within a cue sheet.
type CueSheetTrack struct {
	// Track offset in samples, relative to the beginning of the FLAC audio
	// stream.
	Offset uint64
	// Track number; 170 (CD-DA) or 255 (non CD-DA) for the lead-out track.
	Num uint8
	// International Standard Recording Code; empty if absent.
	ISRC string
	// Specifies if the track contains audio or data.
	IsAudio bool
	// Specifies if the track has been recorded with pre-emphasis.
	HasPreEmphasis bool
	// Every track has one or more track index points, except for the lead-out
	// track which has zero.
	Indices []CueSheetTrackIndex
}

// A CueSheetTrackIndex specifies a position within a track.
type CueSheetTrackIndex struct {
	// Index point offset in samples, relative to the track offset.
	Offset uint64
	// Index point number; 0 corresponds to the track pre-gap.
	Num uint8
}

// ErrReservedNotZero reports a CueSheet with reserved bits set.
var ErrReservedNotZero = errors.New("meta.Block.parseCueSheet: all reserved bits must be 0")

// Fixed-size parts of a CueSheet block body, in stream order.
type (
	cueSheetHeader struct {
		MCN            [128]byte
		NLeadInSamples uint64
		Flags          uint8
		Reserved       [258]byte
		NTracks        uint8
	}
	cueSheetTrack struct {
		Offset   uint64
		Num      uint8
		ISRC     [12]byte
		Flags    uint8
		Reserved [13]byte
		NIndices uint8
	}
	cueSheetTrackIndex struct {
		Offset   uint64
		Num      uint8
		Reserved [3]byte
	}
)

// parseCueSheet reads and parses the body of a CueSheet metadata block.
func (block *Block) parseCueSheet() error {
	var hdr cueSheetHeader
	if err := binary.Read(block.lr, binary.BigEndian, &hdr); err != nil {
		return unexpected(err)
	}
	cs := &CueSheet{
		MCN:            stringFromSZ(hdr.MCN[:]),
		NLeadInSamples: hdr.NLeadInSamples,
		IsCompactDisc:  hdr.Flags&0x80 != 0,
	}
	block.Body = cs
	for _, c := range []byte(cs.MCN) {
		if c < 0x20 || c > 0x7E {
			return errutil.Newf("invalid character in media catalog number; expected >= 0x20 and <= 0x7E, got 0x%02X", c)
		}
	}
	if hdr.Flags&0x7F != 0 || !isAllZero(hdr.Reserved[:]) {
		return ErrReservedNotZero
	}
	if !cs.IsCompactDisc && cs.NLeadInSamples != 0 {
		return errutil.Newf("invalid lead-in sample count for non CD-DA; expected 0, got %d", cs.NLeadInSamples)
	}
	if hdr.NTracks < 1 {
		return errutil.Newf("at least one track (the lead-out track) is required")
	}
	if cs.IsCompactDisc && hdr.NTracks > 100 {
		return errutil.Newf("too many tracks for CD-DA cue sheet; expected <= 100, got %d", hdr.NTracks)
	}

	cs.Tracks = make([]CueSheetTrack, hdr.NTracks)
	for i := range cs.Tracks {
		if err := block.parseCueSheetTrack(cs, i); err != nil {
			return err
		}
	}
	return nil
}

// parseCueSheetTrack reads and parses the i:th track of cs.
func (block *Block) parseCueSheetTrack(cs *CueSheet, i int) error {
	var raw cueSheetTrack
	if err := binary.Read(block.lr, binary.BigEndian, &raw); err != nil {
		return unexpected(err)
	}
	track := &cs.Tracks[i]
	track.Offset = raw.Offset
	track.Num = raw.Num
	track.ISRC = stringFromSZ(raw.ISRC[:])
	// The track type bit is 0 for audio.
	track.IsAudio = raw.Flags&0x80 == 0
	track.HasPreEmphasis = raw.Flags&0x40 != 0
	if raw.Flags&0x3F != 0 || !isAllZero(raw.Reserved[:]) {
		return ErrReservedNotZero
	}

	if cs.IsCompactDisc && track.Offset%588 != 0 {
		return errutil.Newf("invalid track offset (%d) for CD-DA; must be evenly divisible by 588", track.Offset)
	}
	// Track number 0 is reserved for the CD-DA lead-in.
	if track.Num == 0 {
		return errutil.Newf("track number 0 not allowed")
	}
	leadOut := i == len(cs.Tracks)-1
	switch {
	case cs.IsCompactDisc && leadOut && track.Num != 170:
		return errutil.Newf("invalid lead-out track number for CD-DA; expected 170, got %d", track.Num)
	case cs.IsCompactDisc && !leadOut && track.Num > 99:
		return errutil.Newf("invalid track number for CD-DA; expected <= 99, got %d", track.Num)
	case !cs.IsCompactDisc && leadOut && track.Num != 255:
		return errutil.Newf("invalid lead-out track number for non CD-DA; expected 255, got %d", track.Num)
	}

	n := raw.NIndices
	switch {
	case leadOut && n != 0:
		return errutil.Newf("invalid number of track points for the lead-out track; expected 0, got %d", n)
	case !leadOut && n < 1:
		return errutil.Newf("invalid number of track points; expected >= 1, got %d", n)
	case cs.IsCompactDisc && n > 100:
		return errutil.Newf("invalid number of track points for CD-DA; expected <= 100, got %d", n)
	}
	if n == 0 {
		return nil
	}
	track.Indices = make([]CueSheetTrackIndex, n)
	for j := range track.Indices {
		var index cueSheetTrackIndex
		if err := binary.Read(block.lr, binary.BigEndian, &index); err != nil {
			return unexpected(err)
		}
		if !isAllZero(index.Reserved[:]) {
			return ErrReservedNotZero
		}
		track.Indices[j] = CueSheetTrackIndex{Offset: index.Offset, Num: index.Num}
	}
	return nil
}

// stringFromSZ returns the contents of buf up to its first NUL byte.
func stringFromSZ(buf []byte) string {
	if pos := bytes.IndexByte(buf, 0); pos != -1 {
		buf = buf[:pos]
	}
	return string(buf)
}

// isAllZero reports whether every byte of buf is zero.
func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
