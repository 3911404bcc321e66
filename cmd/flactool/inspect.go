package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/litesound/flac"
	"github.com/litesound/flac/meta"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) inspectCmd() *cobra.Command {
	var blockNums []int
	cmd := &cobra.Command{
		Use:   "inspect PATH...",
		Short: "List the metadata blocks of FLAC files",
		Long: `List the metadata blocks of FLAC files.

Lines are prefixed with the file name when more than one file is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				l := &lister{w: a.stdout}
				if len(args) > 1 {
					l.prefix = path + ":"
				}
				if err := l.list(path, blockNums); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&blockNums, "block-number", nil, "comma-separated list of block numbers to display")
	return cmd
}

// A lister prints metadata blocks in the format of metaflac --list.
type lister struct {
	w io.Writer
	// Prefix of each line.
	prefix string
}

func (l *lister) printf(format string, args ...any) {
	fmt.Fprint(l.w, l.prefix)
	fmt.Fprintf(l.w, format, args...)
}

// list prints the metadata blocks of path; only those of blockNums if
// non-empty.
func (l *lister) list(path string, blockNums []int) error {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to parse %q", path)
	}
	defer stream.Close()

	show := func(blockNum int) bool {
		if len(blockNums) == 0 {
			return true
		}
		for _, n := range blockNums {
			if n == blockNum {
				return true
			}
		}
		return false
	}
	if show(0) {
		l.listStreamInfoHeader(len(stream.Blocks) == 0)
		l.listStreamInfo(stream.Info)
	}
	// Block number 0 is the StreamInfo block, which stream.Blocks omits.
	for i, block := range stream.Blocks {
		if show(i + 1) {
			l.listBlock(block, i+1)
		}
	}
	return nil
}

func (l *lister) listBlock(block *meta.Block, blockNum int) {
	l.listHeader(&block.Header, blockNum)
	switch body := block.Body.(type) {
	case *meta.Application:
		l.listApplication(body)
	case *meta.SeekTable:
		l.listSeekTable(body)
	case *meta.VorbisComment:
		l.listVorbisComment(body)
	case *meta.CueSheet:
		l.listCueSheet(body)
	case *meta.Picture:
		l.listPicture(body)
	}
}

// Each field of the StreamInfo header is constant, with the exception of
// is_last.
func (l *lister) listStreamInfoHeader(isLast bool) {
	l.printf("METADATA block #0\n")
	l.printf("  type: 0 (STREAMINFO)\n")
	l.printf("  is last: %t\n", isLast)
	l.printf("  length: 34\n")
}

// Example:
//
//	METADATA block #2
//	  type: 4 (VORBIS_COMMENT)
//	  is last: false
//	  length: 40
func (l *lister) listHeader(header *meta.Header, blockNum int) {
	l.printf("METADATA block #%d\n", blockNum)
	l.printf("  type: %d (%s)\n", header.Type, header.Type)
	l.printf("  is last: %t\n", header.IsLast)
	l.printf("  length: %d\n", header.Length)
}

// Example:
//
//	  minimum blocksize: 4608 samples
//	  maximum blocksize: 4608 samples
//	  minimum framesize: 0 bytes
//	  maximum framesize: 19024 bytes
//	  sample_rate: 44100 Hz
//	  channels: 2
//	  bits-per-sample: 16
//	  total samples: 151007220
//	  MD5 signature: 2e6238f5d9fe5c19f3ead628f750fd3d
func (l *lister) listStreamInfo(si *meta.StreamInfo) {
	l.printf("  minimum blocksize: %d samples\n", si.BlockSizeMin)
	l.printf("  maximum blocksize: %d samples\n", si.BlockSizeMax)
	l.printf("  minimum framesize: %d bytes\n", si.FrameSizeMin)
	l.printf("  maximum framesize: %d bytes\n", si.FrameSizeMax)
	l.printf("  sample_rate: %d Hz\n", si.SampleRate)
	l.printf("  channels: %d\n", si.NChannels)
	l.printf("  bits-per-sample: %d\n", si.BitsPerSample)
	l.printf("  total samples: %d\n", si.NSamples)
	l.printf("  MD5 signature: %x\n", si.MD5sum)
}

func (l *lister) listApplication(app *meta.Application) {
	l.printf("  application ID: %08x (%s)\n", app.ID, strconv.Quote(app.IDString()))
	l.printf("  data contents:\n")
	if len(app.Data) > 0 {
		l.printf("%s\n", app.Data)
	}
}

// Example:
//
//	  seek points: 17
//	    point 0: sample_number=0, stream_offset=0, frame_samples=4608
//	    point 1: PLACEHOLDER
func (l *lister) listSeekTable(st *meta.SeekTable) {
	l.printf("  seek points: %d\n", len(st.Points))
	for pointNum, point := range st.Points {
		if point.SampleNum == meta.PlaceholderPoint {
			l.printf("    point %d: PLACEHOLDER\n", pointNum)
			continue
		}
		l.printf("    point %d: sample_number=%d, stream_offset=%d, frame_samples=%d\n", pointNum, point.SampleNum, point.Offset, point.NSamples)
	}
}

func (l *lister) listVorbisComment(vc *meta.VorbisComment) {
	l.printf("  vendor string: %s\n", vc.Vendor)
	l.printf("  comments: %d\n", len(vc.Tags))
	for tagNum, tag := range vc.Tags {
		l.printf("    comment[%d]: %s=%s\n", tagNum, tag[0], tag[1])
	}
}

// Example:
//
//	  media catalog number: 1234567890123
//	  lead-in: 88200
//	  is CD: true
//	  number of tracks: 3
//	    track[0]
//	      offset: 0
//	      number: 1
//	      ISRC: USRC17607839
//	      type: AUDIO
//	      pre-emphasis: false
//	      number of index points: 1
//	        index[0]
//	          offset: 0
//	          number: 1
//	    ...
//	    track[2]
//	      offset: 11760
//	      number: 170 (LEAD-OUT)
func (l *lister) listCueSheet(cs *meta.CueSheet) {
	l.printf("  media catalog number: %s\n", cs.MCN)
	l.printf("  lead-in: %d\n", cs.NLeadInSamples)
	l.printf("  is CD: %t\n", cs.IsCompactDisc)
	l.printf("  number of tracks: %d\n", len(cs.Tracks))
	for trackNum, track := range cs.Tracks {
		l.printf("    track[%d]\n", trackNum)
		l.printf("      offset: %d\n", track.Offset)
		if trackNum == len(cs.Tracks)-1 {
			l.printf("      number: %d (LEAD-OUT)\n", track.Num)
			continue
		}
		l.printf("      number: %d\n", track.Num)
		l.printf("      ISRC: %s\n", track.ISRC)
		trackType := "DATA"
		if track.IsAudio {
			trackType = "AUDIO"
		}
		l.printf("      type: %s\n", trackType)
		l.printf("      pre-emphasis: %t\n", track.HasPreEmphasis)
		l.printf("      number of index points: %d\n", len(track.Indices))
		for indexNum, index := range track.Indices {
			l.printf("        index[%d]\n", indexNum)
			l.printf("          offset: %d\n", index.Offset)
			l.printf("          number: %d\n", index.Num)
		}
	}
}

// pictureTypeName maps from picture type to its ID3v2 APIC description.
var pictureTypeName = map[uint32]string{
	0:  "Other",
	1:  "32x32 pixels 'file icon' (PNG only)",
	2:  "Other file icon",
	3:  "Cover (front)",
	4:  "Cover (back)",
	5:  "Leaflet page",
	6:  "Media (e.g. label side of CD)",
	7:  "Lead artist/lead performer/soloist",
	8:  "Artist/performer",
	9:  "Conductor",
	10: "Band/Orchestra",
	11: "Composer",
	12: "Lyricist/text writer",
	13: "Recording Location",
	14: "During recording",
	15: "During performance",
	16: "Movie/video screen capture",
	17: "A bright coloured fish",
	18: "Illustration",
	19: "Band/artist logotype",
	20: "Publisher/Studio logotype",
}

// Example:
//
//	  type: 3 (Cover (front))
//	  MIME type: image/jpeg
//	  description:
//	  width: 0
//	  height: 0
//	  depth: 0
//	  colors: 0 (unindexed)
//	  data length: 234569
//	  data:
//	    00000000  ff d8 ff e0 00 10 4a 46  49 46 00 01 01 01 00 60  |......JFIF.....`|
func (l *lister) listPicture(pic *meta.Picture) {
	name, ok := pictureTypeName[pic.Type]
	if !ok {
		name = "Reserved"
	}
	l.printf("  type: %d (%s)\n", pic.Type, name)
	l.printf("  MIME type: %s\n", pic.MIME)
	l.printf("  description: %s\n", pic.Desc)
	l.printf("  width: %d\n", pic.Width)
	l.printf("  height: %d\n", pic.Height)
	l.printf("  depth: %d\n", pic.Depth)
	colors := strconv.FormatUint(uint64(pic.NPalColors), 10)
	if pic.NPalColors == 0 {
		colors += " (unindexed)"
	}
	l.printf("  colors: %s\n", colors)
	l.printf("  data length: %d\n", len(pic.Data))
	l.printf("  data:\n")
	dump := strings.TrimSuffix(hex.Dump(pic.Data), "\n")
	if dump == "" {
		return
	}
	for _, line := range strings.Split(dump, "\n") {
		l.printf("    %s\n", line)
	}
}
