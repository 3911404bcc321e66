// Package flac provides access to FLAC (Free Lossless Audio Codec) streams,
// and implements the operations of a FLAC music library on top of it: reading
// stream parameters and tags, and decoding entire files to PCM.
//
// A brief introduction of the FLAC stream format [1] follows. Each FLAC stream
// starts with a 32-bit signature ("fLaC"), followed by one or more metadata
// blocks, and then one or more audio frames. The first metadata block
// (StreamInfo) describes the basic properties of the audio stream and it is the
// only mandatory metadata block. Subsequent metadata blocks may appear in an
// arbitrary order.
//
// Please refer to the documentation of the meta [2] and the frame [3] packages
// for a brief introduction of their respective formats.
//
//	[1]: https://www.xiph.org/flac/format.html#stream
//	[2]: https://pkg.go.dev/github.com/litesound/flac/meta
//	[3]: https://pkg.go.dev/github.com/litesound/flac/frame
package flac

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/litesound/flac/frame"
	"github.com/litesound/flac/meta"
	"github.com/mewkiz/pkg/errutil"
)

// A Stream contains the metadata blocks and provides access to the audio frames
// of a FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#stream
type Stream struct {
	// The StreamInfo metadata block describes the basic properties of the FLAC
	// audio stream.
	Info *meta.StreamInfo
	// Zero or more metadata blocks; empty for streams created by New and Open.
	Blocks []*meta.Block

	// Running total of inter-channel samples decoded so far.
	samplesDecoded uint64

	// Underlying io.Reader, or io.ReadCloser.
	r io.Reader
	// Buffered reader of r, shared by metadata and frame parsing.
	br *bufio.Reader
}

var (
	// flacSignature marks the beginning of a FLAC stream.
	flacSignature = []byte("fLaC")

	// id3Signature marks the beginning of an ID3v2 tag, used to skip over ID3
	// data prepended to FLAC streams.
	id3Signature = []byte("ID3")
)

// New creates a new Stream for accessing the audio samples of r. It reads and
// parses the FLAC signature and the StreamInfo metadata block, but skips all
// other metadata blocks.
//
// Call Stream.Next to parse the next audio frame.
func New(r io.Reader) (stream *Stream, err error) {
	stream = &Stream{r: r, br: bufio.NewReader(r)}
	block, err := stream.parseStreamInfo()
	if err != nil {
		return nil, err
	}

	// Skip the remaining metadata blocks.
	for !block.IsLast {
		block, err = meta.New(stream.br)
		if err != nil && err != meta.ErrReservedType {
			return nil, err
		}
		if err = block.Skip(); err != nil {
			return nil, err
		}
	}
	return stream, nil
}

// Parse creates a new Stream for accessing the metadata blocks and audio
// samples of r. It reads and parses the FLAC signature and all metadata blocks.
//
// Call Stream.Next to parse the next audio frame.
func Parse(r io.Reader) (stream *Stream, err error) {
	return parse(r, func(meta.Type) bool { return true })
}

// parse reads and parses the FLAC signature and the StreamInfo metadata block
// of r. The bodies of the remaining metadata blocks are parsed if keep reports
// true for their type, and skipped otherwise. Skipped and reserved blocks are
// kept with a nil body.
//
// ref: https://www.xiph.org/flac/format.html#format_overview
func parse(r io.Reader, keep func(typ meta.Type) bool) (stream *Stream, err error) {
	stream = &Stream{r: r, br: bufio.NewReader(r)}
	block, err := stream.parseStreamInfo()
	if err != nil {
		return nil, err
	}

	// Parse the remaining metadata blocks.
	for !block.IsLast {
		block, err = meta.New(stream.br)
		if err != nil && err != meta.ErrReservedType {
			return nil, err
		}
		if err == nil && keep(block.Type) {
			err = block.Parse()
		} else {
			err = block.Skip()
		}
		if err != nil {
			return nil, err
		}
		stream.Blocks = append(stream.Blocks, block)
	}
	return stream, nil
}

// Open creates a new Stream for accessing the audio samples of path. It reads
// and parses the FLAC signature and the StreamInfo metadata block, but skips
// all other metadata blocks.
//
// Note: The Close method of the stream must be called when finished using it.
func Open(path string) (stream *Stream, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err = New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return stream, nil
}

// ParseFile creates a new Stream for accessing the metadata blocks and audio
// samples of path. It reads and parses the FLAC signature and all metadata
// blocks.
//
// Note: The Close method of the stream must be called when finished using it.
func ParseFile(path string) (stream *Stream, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err = Parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return stream, nil
}

// Close closes the stream gracefully if the underlying io.Reader also
// implements the io.Closer interface.
func (stream *Stream) Close() error {
	if closer, ok := stream.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Next parses the entire next audio frame, including audio samples. It
// returns io.EOF to signal a graceful end of FLAC stream.
func (stream *Stream) Next() (f *frame.Frame, err error) {
	f, err = frame.Parse(stream.br, stream.Info)
	if err != nil {
		return nil, err
	}

	// Callers interleave samples based on StreamInfo, so frames disagreeing
	// with it are rejected.
	if got, want := f.Channels.Count(), int(stream.Info.NChannels); got != want {
		return nil, errutil.Newf("channel count mismatch; frame %d has %d channels, StreamInfo has %d", f.Num, got, want)
	}
	if got, want := f.BitsPerSample, stream.Info.BitsPerSample; got != want {
		return nil, errutil.Newf("sample size mismatch; frame %d has %d bits-per-sample, StreamInfo has %d", f.Num, got, want)
	}

	// A declared total of 0 means unknown.
	stream.samplesDecoded += uint64(f.BlockSize)
	if n := stream.Info.NSamples; n != 0 && stream.samplesDecoded > n {
		return nil, errutil.Newf("decoded samples (%d) exceed StreamInfo sample count (%d)", stream.samplesDecoded, n)
	}
	return f, nil
}

// SamplesDecoded returns the number of inter-channel samples decoded so far.
func (stream *Stream) SamplesDecoded() uint64 {
	return stream.samplesDecoded
}

// parseStreamInfo verifies the signature which marks the beginning of a FLAC
// stream, and parses the StreamInfo metadata block.
func (stream *Stream) parseStreamInfo() (block *meta.Block, err error) {
	// Verify FLAC signature.
	r := stream.br
	var buf [4]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return nil, errutil.Err(err)
	}

	// Skip prepended ID3v2 data.
	if bytes.Equal(buf[:3], id3Signature) {
		if err := stream.skipID3v2(); err != nil {
			return nil, err
		}

		// Second attempt at verifying signature.
		if _, err = io.ReadFull(r, buf[:]); err != nil {
			return nil, errutil.Err(err)
		}
	}

	if !bytes.Equal(buf[:], flacSignature) {
		return nil, fmt.Errorf("invalid FLAC signature; expected %q, got %q", flacSignature, buf)
	}

	// Parse StreamInfo metadata block.
	block, err = meta.Parse(r)
	if err != nil {
		return nil, err
	}
	si, ok := block.Body.(*meta.StreamInfo)
	if !ok {
		return nil, fmt.Errorf("incorrect type of first metadata block; expected %v, got %v", meta.TypeStreamInfo, block.Type)
	}
	stream.Info = si
	return block, nil
}

// skipID3v2 skips ID3v2 data prepended to FLAC files. The "ID3" marker and
// major version have already been read.
//
// ref: https://id3.org/id3v2.4.0-structure
func (stream *Stream) skipID3v2() error {
	// 1 byte: revision, 1 byte: flags, 4 bytes: size.
	var hdr [6]byte
	if _, err := io.ReadFull(stream.br, hdr[:]); err != nil {
		return errutil.Err(err)
	}
	// The size is encoded as a synchsafe integer.
	size := int(hdr[2]&0x7F)<<21 | int(hdr[3]&0x7F)<<14 | int(hdr[4]&0x7F)<<7 | int(hdr[5]&0x7F)
	// A footer repeats the 10 byte header.
	const footerPresent = 0x10
	if hdr[1]&footerPresent != 0 {
		size += 10
	}
	if _, err := stream.br.Discard(size); err != nil {
		return errutil.Err(err)
	}
	return nil
}
