package flac_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/litesound/flac"
	"github.com/litesound/flac/frame"
	"github.com/litesound/flac/internal/flactest"
	"github.com/litesound/flac/meta"
	"github.com/mewkiz/pkg/errutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stereo returns a two channel, 16-bit stream of nframes frames of 4096
// samples each, using every stereo channel assignment in turn.
func stereo(nframes int) *flactest.Stream {
	assignments := []uint8{
		flactest.ChannelsIndependent + 1,
		flactest.ChannelsLeftSide,
		flactest.ChannelsSideRight,
		flactest.ChannelsMidSide,
	}
	s := &flactest.Stream{
		Info:       flactest.StreamInfo{SampleRate: 44100, NChannels: 2, BitsPerSample: 16},
		ComputeMD5: true,
	}
	for i := 0; i < nframes; i++ {
		sub := flactest.Subframe{Pred: flactest.PredFixed, Order: 2, PartOrder: 2}
		s.Frames = append(s.Frames, flactest.Frame{
			Channels: assignments[i%len(assignments)],
			Samples: [][]int32{
				flactest.Sine(4096, 16, 100+float64(i)),
				flactest.Sine(4096, 16, 37),
			},
			Subframes: []flactest.Subframe{sub, sub},
		})
	}
	return s
}

func TestOpen(t *testing.T) {
	s := stereo(2)
	s.ID3Size = 300
	s.Blocks = []flactest.Block{flactest.Padding(16)}
	path := flactest.WriteFile(t, t.TempDir(), "id3.flac", s)

	stream, err := flac.Open(path)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, uint32(44100), stream.Info.SampleRate)
	assert.Empty(t, stream.Blocks)

	var got []int32
	for i := 0; i < 2; i++ {
		f, err := stream.Next()
		require.NoError(t, err)
		got = f.AppendInterleaved(got)
	}
	_, err = stream.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, s.Interleave(), got)
	assert.Equal(t, uint64(8192), stream.SamplesDecoded())
}

func TestParseFile(t *testing.T) {
	s := stereo(1)
	s.Blocks = []flactest.Block{
		flactest.SeekTable(flactest.SeekPoint{SampleNum: 0, NSamples: 4096}),
		{Type: 100, Body: []byte("reserved")},
		flactest.VorbisComment("vendor", [2]string{"TITLE", "x"}),
		flactest.CueSheet{Tracks: []flactest.CueSheetTrack{{Offset: 4096, Num: 255}}}.Block(),
		flactest.Padding(8),
	}
	path := flactest.WriteFile(t, t.TempDir(), "blocks.flac", s)

	stream, err := flac.ParseFile(path)
	require.NoError(t, err)
	defer stream.Close()
	var types []meta.Type
	for _, block := range stream.Blocks {
		types = append(types, block.Type)
	}
	assert.Equal(t, []meta.Type{meta.TypeSeekTable, 100, meta.TypeVorbisComment, meta.TypeCueSheet, meta.TypePadding}, types)
	assert.Nil(t, stream.Blocks[1].Body)
	assert.Equal(t, &meta.CueSheet{Tracks: []meta.CueSheetTrack{{Offset: 4096, Num: 255, IsAudio: true}}}, stream.Blocks[3].Body)

	f, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, frame.ChannelsLR, f.Channels)
}

func TestNewInvalid(t *testing.T) {
	golden := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "signature", data: []byte("OggS\x00\x02\x00\x00")},
		{name: "first block", data: append([]byte("fLaC"), 0x84, 0, 0, 0)},
		{name: "truncated ID3", data: []byte("ID3\x04\x00\x00\x00\x00\x10\x00")},
	}
	for _, g := range golden {
		_, err := flac.New(bytes.NewReader(g.data))
		assert.Error(t, err, g.name)
	}
}

func TestNextMismatch(t *testing.T) {
	golden := []struct {
		name   string
		modify func(s *flactest.Stream)
	}{
		{name: "channel count", modify: func(s *flactest.Stream) {
			s.Info.NChannels = 1
		}},
		{name: "sample size", modify: func(s *flactest.Stream) {
			s.Frames[0].BitsPerSample = 24
		}},
		{name: "sample count", modify: func(s *flactest.Stream) {
			s.Info.NSamples = 100
		}},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			s := stereo(1)
			s.ComputeMD5 = false
			g.modify(s)
			data, err := s.Bytes()
			require.NoError(t, err)
			stream, err := flac.New(bytes.NewReader(data))
			require.NoError(t, err)
			_, err = stream.Next()
			assert.Error(t, err)
		})
	}
}

func TestReadStreamInfo(t *testing.T) {
	dir := t.TempDir()

	path := flactest.WriteFile(t, dir, "a.flac", stereo(3))
	info, err := flac.ReadStreamInfo(path)
	require.NoError(t, err)
	require.NotNil(t, info.TotalSamples)
	assert.Equal(t, uint32(44100), info.SampleRate)
	assert.Equal(t, uint8(2), info.Channels)
	assert.Equal(t, uint8(16), info.BitsPerSample)
	assert.Equal(t, uint64(3*4096), *info.TotalSamples)

	// The extension is not checked.
	s := stereo(1)
	s.UnknownLength = true
	path = flactest.WriteFile(t, dir, "unknown.bin", s)
	info, err = flac.ReadStreamInfo(path)
	require.NoError(t, err)
	assert.Nil(t, info.TotalSamples)

	_, err = flac.ReadStreamInfo(filepath.Join(dir, "missing.flac"))
	assert.ErrorIs(t, err, flac.ErrNotFound)

	path = flactest.WriteBytes(t, dir, "garbage.flac", []byte("not a FLAC stream"))
	_, err = flac.ReadStreamInfo(path)
	assert.ErrorIs(t, err, flac.ErrFormat)
	var e *flac.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "ReadStreamInfo", e.Op)
	assert.Equal(t, path, e.Path)
}

func TestReadTags(t *testing.T) {
	dir := t.TempDir()
	s := stereo(1)
	s.Blocks = []flactest.Block{
		flactest.VorbisComment("vendor",
			[2]string{"ARTIST", "A"},
			[2]string{"Title", "Song"},
			[2]string{"ARTIST", "B"},
			[2]string{"COMMENT", "x=y"},
		),
		flactest.Padding(4),
		flactest.VorbisComment("vendor", [2]string{"ARTIST", "C"}, [2]string{"artist", "lower"}),
	}
	path := flactest.WriteFile(t, dir, "tagged.FLAC", s)

	want := flac.TagSet{
		"ARTIST":  "A; B; C",
		"Title":   "Song",
		"COMMENT": "x=y",
		"artist":  "lower",
	}
	tags, err := flac.ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, want, tags)

	// Reading twice yields identical results.
	again, err := flac.ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, tags, again)
}

func TestReadTagsMultiValue(t *testing.T) {
	s := stereo(1)
	s.Blocks = []flactest.Block{flactest.VorbisComment("", [2]string{"ARTIST", "A"}, [2]string{"ARTIST", "B"})}
	path := flactest.WriteFile(t, t.TempDir(), "multi.flac", s)
	tags, err := flac.ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, flac.TagSet{"ARTIST": "A; B"}, tags)
}

func TestReadTagsEmpty(t *testing.T) {
	path := flactest.WriteFile(t, t.TempDir(), "plain.flac", stereo(1))
	tags, err := flac.ReadTags(path)
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)
}

func TestReadTagsSkipsOtherBlocks(t *testing.T) {
	dir := t.TempDir()
	comment := flactest.RawVorbisComment("", "ARTIST=A", "NOSEPARATOR")
	golden := []struct {
		name  string
		block flactest.Block
	}{
		{name: "padding not zero", block: flactest.Block{Type: flactest.TypePadding, Body: []byte{0, 1, 0}}},
		{name: "seek table order", block: flactest.SeekTable(
			flactest.SeekPoint{SampleNum: 4096},
			flactest.SeekPoint{SampleNum: 0},
		)},
		{name: "seek table length", block: flactest.Block{Type: flactest.TypeSeekTable, Body: make([]byte, 20)}},
		{name: "picture MIME", block: flactest.Picture{MIME: "image/\xff"}.Block()},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			s := stereo(1)
			s.Blocks = []flactest.Block{g.block, comment}
			path := flactest.WriteFile(t, dir, strings.ReplaceAll(g.name, " ", "_")+".flac", s)

			tags, err := flac.ReadTags(path)
			require.NoError(t, err)
			assert.Equal(t, flac.TagSet{"ARTIST": "A", "NOSEPARATOR": ""}, tags)

			// Full parsing still rejects the block.
			stream, err := flac.ParseFile(path)
			if err == nil {
				stream.Close()
			}
			assert.Error(t, err)
		})
	}
}

func TestReadTagsErrors(t *testing.T) {
	dir := t.TempDir()
	valid, err := stereo(1).Bytes()
	require.NoError(t, err)
	malformed := stereo(1)
	// A tag count larger than the block body.
	malformed.Blocks = []flactest.Block{{Type: flactest.TypeVorbisComment, Body: []byte{0, 0, 0, 0, 0xFF, 0xFF, 0, 0}}}
	truncated := valid[:20]

	golden := []struct {
		name string
		path string
		want error
	}{
		{name: "missing", path: filepath.Join(dir, "missing.flac"), want: flac.ErrNotFound},
		{name: "extension", path: flactest.WriteBytes(t, dir, "song.mp3", valid), want: flac.ErrInvalidFormat},
		{name: "no extension", path: flactest.WriteBytes(t, dir, "flac", valid), want: flac.ErrInvalidFormat},
		{name: "tag count", path: flactest.WriteFile(t, dir, "malformed.flac", malformed), want: flac.ErrFormat},
		{name: "truncated", path: flactest.WriteBytes(t, dir, "truncated.flac", truncated), want: flac.ErrFormat},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			tags, err := flac.ReadTags(g.path)
			assert.ErrorIs(t, err, g.want)
			assert.Nil(t, tags)
		})
	}
}

func TestDecodePCM(t *testing.T) {
	dir := t.TempDir()
	s := stereo(5)
	s.Blocks = []flactest.Block{flactest.VorbisComment("", [2]string{"TITLE", "x"})}
	path := flactest.WriteFile(t, dir, "song.flac", s)

	buf, err := flac.DecodePCM(path, flac.WithMD5Check())
	require.NoError(t, err)
	assert.Equal(t, uint32(44100), buf.SampleRate)
	assert.Equal(t, uint8(2), buf.Channels)
	assert.Equal(t, uint8(16), buf.BitsPerSample)
	assert.Equal(t, uint64(5*4096), buf.TotalSamples)
	assert.Len(t, buf.Samples, int(buf.TotalSamples)*int(buf.Channels))
	assert.Equal(t, s.Interleave(), buf.Samples)

	again, err := flac.DecodePCM(path)
	require.NoError(t, err)
	assert.Equal(t, buf, again)
}

func TestDecodePCMUnknownLength(t *testing.T) {
	s := &flactest.Stream{
		Info:          flactest.StreamInfo{SampleRate: 8000, NChannels: 3, BitsPerSample: 8},
		UnknownLength: true,
		Frames: []flactest.Frame{
			{Channels: flactest.ChannelsIndependent + 2, Samples: [][]int32{
				flactest.Noise(1000, 8, 1), flactest.Noise(1000, 8, 2), flactest.Noise(1000, 8, 3),
			}},
			{Variable: true, Channels: flactest.ChannelsIndependent + 2, Samples: [][]int32{
				flactest.Constant(17, 1), flactest.Constant(17, 2), flactest.Constant(17, 3),
			}},
		},
	}
	path := flactest.WriteFile(t, t.TempDir(), "unknown.flac", s)
	buf, err := flac.DecodePCM(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1017), buf.TotalSamples)
	assert.Equal(t, s.Interleave(), buf.Samples)
}

func TestDecodePCMID3(t *testing.T) {
	s := stereo(1)
	s.ID3Size = 1000
	path := flactest.WriteFile(t, t.TempDir(), "id3.flac", s)
	buf, err := flac.DecodePCM(path)
	require.NoError(t, err)
	assert.Equal(t, s.Interleave(), buf.Samples)
}

func TestDecodePCMErrors(t *testing.T) {
	dir := t.TempDir()
	valid, err := stereo(3).Bytes()
	require.NoError(t, err)

	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-1] ^= 0xFF

	short := stereo(2)
	short.Info.NSamples = 3 * 4096

	badMD5 := stereo(1)
	badMD5.ComputeMD5 = false
	badMD5.Info.MD5sum = [16]byte{1, 2, 3}

	golden := []struct {
		name  string
		path  string
		opts  []flac.DecodeOption
		want  error
		cause error
	}{
		{name: "missing", path: filepath.Join(dir, "missing.flac"), want: flac.ErrNotFound},
		{name: "extension", path: flactest.WriteBytes(t, dir, "song.mp3", valid), want: flac.ErrInvalidFormat},
		{name: "garbage", path: flactest.WriteBytes(t, dir, "garbage.flac", []byte("ID3 but not really")), want: flac.ErrFormat},
		{name: "frame checksum", path: flactest.WriteBytes(t, dir, "corrupt.flac", corrupt), want: flac.ErrDecode, cause: frame.ErrChecksum},
		{name: "truncated frame", path: flactest.WriteBytes(t, dir, "truncated.flac", valid[:len(valid)-100]), want: flac.ErrDecode},
		{name: "sample count", path: flactest.WriteFile(t, dir, "short.flac", short), want: flac.ErrDecode},
		{name: "MD5", path: flactest.WriteFile(t, dir, "md5.flac", badMD5), opts: []flac.DecodeOption{flac.WithMD5Check()}, want: flac.ErrDecode},
	}
	for _, g := range golden {
		t.Run(g.name, func(t *testing.T) {
			buf, err := flac.DecodePCM(g.path, g.opts...)
			assert.ErrorIs(t, err, g.want)
			assert.NotContains(t, err.Error(), "\x1b")
			if g.cause != nil {
				assert.ErrorIs(t, err, g.cause)
			}
			assert.Nil(t, buf)
		})
	}

	// The MD5 checksum is only verified on request.
	_, err = flac.DecodePCM(filepath.Join(dir, "md5.flac"))
	assert.NoError(t, err)
}

func TestPCMBufferIntBuffer(t *testing.T) {
	buf := &flac.PCMBuffer{
		SampleRate:    48000,
		Channels:      2,
		BitsPerSample: 24,
		TotalSamples:  2,
		Samples:       []int32{1, -1, 8388607, -8388608},
	}
	ib := buf.IntBuffer()
	assert.Equal(t, 2, ib.Format.NumChannels)
	assert.Equal(t, 48000, ib.Format.SampleRate)
	assert.Equal(t, 24, ib.SourceBitDepth)
	assert.Equal(t, []int{1, -1, 8388607, -8388608}, ib.Data)
	assert.Equal(t, 2, ib.NumFrames())
}

func TestError(t *testing.T) {
	cause := os.ErrPermission
	err := error(&flac.Error{Op: "ReadTags", Path: "a.flac", Kind: flac.ErrIO, Err: cause})
	assert.Equal(t, `flac: ReadTags "a.flac": I/O error: permission denied`, err.Error())
	assert.True(t, errors.Is(err, flac.ErrIO))
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.False(t, errors.Is(err, flac.ErrNotFound))

	err = &flac.Error{Op: "DecodePCM", Path: "a.mp3", Kind: flac.ErrInvalidFormat}
	assert.Equal(t, `flac: DecodePCM "a.mp3": not a FLAC file`, err.Error())
	assert.ErrorIs(t, err, flac.ErrInvalidFormat)
}

func TestErrorPlainText(t *testing.T) {
	useColor := errutil.UseColor
	defer func() { errutil.UseColor = useColor }()
	errutil.UseColor = true

	cause := errutil.Newf("invalid frame")
	err := &flac.Error{Op: "DecodePCM", Path: "a.flac", Kind: flac.ErrDecode, Err: cause}
	assert.NotContains(t, err.Error(), "\x1b")
	assert.Contains(t, err.Error(), "invalid frame")
	assert.ErrorIs(t, err, cause)
}

func TestHasFLACExt(t *testing.T) {
	golden := []struct {
		path string
		want bool
	}{
		{path: "a.flac", want: true},
		{path: "dir/B.FLAC", want: true},
		{path: "c.Flac", want: true},
		{path: "d.mp3", want: false},
		{path: "flac", want: false},
		{path: "e.flac.bak", want: false},
	}
	for _, g := range golden {
		assert.Equal(t, g.want, flac.HasFLACExt(g.path), g.path)
	}
}
