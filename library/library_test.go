package library_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/litesound/flac"
	"github.com/litesound/flac/internal/flactest"
	"github.com/litesound/flac/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mono returns a mono, 16-bit stream at rate Hz holding n samples.
func mono(rate uint32, n int, tags ...[2]string) *flactest.Stream {
	s := &flactest.Stream{
		Info: flactest.StreamInfo{SampleRate: rate, NChannels: 1, BitsPerSample: 16},
	}
	for n > 0 {
		size := min(n, 4096)
		s.Frames = append(s.Frames, flactest.Frame{
			Samples:   [][]int32{flactest.Sine(size, 16, 64)},
			Subframes: []flactest.Subframe{{Pred: flactest.PredFixed, Order: 1}},
		})
		n -= size
	}
	if len(tags) > 0 {
		s.Blocks = []flactest.Block{flactest.VorbisComment("", tags...)}
	}
	return s
}

// byName sorts tracks by file name.
func byName(tracks []library.TrackSummary) {
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].FileName < tracks[j].FileName
	})
}

func TestListTracks(t *testing.T) {
	dir := t.TempDir()
	flactest.WriteFile(t, dir, "a.flac", mono(44100, 44100, [2]string{"ARTIST", "A"}, [2]string{"ARTIST", "B"}))
	flactest.WriteFile(t, dir, "b.FLAC", mono(48000, 4800))
	flactest.WriteBytes(t, dir, "corrupt.flac", []byte("corrupt"))
	flactest.WriteBytes(t, dir, "cover.jpg", []byte{0xFF, 0xD8})
	flactest.WriteBytes(t, dir, "notes.txt", []byte("notes"))
	flactest.WriteFile(t, dir, "song.flac.bak", mono(44100, 100))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.flac"), 0o755))
	flactest.WriteFile(t, filepath.Join(dir, "sub.flac"), "nested.flac", mono(44100, 100))

	var logs bytes.Buffer
	s := library.NewScanner(library.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	tracks, err := s.ListTracks(dir)
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	byName(tracks)

	a := tracks[0]
	assert.Equal(t, filepath.Join(dir, "a.flac"), a.Path)
	assert.True(t, filepath.IsAbs(a.Path))
	assert.Equal(t, "a.flac", a.FileName)
	assert.Equal(t, uint32(44100), a.SampleRate)
	assert.Equal(t, uint8(1), a.Channels)
	assert.Equal(t, uint8(16), a.BitsPerSample)
	require.NotNil(t, a.TotalSamples)
	assert.Equal(t, uint64(44100), *a.TotalSamples)
	require.NotNil(t, a.DurationMs)
	assert.Equal(t, uint64(1000), *a.DurationMs)
	assert.Equal(t, flac.TagSet{"ARTIST": "A; B"}, a.Tags)
	assert.Equal(t, library.StatusOK, a.Status)
	assert.NoError(t, a.InfoErr)
	assert.NoError(t, a.TagsErr)

	b := tracks[1]
	assert.Equal(t, "b.FLAC", b.FileName)
	require.NotNil(t, b.DurationMs)
	assert.Equal(t, uint64(100), *b.DurationMs)
	assert.NotNil(t, b.Tags)
	assert.Empty(t, b.Tags)

	corrupt := tracks[2]
	assert.Equal(t, "corrupt.flac", corrupt.FileName)
	assert.Equal(t, library.StatusDegraded, corrupt.Status)
	assert.Zero(t, corrupt.SampleRate)
	assert.Zero(t, corrupt.Channels)
	assert.Zero(t, corrupt.BitsPerSample)
	assert.Nil(t, corrupt.TotalSamples)
	assert.Nil(t, corrupt.DurationMs)
	assert.NotNil(t, corrupt.Tags)
	assert.Empty(t, corrupt.Tags)
	assert.ErrorIs(t, corrupt.InfoErr, flac.ErrFormat)
	assert.ErrorIs(t, corrupt.TagsErr, flac.ErrFormat)
	assert.NotEmpty(t, corrupt.Reason)
	assert.NotContains(t, corrupt.Reason, "\x1b")

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "corrupt.flac")
}

func TestListTracksDegradedParts(t *testing.T) {
	dir := t.TempDir()
	// Valid stream parameters followed by a comment block whose tag count
	// exceeds its body.
	s := mono(44100, 4096)
	s.Blocks = []flactest.Block{{Type: flactest.TypeVorbisComment, Body: []byte{0, 0, 0, 0, 0xFF, 0xFF, 0, 0}}}
	flactest.WriteFile(t, dir, "tags.flac", s)

	tracks, err := library.NewScanner().ListTracks(dir)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	track := tracks[0]
	assert.Equal(t, library.StatusDegraded, track.Status)
	assert.NoError(t, track.InfoErr)
	assert.ErrorIs(t, track.TagsErr, flac.ErrFormat)
	assert.Equal(t, uint32(44100), track.SampleRate)
	assert.Empty(t, track.Tags)
}

func TestListTracksPaddingNotZero(t *testing.T) {
	dir := t.TempDir()
	s := mono(44100, 4096, [2]string{"ARTIST", "A"})
	s.Blocks = append([]flactest.Block{{Type: flactest.TypePadding, Body: []byte{0, 1, 0}}}, s.Blocks...)
	flactest.WriteFile(t, dir, "padded.flac", s)

	tracks, err := library.NewScanner().ListTracks(dir)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, library.StatusOK, tracks[0].Status)
	assert.Equal(t, flac.TagSet{"ARTIST": "A"}, tracks[0].Tags)
}

func TestListTracksUnknownLength(t *testing.T) {
	dir := t.TempDir()
	s := mono(44100, 1000)
	s.UnknownLength = true
	flactest.WriteFile(t, dir, "stream.flac", s)

	tracks, err := library.NewScanner().ListTracks(dir)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, library.StatusOK, tracks[0].Status)
	assert.Nil(t, tracks[0].TotalSamples)
	assert.Nil(t, tracks[0].DurationMs)
}

func TestListTracksEmpty(t *testing.T) {
	tracks, err := library.NewScanner().ListTracks(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)

	data, err := json.Marshal(tracks)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestListTracksDefaultDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, library.DefaultDir), 0o755))
	flactest.WriteFile(t, filepath.Join(dir, library.DefaultDir), "x.flac", mono(8000, 800))
	t.Chdir(dir)

	tracks, err := library.NewScanner().ListTracks("")
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "x.flac", tracks[0].FileName)
	assert.True(t, filepath.IsAbs(tracks[0].Path))
}

func TestListTracksErrors(t *testing.T) {
	dir := t.TempDir()
	file := flactest.WriteFile(t, dir, "a.flac", mono(44100, 100))

	_, err := library.NewScanner().ListTracks(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, flac.ErrNotFound)

	tracks, err := library.NewScanner().ListTracks(file)
	assert.ErrorIs(t, err, flac.ErrNotADirectory)
	assert.Nil(t, tracks)
}

func TestListTracksIdempotent(t *testing.T) {
	dir := t.TempDir()
	flactest.WriteFile(t, dir, "a.flac", mono(44100, 5000, [2]string{"TITLE", "a"}))
	flactest.WriteBytes(t, dir, "b.flac", nil)

	s := library.NewScanner()
	first, err := s.ListTracks(dir)
	require.NoError(t, err)
	second, err := s.ListTracks(dir)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	byName(first)
	byName(second)
	for i := range first {
		assert.Equal(t, first[i].Reason, second[i].Reason)
		first[i].InfoErr, first[i].TagsErr = nil, nil
		second[i].InfoErr, second[i].TagsErr = nil, nil
	}
	assert.Equal(t, first, second)
}

func TestDurationMs(t *testing.T) {
	u64 := func(x uint64) *uint64 { return &x }
	golden := []struct {
		name string
		info flac.AudioStreamInfo
		want *uint64
	}{
		{name: "one second", info: flac.AudioStreamInfo{SampleRate: 44100, TotalSamples: u64(44100)}, want: u64(1000)},
		{name: "fraction rounded down", info: flac.AudioStreamInfo{SampleRate: 3, TotalSamples: u64(1)}, want: u64(333)},
		{name: "two thirds", info: flac.AudioStreamInfo{SampleRate: 3, TotalSamples: u64(2)}, want: u64(666)},
		{name: "just under a millisecond", info: flac.AudioStreamInfo{SampleRate: 44100, TotalSamples: u64(44)}, want: u64(0)},
		{name: "long", info: flac.AudioStreamInfo{SampleRate: 48000, TotalSamples: u64(48000 * 3600)}, want: u64(3600000)},
		{name: "unknown samples", info: flac.AudioStreamInfo{SampleRate: 44100}, want: nil},
		{name: "zero rate", info: flac.AudioStreamInfo{TotalSamples: u64(10)}, want: nil},
	}
	for _, g := range golden {
		assert.Equal(t, g.want, library.DurationMs(g.info), g.name)
	}
}

func TestTrackSummaryJSON(t *testing.T) {
	ms, n := uint64(1000), uint64(44100)
	track := library.TrackSummary{
		Path:          "/music/a.flac",
		FileName:      "a.flac",
		SampleRate:    44100,
		Channels:      2,
		BitsPerSample: 16,
		TotalSamples:  &n,
		DurationMs:    &ms,
		Tags:          flac.TagSet{"ARTIST": "A; B"},
		Status:        library.StatusOK,
	}
	data, err := json.Marshal(track)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"path": "/music/a.flac",
		"fileName": "a.flac",
		"sampleRate": 44100,
		"channels": 2,
		"bitsPerSample": 16,
		"totalSamples": 44100,
		"durationMs": 1000,
		"tags": {"ARTIST": "A; B"},
		"status": "ok"
	}`, string(data))
}
