// Package library indexes directories of FLAC files.
package library

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/litesound/flac"
)

// DefaultDir is the library directory scanned when none is given.
const DefaultDir = "data"

// Status tells whether every part of a track summary could be read.
type Status string

// Track summary statuses.
const (
	// StatusOK marks a summary holding the stream parameters and tags of its
	// file.
	StatusOK Status = "ok"
	// StatusDegraded marks a summary of a file whose stream parameters or tags
	// could not be read; the unreadable part is left zero or empty.
	StatusDegraded Status = "degraded"
)

// A TrackSummary describes a FLAC file of the library.
type TrackSummary struct {
	// Absolute path of the file.
	Path string `json:"path"`
	// Base name of the file.
	FileName string `json:"fileName"`
	// Stream parameters; zero when unreadable.
	SampleRate    uint32  `json:"sampleRate"`
	Channels      uint8   `json:"channels"`
	BitsPerSample uint8   `json:"bitsPerSample"`
	TotalSamples  *uint64 `json:"totalSamples"`
	// Duration in milliseconds; nil unless both the sample count and a non-zero
	// sample rate are known.
	DurationMs *uint64 `json:"durationMs"`
	// Tags of the file; empty when unreadable.
	Tags flac.TagSet `json:"tags"`

	Status Status `json:"status"`
	// Failure to read the stream parameters and the tags respectively.
	InfoErr error `json:"-"`
	TagsErr error `json:"-"`
	// Description of the failures of a degraded summary.
	Reason string `json:"error,omitempty"`
}

// An Option configures a Scanner.
type Option func(*Scanner)

// WithLogger logs per-file failures to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.log = logger
	}
}

// A Scanner lists the FLAC files of library directories. A Scanner holds no
// state between calls and is safe for concurrent use.
type Scanner struct {
	log *slog.Logger
}

// NewScanner returns a new Scanner. By default nothing is logged.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTracks returns one summary per file of dir with the extension ".flac",
// in any case, in directory order. Subdirectories and other files are
// skipped. An empty dir selects DefaultDir.
//
// Files which cannot be read yield a degraded summary rather than an error.
func (s *Scanner) ListTracks(dir string) ([]TrackSummary, error) {
	const op = "ListTracks"
	if dir == "" {
		dir = DefaultDir
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &flac.Error{Op: op, Path: dir, Kind: flac.ErrNotFound, Err: err}
		}
		return nil, &flac.Error{Op: op, Path: dir, Kind: flac.ErrIO, Err: err}
	}
	if !fi.IsDir() {
		return nil, &flac.Error{Op: op, Path: dir, Kind: flac.ErrNotADirectory}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &flac.Error{Op: op, Path: dir, Kind: flac.ErrIO, Err: err}
	}

	s.log.Debug("scanning library", "dir", dir, "entries", len(entries))
	tracks := make([]TrackSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !flac.HasFLACExt(entry.Name()) {
			continue
		}
		tracks = append(tracks, s.summarize(filepath.Join(dir, entry.Name())))
	}
	return tracks, nil
}

// summarize reads the stream parameters and the tags of path independently.
func (s *Scanner) summarize(path string) TrackSummary {
	track := TrackSummary{
		Path:     path,
		FileName: filepath.Base(path),
		Tags:     flac.TagSet{},
		Status:   StatusOK,
	}
	if abs, err := filepath.Abs(path); err == nil {
		track.Path = abs
	}

	if info, err := flac.ReadStreamInfo(path); err != nil {
		track.InfoErr = err
	} else {
		track.SampleRate = info.SampleRate
		track.Channels = info.Channels
		track.BitsPerSample = info.BitsPerSample
		track.TotalSamples = info.TotalSamples
		track.DurationMs = DurationMs(info)
	}

	if tags, err := flac.ReadTags(path); err != nil {
		track.TagsErr = err
	} else {
		track.Tags = tags
	}

	if err := errors.Join(track.InfoErr, track.TagsErr); err != nil {
		track.Status = StatusDegraded
		track.Reason = err.Error()
		s.log.Warn("unable to read track", "path", path, "err", err)
	}
	return track
}

// DurationMs returns the duration of a stream in whole milliseconds, rounded
// down, or nil if the sample count or the sample rate is unknown.
func DurationMs(info flac.AudioStreamInfo) *uint64 {
	if info.TotalSamples == nil || info.SampleRate == 0 {
		return nil
	}
	ms := uint64(float64(*info.TotalSamples) / float64(info.SampleRate) * 1000)
	return &ms
}
