package flac

import (
	"path/filepath"
	"strings"

	"github.com/litesound/flac/meta"
)

// AudioStreamInfo holds the structural parameters of a FLAC stream.
type AudioStreamInfo struct {
	// Sample rate in Hz.
	SampleRate uint32 `json:"sampleRate"`
	// Number of channels.
	Channels uint8 `json:"channels"`
	// Sample size in bits.
	BitsPerSample uint8 `json:"bitsPerSample"`
	// Total number of inter-channel samples; nil when the stream does not
	// declare it.
	TotalSamples *uint64 `json:"totalSamples"`
}

// NewAudioStreamInfo returns the stream parameters held by a StreamInfo block.
func NewAudioStreamInfo(si *meta.StreamInfo) AudioStreamInfo {
	info := AudioStreamInfo{
		SampleRate:    si.SampleRate,
		Channels:      si.NChannels,
		BitsPerSample: si.BitsPerSample,
	}
	if si.NSamples != 0 {
		n := si.NSamples
		info.TotalSamples = &n
	}
	return info
}

// ReadStreamInfo returns the stream parameters of the FLAC file at path. The
// file is identified by its signature; the extension is not checked.
func ReadStreamInfo(path string) (AudioStreamInfo, error) {
	const op = "ReadStreamInfo"
	f, err := openFile(op, path)
	if err != nil {
		return AudioStreamInfo{}, err
	}
	defer f.Close()
	stream, err := New(f)
	if err != nil {
		return AudioStreamInfo{}, &Error{Op: op, Path: path, Kind: ErrFormat, Err: err}
	}
	return NewAudioStreamInfo(stream.Info), nil
}

// HasFLACExt reports whether path has the extension ".flac", in any case.
func HasFLACExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".flac")
}
