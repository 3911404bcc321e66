package flac

import (
	"bytes"
	"crypto/md5"
	"hash"
	"io"

	"github.com/go-audio/audio"
	"github.com/mewkiz/pkg/errutil"
)

// maxPrealloc caps the number of samples allocated up front from the sample
// count a stream declares.
const maxPrealloc = 1 << 24

// PCMBuffer holds the decoded audio samples of a FLAC file.
type PCMBuffer struct {
	// Sample rate in Hz.
	SampleRate uint32 `json:"sampleRate"`
	// Number of channels.
	Channels uint8 `json:"channels"`
	// Sample size in bits.
	BitsPerSample uint8 `json:"bitsPerSample"`
	// Total number of inter-channel samples.
	TotalSamples uint64 `json:"totalSamples"`
	// Samples interleaved across channels; len(Samples) is TotalSamples times
	// Channels.
	Samples []int32 `json:"pcm"`
}

// IntBuffer returns the samples as a go-audio buffer.
func (buf *PCMBuffer) IntBuffer() *audio.IntBuffer {
	data := make([]int, len(buf.Samples))
	for i, sample := range buf.Samples {
		data[i] = int(sample)
	}
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(buf.Channels),
			SampleRate:  int(buf.SampleRate),
		},
		Data:           data,
		SourceBitDepth: int(buf.BitsPerSample),
	}
}

// A DecodeOption configures DecodePCM.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	verifyMD5 bool
}

// WithMD5Check verifies the decoded samples against the MD5 checksum of the
// StreamInfo block, unless the stream leaves it unset.
func WithMD5Check() DecodeOption {
	return func(conf *decodeConfig) {
		conf.verifyMD5 = true
	}
}

// DecodePCM decodes every audio frame of the FLAC file at path. No buffer is
// returned if any frame fails to decode.
func DecodePCM(path string, opts ...DecodeOption) (*PCMBuffer, error) {
	const op = "DecodePCM"
	var conf decodeConfig
	for _, opt := range opts {
		opt(&conf)
	}
	if err := checkFLACFile(op, path); err != nil {
		return nil, err
	}
	f, err := openFile(op, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stream, err := New(f)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Kind: ErrFormat, Err: err}
	}
	samples, err := decodeFrames(stream, conf)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Kind: ErrDecode, Err: err}
	}

	info := stream.Info
	buf := &PCMBuffer{
		SampleRate:    info.SampleRate,
		Channels:      info.NChannels,
		BitsPerSample: info.BitsPerSample,
		TotalSamples:  info.NSamples,
		Samples:       samples,
	}
	if buf.TotalSamples == 0 {
		buf.TotalSamples = uint64(len(samples) / int(info.NChannels))
	}
	return buf, nil
}

// decodeFrames decodes the remaining audio frames of stream into an
// interleaved sample buffer.
func decodeFrames(stream *Stream, conf decodeConfig) ([]int32, error) {
	info := stream.Info
	var md5sum hash.Hash
	var zero [md5.Size]byte
	if conf.verifyMD5 && info.MD5sum != zero {
		md5sum = md5.New()
	}

	n := info.NSamples * uint64(info.NChannels)
	if n > maxPrealloc {
		n = maxPrealloc
	}
	samples := make([]int32, 0, n)
	for {
		f, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		samples = f.AppendInterleaved(samples)
		if md5sum != nil {
			f.Hash(md5sum)
		}
	}

	if want := info.NSamples; want != 0 && stream.SamplesDecoded() != want {
		return nil, errutil.Newf("decoded samples (%d) differ from StreamInfo sample count (%d)", stream.SamplesDecoded(), want)
	}
	if md5sum != nil {
		if got := md5sum.Sum(nil); !bytes.Equal(got, info.MD5sum[:]) {
			return nil, errutil.Newf("MD5 checksum mismatch; expected %032x, got %032x", info.MD5sum, got)
		}
	}
	return samples, nil
}
