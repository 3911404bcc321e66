package main

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/litesound/flac"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// decodeSummary is printed once a file has been decoded.
type decodeSummary struct {
	Path          string `json:"path"`
	Output        string `json:"output"`
	SampleRate    uint32 `json:"sampleRate"`
	Channels      uint8  `json:"channels"`
	BitsPerSample uint8  `json:"bitsPerSample"`
	TotalSamples  uint64 `json:"totalSamples"`
}

func (a *app) decodeCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "decode [-o OUTPUT] PATH",
		Short: "Decode a FLAC file to WAV or raw PCM",
		Long: `Decode a FLAC file to WAV or raw PCM.

The output format follows the extension of OUTPUT: ".wav" for a WAV file and
".pcm" for raw little-endian PCM with interleaved channels. OUTPUT defaults to
PATH with the extension ".wav".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if output == "" {
				output = pathutil.TrimExt(path) + ".wav"
			}
			ext := strings.ToLower(filepath.Ext(output))
			if ext != ".wav" && ext != ".pcm" {
				return usageError(cmd, "unsupported output extension %q; expected .wav or .pcm", filepath.Ext(output))
			}
			if !force {
				if _, err := os.Stat(output); err == nil {
					return usageError(cmd, "the file %q exists already", output)
				}
			}

			var opts []flac.DecodeOption
			if a.conf.GetBool(keyVerifyMD5) {
				opts = append(opts, flac.WithMD5Check())
			}
			a.log.Debug("decoding", "path", path, "output", output)
			buf, err := flac.DecodePCM(path, opts...)
			if err != nil {
				return errors.WithStack(err)
			}
			if ext == ".pcm" {
				err = writePCM(output, buf)
			} else {
				err = writeWAV(output, buf)
			}
			if err != nil {
				return err
			}
			return a.printJSON(decodeSummary{
				Path:          path,
				Output:        output,
				SampleRate:    buf.SampleRate,
				Channels:      buf.Channels,
				BitsPerSample: buf.BitsPerSample,
				TotalSamples:  buf.TotalSamples,
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "output file (.wav or .pcm)")
	flags.BoolVarP(&force, "force", "f", false, "overwrite an existing output file")
	flags.Bool("md5", false, "verify the MD5 checksum of the decoded samples")
	a.conf.BindPFlag(keyVerifyMD5, flags.Lookup("md5"))
	return cmd
}

// containerDepth returns the sample size in bits used to store samples of
// bps bits; the next multiple of 8.
func containerDepth(bps uint8) int {
	return (int(bps) + 7) / 8 * 8
}

// writeWAV stores the samples of buf as a PCM WAV file at path. Sample sizes
// which are not a multiple of 8 are scaled up to the next one.
func writeWAV(path string, buf *flac.PCMBuffer) error {
	depth := containerDepth(buf.BitsPerSample)
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	ib := buf.IntBuffer()
	shift := depth - int(buf.BitsPerSample)
	for i := range ib.Data {
		ib.Data[i] <<= shift
		if depth == 8 {
			// 8-bit WAV samples are unsigned.
			ib.Data[i] += 128
		}
	}
	enc := wav.NewEncoder(f, int(buf.SampleRate), depth, int(buf.Channels), 1)
	if err := enc.Write(ib); err != nil {
		return errors.Wrapf(err, "unable to write %q", path)
	}
	if err := enc.Close(); err != nil {
		return errors.Wrapf(err, "unable to write %q", path)
	}
	return errors.WithStack(f.Close())
}

// writePCM stores the samples of buf at path as raw little-endian signed
// integers, each taking the minimum number of whole bytes.
func writePCM(path string, buf *flac.PCMBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	n := containerDepth(buf.BitsPerSample) / 8
	var b [4]byte
	for _, sample := range buf.Samples {
		binary.LittleEndian.PutUint32(b[:], uint32(sample))
		if _, err := bw.Write(b[:n]); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "unable to write %q", path)
	}
	return errors.WithStack(f.Close())
}
