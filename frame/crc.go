package frame

import (
	"io"

	"github.com/litesound/flac/internal/hashutil"
	"github.com/litesound/flac/internal/hashutil/crc16"
	"github.com/litesound/flac/internal/hashutil/crc8"
)

// hashReader is an io.ByteReader which adds every byte read to the running
// CRC-8 and CRC-16 hashes of the current frame. Bytes are consumed one at a
// time, so no data beyond the end of the frame is read from the underlying
// reader.
type hashReader struct {
	r  io.Reader
	br io.ByteReader
	// CRC-8 of the frame header.
	crc8 hashutil.Hash8
	// CRC-16 of the entire frame.
	crc16 hashutil.Hash16
	buf [1]byte
}

// newHashReader returns a new hashReader reading from r.
func newHashReader(r io.Reader) *hashReader {
	hr := &hashReader{
		r:     r,
		crc8:  crc8.NewATM(),
		crc16: crc16.NewIBM(),
	}
	if br, ok := r.(io.ByteReader); ok {
		hr.br = br
	}
	return hr
}

// ReadByte reads and hashes a single byte.
func (hr *hashReader) ReadByte() (byte, error) {
	if hr.br != nil {
		b, err := hr.br.ReadByte()
		if err != nil {
			return 0, err
		}
		hr.buf[0] = b
	} else if _, err := io.ReadFull(hr.r, hr.buf[:]); err != nil {
		return 0, err
	}
	hr.crc8.Write(hr.buf[:])
	hr.crc16.Write(hr.buf[:])
	return hr.buf[0], nil
}

// Read reads and hashes len(p) bytes, one at a time.
func (hr *hashReader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		b, err := hr.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}
