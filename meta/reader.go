package meta

import (
	"encoding/binary"
	"io"

	"github.com/mewkiz/pkg/errutil"
)

// readBytes reads exactly n bytes from the block body. Lengths exceeding the
// unread part of the body are rejected before any allocation takes place.
func (block *Block) readBytes(n uint64) ([]byte, error) {
	if n > uint64(block.lr.N) {
		return nil, errutil.Newf("length %d exceeds remaining block body of %d bytes", n, block.lr.N)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(block.lr, buf); err != nil {
		return nil, unexpected(err)
	}
	return buf, nil
}

// readUint32 reads a 32-bit integer of the given byte order from the block
// body.
func (block *Block) readUint32(order binary.ByteOrder) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(block.lr, buf[:]); err != nil {
		return 0, unexpected(err)
	}
	return order.Uint32(buf[:]), nil
}

// unexpected reports a premature end of the block body.
func unexpected(err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return errutil.Err(err)
}
