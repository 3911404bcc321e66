package meta

import (
	"io"

	"github.com/mewkiz/pkg/errutil"
)

// Application contains third party application specific data.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_application
type Application struct {
	// Registered application ID.
	//
	// ref: https://www.xiph.org/flac/id.html
	ID uint32
	// Application data.
	Data []byte
}

// parseApplication reads and parses the body of an Application metadata block.
func (block *Block) parseApplication() error {
	// 32 bits: ID.
	buf, err := block.readBytes(4)
	if err != nil {
		return err
	}
	app := &Application{ID: uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])}
	block.Body = app

	// Check if the Application block only contains an ID.
	if block.lr.N == 0 {
		return nil
	}

	// (block length)-4 bytes: Data.
	app.Data, err = io.ReadAll(block.lr)
	if err != nil {
		return errutil.Err(err)
	}
	return nil
}

// IDString returns the application ID as its four character code.
func (app *Application) IDString() string {
	return string([]byte{byte(app.ID >> 24), byte(app.ID >> 16), byte(app.ID >> 8), byte(app.ID)})
}
