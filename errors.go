package flac

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
)

// Kinds of failure reported by the library operations. Every error returned by
// ReadStreamInfo, ReadTags and DecodePCM is an *Error matching exactly one of
// them with errors.Is.
var (
	// ErrNotFound reports a path which does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFormat reports a file without the ".flac" extension.
	ErrInvalidFormat = errors.New("not a FLAC file")
	// ErrFormat reports a FLAC signature or metadata which cannot be parsed.
	ErrFormat = errors.New("invalid FLAC stream")
	// ErrDecode reports an audio frame which cannot be decoded.
	ErrDecode = errors.New("unable to decode audio")
	// ErrNotADirectory reports a library path which is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrIO reports a file or directory which cannot be read.
	ErrIO = errors.New("I/O error")
)

// An Error records a failed operation on a path.
type Error struct {
	// Operation which failed, e.g. "ReadTags".
	Op string
	// Path of the file or directory.
	Path string
	// Kind of failure; one of the Err sentinels of this package.
	Kind error
	// Underlying cause; may be nil.
	Err error
}

// termEscape matches the terminal color sequences which errutil adds to the
// parser errors of meta and frame while errutil.UseColor is set.
var termEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Error returns the failure as plain text, without terminal color sequences.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("flac: %s %q: %v", e.Op, e.Path, e.Kind)
	}
	cause := termEscape.ReplaceAllString(e.Err.Error(), "")
	return fmt.Sprintf("flac: %s %q: %v: %s", e.Op, e.Path, e.Kind, cause)
}

// Unwrap returns the kind and the cause of the failure.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// statError returns the error of a failed stat or open of path.
func statError(op, path string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: op, Path: path, Kind: ErrNotFound, Err: err}
	}
	return &Error{Op: op, Path: path, Kind: ErrIO, Err: err}
}

// openFile opens path for reading.
func openFile(op, path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, statError(op, path, err)
	}
	return f, nil
}

// checkFLACFile verifies that path exists and carries the FLAC extension.
func checkFLACFile(op, path string) error {
	if _, err := os.Stat(path); err != nil {
		return statError(op, path, err)
	}
	if !HasFLACExt(path) {
		return &Error{Op: op, Path: path, Kind: ErrInvalidFormat}
	}
	return nil
}
