// Package dngerr holds the failure kinds shared by the stream, tag and image
// writing layers. Every error returned by those packages matches exactly one
// of these sentinels with errors.Is.
package dngerr

import (
	"errors"
	"fmt"
)

var (
	ErrEndOfFile   = errors.New("dng: end of file")
	ErrOpenFile    = errors.New("dng: open file failed")
	ErrReadFile    = errors.New("dng: read file failed")
	ErrWriteFile   = errors.New("dng: write file failed")
	ErrMemoryFull  = errors.New("dng: memory full")
	ErrImageTooBig = errors.New("dng: image too big for 32-bit offsets")
	ErrProgram     = errors.New("dng: program error")
	ErrCancelled   = errors.New("dng: cancelled")
)

var kinds = []error{
	ErrEndOfFile, ErrOpenFile, ErrReadFile, ErrWriteFile,
	ErrMemoryFull, ErrImageTooBig, ErrProgram, ErrCancelled,
}

// Kind returns the sentinel err matches, or nil for foreign errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Wrap attaches a failure kind to an underlying cause so that both
// errors.Is(err, kind) and errors.Is(err, cause) hold. A cause that already
// carries a kind is returned unchanged, and a nil cause gives nil.
func Wrap(kind, cause error) error {
	if cause == nil {
		return nil
	}
	if Kind(cause) != nil {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Programf reports a violated internal invariant.
func Programf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProgram, fmt.Sprintf(format, args...))
}
