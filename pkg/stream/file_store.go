package stream

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/samcharles93/dngpack/pkg/dngerr"
)

// FileStore is a Store over a real file handle.
type FileStore struct {
	f    *os.File
	path string
	own  bool
}

// CreateFile creates (or truncates) path for writing.
func CreateFile(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, dngerr.Wrap(dngerr.ErrOpenFile, err)
	}
	return &FileStore{f: f, path: path, own: true}, nil
}

// OpenFile opens an existing file for reading and writing.
func OpenFile(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, dngerr.Wrap(dngerr.ErrOpenFile, err)
	}
	return &FileStore{f: f, path: path, own: true}, nil
}

// NewFileStore wraps an already open file. Close will not close it.
func NewFileStore(f *os.File) (*FileStore, error) {
	if f == nil {
		return nil, dngerr.Programf("stream: nil file")
	}
	return &FileStore{f: f, path: f.Name()}, nil
}

func (fs *FileStore) Path() string { return fs.path }

func (fs *FileStore) ReadAt(p []byte, off uint64) error {
	if off > math.MaxInt64 {
		return fmt.Errorf("%w: offset %d", dngerr.ErrEndOfFile, off)
	}
	n, err := fs.f.ReadAt(p, int64(off))
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: short read of %d/%d bytes at %d", dngerr.ErrEndOfFile, n, len(p), off)
	}
	return dngerr.Wrap(dngerr.ErrReadFile, err)
}

func (fs *FileStore) WriteAt(p []byte, off uint64) error {
	if off > math.MaxInt64 {
		return fmt.Errorf("%w: offset %d", dngerr.ErrWriteFile, off)
	}
	if _, err := fs.f.WriteAt(p, int64(off)); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	return nil
}

func (fs *FileStore) Length() (uint64, error) {
	st, err := fs.f.Stat()
	if err != nil {
		return 0, dngerr.Wrap(dngerr.ErrReadFile, err)
	}
	return uint64(st.Size()), nil
}

func (fs *FileStore) SetLength(n uint64) error {
	if n > math.MaxInt64 {
		return fmt.Errorf("%w: length %d", dngerr.ErrWriteFile, n)
	}
	if err := fs.f.Truncate(int64(n)); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	return nil
}

func (fs *FileStore) Flush() error {
	if err := syncData(fs.f); err != nil {
		return dngerr.Wrap(dngerr.ErrWriteFile, err)
	}
	return nil
}

// Close syncs and closes a file opened by CreateFile or OpenFile. Both
// failures are reported.
func (fs *FileStore) Close() error {
	if fs.f == nil {
		return nil
	}
	var result *multierror.Error
	if err := syncData(fs.f); err != nil {
		result = multierror.Append(result, dngerr.Wrap(dngerr.ErrWriteFile, err))
	}
	if fs.own {
		if err := fs.f.Close(); err != nil {
			result = multierror.Append(result, dngerr.Wrap(dngerr.ErrWriteFile, err))
		}
	}
	fs.f = nil
	return result.ErrorOrNil()
}
