// Package flash provides non-volatile regions for the persistence layer. The
// memory card and settings are stored with erase-then-program semantics in
// units of whole sectors.
package flash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const SectorSize = 4096

var ErrBounds = errors.New("access beyond flash capacity")

// Region is the flash area reserved for persistent data.
type Region interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

// Memory is a Region in RAM. It counts program operations.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	programs int
}

// NewMemory returns an erased region of the given size.
func NewMemory(size int64) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() int64 {
	return int64(len(m.data))
}

func (m *Memory) ReadAt(p []byte, off int64) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("%w: %#x", ErrBounds, off)
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// WriteAt counts as one erase/program cycle. Bytes of the touched sectors
// outside p are preserved.
func (m *Memory) WriteAt(p []byte, off int64) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("%w: %#x+%#x", ErrBounds, off, len(p))
	}
	m.programs++
	return copy(m.data[off:], p), nil
}

// Programs returns the number of write operations since creation.
func (m *Memory) Programs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programs
}

// File is a Region backed by an image file of fixed capacity, e.g. a dump of
// the microcontroller's flash.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates an image of the given capacity. Missing bytes are
// zero filled.
func OpenFile(name string, size int64) (*File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &File{f, size}, nil
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > f.size {
		return 0, fmt.Errorf("%w: %#x", ErrBounds, off)
	}
	if rem := f.size - off; int64(len(p)) > rem {
		n, err := f.f.ReadAt(p[:rem], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return f.f.ReadAt(p, off)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > f.size {
		return 0, fmt.Errorf("%w: %#x+%#x", ErrBounds, off, len(p))
	}
	n, err := f.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, f.f.Sync()
}

func (f *File) Close() error {
	return f.f.Close()
}
