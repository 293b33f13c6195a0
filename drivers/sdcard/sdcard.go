// Package sdcard provides block access to the SD card used for memory card
// backups. On the host the card is a raw disk image.
package sdcard

import (
	"errors"
	"fmt"
	"sync"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
)

const BlockSize = 512

// Transfers are retried this many times before a block is reported as
// failed.
const Retries = 3

var (
	ErrNoCard      = errors.New("no card")
	ErrBlockSize   = errors.New("invalid block size")
	ErrOutOfBounds = errors.New("block beyond end of card")
	ErrReadOnly    = errors.New("card is read-only")
)

// Card is a block device that may be removed at any time.
type Card interface {
	Available() bool
	ReadBlock(addr uint32, p []byte) error
	WriteBlock(addr uint32, p []byte) error
}

// Image is a Card backed by a disk image.
type Image struct {
	mu       sync.Mutex
	disk     *disk.Disk
	inserted bool
}

// Open opens an existing card image.
func Open(name string) (*Image, error) {
	d, err := diskfs.Open(name)
	if err != nil {
		return nil, err
	}
	return newImage(d)
}

// Create creates a blank card image with the given number of blocks.
func Create(name string, blocks int64) (*Image, error) {
	d, err := diskfs.Create(name, blocks*BlockSize, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return nil, err
	}
	return newImage(d)
}

func newImage(d *disk.Disk) (*Image, error) {
	if d.LogicalBlocksize != BlockSize {
		d.File.Close()
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, d.LogicalBlocksize)
	}
	return &Image{disk: d, inserted: true}, nil
}

// Blocks returns the capacity of the card.
func (c *Image) Blocks() int64 {
	return c.disk.Size / BlockSize
}

func (c *Image) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserted
}

// Eject and Insert simulate removal of the card.
func (c *Image) Eject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserted = false
}

func (c *Image) Insert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserted = true
}

func (c *Image) check(addr uint32, p []byte) error {
	if !c.inserted {
		return ErrNoCard
	}
	if len(p) != BlockSize {
		return fmt.Errorf("%w: %d", ErrBlockSize, len(p))
	}
	if int64(addr) >= c.Blocks() {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, addr)
	}
	return nil
}

func (c *Image) ReadBlock(addr uint32, p []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err = c.check(addr, p); err != nil {
		return
	}
	for range Retries {
		_, err = c.disk.File.ReadAt(p, int64(addr)*BlockSize)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("read block %d: %w", addr, err)
}

func (c *Image) WriteBlock(addr uint32, p []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err = c.check(addr, p); err != nil {
		return
	}
	if !c.disk.Writable {
		return ErrReadOnly
	}
	for range Retries {
		_, err = c.disk.File.WriteAt(p, int64(addr)*BlockSize)
		if err == nil {
			return nil
		}
	}
	return fmt.Errorf("write block %d: %w", addr, err)
}

func (c *Image) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserted = false
	return c.disk.File.Close()
}
