// Package vmu manages the memory card image exposed to the console. Several
// card images (pages) are kept in persistent storage, exactly one of them is
// mounted at a time.
package vmu

import (
	"errors"
	"fmt"
)

const (
	BlockSize  = 512
	PageBlocks = 4
	PageSize   = PageBlocks * BlockSize

	// Write accesses per block on the bus. Each transfers a phase of the
	// block.
	WritePhases = 4
	PhaseSize   = BlockSize / WritePhases
)

const (
	FirstPage = 1
	LastPage  = 8
	Pages     = LastPage - FirstPage + 1
)

var (
	ErrBlockOutOfRange = errors.New("block out of range")
	ErrPhaseOutOfRange = errors.New("phase out of range")
	ErrBlockLength     = errors.New("invalid block data length")
)

// Page is a complete memory card image.
type Page [PageSize]byte

// Block returns the block with index i, sharing memory with p.
func (p *Page) Block(i int) ([]byte, error) {
	if i < 0 || i >= PageBlocks {
		return nil, fmt.Errorf("%w: %d", ErrBlockOutOfRange, i)
	}
	return p[i*BlockSize : (i+1)*BlockSize], nil
}

// WrapPage maps any page number into FirstPage..LastPage. Cycling forward from
// the last page arrives at the first and vice versa.
func WrapPage(n int) int {
	n = (n - FirstPage) % Pages
	if n < 0 {
		n += Pages
	}
	return n + FirstPage
}

// Geometry of the card as reported to the console. Blocks are numbered from
// the end: the last block holds the system area, followed by the FAT and the
// file information area. Remaining blocks hold save data.
const (
	SystemBlock    = PageBlocks - 1
	FATBlock       = SystemBlock - 1
	FATBlocks      = 1
	FileInfoBlock  = FATBlock - FATBlocks
	FileInfoBlocks = 1
	SaveBlocks     = PageBlocks - 1 - FATBlocks - FileInfoBlocks
)
