package persist

import (
	"errors"
	"fmt"

	"github.com/clktmr/maplepad/drivers/vmu"
)

// Page p is backed up to the card blocks starting at BackupBlock(p).
const BackupBase = 100

var (
	ErrBackupUnavailable = errors.New("backup card unavailable")
	ErrBackupTransfer    = errors.New("backup transfer failed")
)

// BackupBlock returns the first card block of page p.
func BackupBlock(p int) uint32 {
	return BackupBase + uint32(p)*vmu.PageBlocks
}

// BackupAvailable returns true if a backup card is inserted.
func (c *Coordinator) BackupAvailable() bool {
	return c.card != nil && c.card.Available()
}

func (c *Coordinator) checkBackup(p int) error {
	if p < vmu.FirstPage || p > vmu.LastPage {
		return fmt.Errorf("%w: %d", ErrInvalidPage, p)
	}
	if !c.BackupAvailable() {
		return ErrBackupUnavailable
	}
	return nil
}

// page returns the current content of page p, blank if it was never written.
func (c *Coordinator) page(p int) (*vmu.Page, error) {
	if page, n := c.vmu.Snapshot(); n == p {
		return &page, nil
	}
	if c.flash == nil {
		return &vmu.Page{}, nil
	}
	s, err := ReadSlot(c.flash, p)
	if errors.Is(err, ErrCorruptSlot) {
		return &vmu.Page{}, nil
	} else if err != nil {
		return nil, err
	}
	return &s.Page, nil
}

// SaveToBackup copies page p to the card. The blocks are written in order,
// so a failed transfer leaves a partial backup behind.
func (c *Coordinator) SaveToBackup(p int) error {
	if err := c.checkBackup(p); err != nil {
		return err
	}
	page, err := c.page(p)
	if err != nil {
		return err
	}
	base := BackupBlock(p)
	for i := range vmu.PageBlocks {
		b, _ := page.Block(i)
		if err := c.card.WriteBlock(base+uint32(i), b); err != nil {
			c.Log.Printf("persist: backup page %d: block %d: %v", p, base+uint32(i), err)
			return fmt.Errorf("%w: write block %d: %w", ErrBackupTransfer, base+uint32(i), err)
		}
	}
	c.Log.Printf("persist: saved page %d to blocks %d-%d", p, base, base+vmu.PageBlocks-1)
	return nil
}

// LoadFromBackup restores page p from the card. Nothing is modified unless
// all blocks were read. Restoring the active page commits it immediately.
func (c *Coordinator) LoadFromBackup(p int) error {
	if err := c.checkBackup(p); err != nil {
		return err
	}
	var page vmu.Page
	base := BackupBlock(p)
	for i := range vmu.PageBlocks {
		b, _ := page.Block(i)
		if err := c.card.ReadBlock(base+uint32(i), b); err != nil {
			c.Log.Printf("persist: restore page %d: block %d: %v", p, base+uint32(i), err)
			return fmt.Errorf("%w: read block %d: %w", ErrBackupTransfer, base+uint32(i), err)
		}
	}

	if c.vmu.ActivePage() == p {
		c.vmu.Replace(&page)
		if err := c.ForceFlush(); err != nil {
			return err
		}
	} else if err := c.write(p, &page); err != nil {
		return err
	}
	c.Log.Printf("persist: restored page %d from blocks %d-%d", p, base, base+vmu.PageBlocks-1)
	return nil
}
