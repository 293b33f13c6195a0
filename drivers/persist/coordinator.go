// Package persist keeps the memory card pages and the configuration in flash
// and mirrors pages to an SD card on request.
//
// Writes from the console arrive in bursts of many small block writes. The
// Coordinator defers committing the active page until no write happened for
// FlushDelay ticks, so a burst costs a single flash program.
package persist

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/clktmr/maplepad/debug"
	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/sdcard"
	"github.com/clktmr/maplepad/drivers/vmu"
)

// FlushDelay is the default number of ticks without a write before the
// active page is committed.
const FlushDelay = 16

var (
	ErrFlashBounds = errors.New("flash region too small")
	ErrInvalidPage = errors.New("invalid page")
)

// Coordinator implements vmu.Store on top of a flash region. Except for
// Touch, its methods must be called from a single goroutine.
type Coordinator struct {
	Log        *log.Logger
	FlushDelay int32

	flash flash.Region // nil if persistence is disabled
	card  sdcard.Card
	vmu   *vmu.Manager

	cfg      Config
	cfgDirty bool
	gen      uint32
	pending  atomic.Int32
	commits  int
}

// Open restores the configuration and the active page from region. A nil
// card disables the backup functions.
//
// Both a blank region and a region too small for all pages result in the
// default configuration. In the latter case ErrFlashBounds is returned along
// with a usable Coordinator that keeps everything in RAM.
func Open(region flash.Region, card sdcard.Card, logger *log.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Coordinator{
		Log:        logger,
		FlushDelay: FlushDelay,
		card:       card,
		cfg:        DefaultConfig(),
	}

	var boundsErr error
	if size := region.Size(); size < RegionSize {
		boundsErr = fmt.Errorf("%w: %d bytes, need %d", ErrFlashBounds, size, RegionSize)
		c.Log.Println("persist:", boundsErr, "(not persisting)")
	} else {
		latest, n, err := Latest(region)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			c.Log.Println("persist: first boot, using defaults")
			c.cfgDirty = true
		} else {
			c.cfg = latest.Config
			c.gen = latest.Generation
			if c.cfg.Version != CurrentVersion {
				c.Log.Printf("persist: upgrading config from version %#02x", c.cfg.Version)
				c.cfg.upgrade()
				c.cfgDirty = true
			}
			c.Log.Printf("persist: config from page %d, generation %d", n, c.gen)
		}
		c.flash = region
	}

	page := int(c.cfg.CurrentPage)
	if page < vmu.FirstPage || page > vmu.LastPage {
		c.Log.Printf("persist: invalid current page %d", page)
		page = vmu.FirstPage
	}
	m, err := vmu.NewManager(c, page)
	c.vmu = m
	if err != nil {
		return nil, err
	}
	return c, boundsErr
}

// VMU returns the manager of the active page.
func (c *Coordinator) VMU() *vmu.Manager {
	return c.vmu
}

// Persistent returns false if changes are lost on power cycle.
func (c *Coordinator) Persistent() bool {
	return c.flash != nil
}

// Config returns the current settings.
func (c *Coordinator) Config() Config {
	return c.cfg
}

// SetConfig replaces the settings. They are committed together with the
// active page after the flush delay. CurrentPage and Version are ignored.
func (c *Coordinator) SetConfig(cfg Config) {
	cfg.CurrentPage = c.cfg.CurrentPage
	cfg.Version = CurrentVersion
	c.cfg = cfg
	c.cfgDirty = true
	c.Touch()
}

// Commits returns the number of slots written since Open.
func (c *Coordinator) Commits() int {
	return c.commits
}

// Mount implements vmu.Store. Blank slots mount as an all-zero page.
func (c *Coordinator) Mount(n int, p *vmu.Page) error {
	blank := false
	if c.flash == nil {
		*p = vmu.Page{}
	} else if s, err := ReadSlot(c.flash, n); errors.Is(err, ErrCorruptSlot) {
		c.Log.Printf("persist: page %d: %v, starting blank", n, err)
		*p = vmu.Page{}
		blank = true
	} else if err != nil {
		return err
	} else {
		*p = s.Page
	}

	prev := c.cfg.CurrentPage
	c.cfg.CurrentPage = uint8(n)
	if prev == c.cfg.CurrentPage && !blank && !c.cfgDirty {
		return nil
	}
	if err := c.Commit(n, p); err != nil {
		c.cfg.CurrentPage = prev
		return err
	}
	c.Log.Printf("persist: mounted page %d", n)
	return nil
}

// Commit implements vmu.Store. The slot is written with the current config
// and the next generation.
func (c *Coordinator) Commit(n int, p *vmu.Page) error {
	if err := c.write(n, p); err != nil {
		return err
	}
	c.pending.Store(0)
	return nil
}

// write stores page n without affecting the flush delay.
func (c *Coordinator) write(n int, p *vmu.Page) error {
	if c.flash == nil {
		c.cfgDirty = false
		return nil
	}
	debug.Assert(c.gen < 0xfffffffe, "persist: generation overflow")
	s := Slot{Config: c.cfg, Page: *p, Generation: c.gen + 1}
	if err := WriteSlot(c.flash, n, &s); err != nil {
		return fmt.Errorf("commit page %d: %w", n, err)
	}
	c.gen = s.Generation
	c.cfgDirty = false
	c.commits++
	return nil
}

// Touch implements vmu.Store. It restarts the flush delay and may be called
// from any goroutine.
func (c *Coordinator) Touch() {
	c.pending.Store(c.FlushDelay)
}

// Tick advances the flush delay by one tick and commits pending changes once
// it expires. A failed commit is retried after another delay.
func (c *Coordinator) Tick() error {
	left := c.pending.Load()
	if left <= 0 {
		return nil
	}
	if !c.pending.CompareAndSwap(left, left-1) || left > 1 {
		return nil
	}
	if err := c.ForceFlush(); err != nil {
		c.Log.Println("persist: flush:", err)
		c.Touch()
		return err
	}
	return nil
}

// ForceFlush commits pending changes without delay.
func (c *Coordinator) ForceFlush() error {
	if c.vmu.Dirty() {
		return c.vmu.Flush()
	}
	c.pending.Store(0)
	if !c.cfgDirty {
		return nil
	}
	p, n := c.vmu.Snapshot()
	return c.Commit(n, &p)
}

// SwitchPage commits the active page and mounts page n, which wraps around
// at both ends.
func (c *Coordinator) SwitchPage(n int) error {
	return c.vmu.SwitchPage(n)
}

// Close commits pending changes.
func (c *Coordinator) Close() error {
	return c.ForceFlush()
}
