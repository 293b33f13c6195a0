package vmu

import (
	"fmt"
	"sync"

	"github.com/clktmr/maplepad/debug"
)

// Store persists pages on behalf of the Manager.
type Store interface {
	// Mount loads page n into p and records it as the active page.
	Mount(n int, p *Page) error

	// Commit writes page n synchronously.
	Commit(n int, p *Page) error

	// Touch is called after every modification of the active page.
	Touch()
}

// Manager owns the active page. All access to the card image goes through
// its methods, which are serialized.
type Manager struct {
	mu     sync.Mutex
	store  Store
	active int
	dirty  bool
	page   Page
}

// NewManager mounts page n from store.
func NewManager(store Store, n int) (*Manager, error) {
	m := &Manager{store: store, active: WrapPage(n)}
	if err := store.Mount(m.active, &m.page); err != nil {
		return m, err
	}
	return m, nil
}

func (m *Manager) ActivePage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Dirty returns true if the active page has modifications not yet committed.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// SwitchPage commits the active page and mounts page n, which wraps around
// at both ends. If the commit fails the active page stays mounted.
func (m *Manager) SwitchPage(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n = WrapPage(n)
	debug.Assert(n >= FirstPage && n <= LastPage, "vmu: wrapped page out of range")
	if n == m.active {
		return nil
	}
	if err := m.flush(); err != nil {
		return err
	}

	var next Page
	if err := m.store.Mount(n, &next); err != nil {
		return err
	}
	m.page = next
	m.active = n
	return nil
}

// Flush commits the active page if it was modified.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flush()
}

func (m *Manager) flush() error {
	if !m.dirty {
		return nil
	}
	if err := m.store.Commit(m.active, &m.page); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// ReadBlock copies block i of the active page into dst, which must hold a
// full block.
func (m *Manager) ReadBlock(i int, dst []byte) error {
	if len(dst) < BlockSize {
		return fmt.Errorf("%w: %d", ErrBlockLength, len(dst))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.page.Block(i)
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// WriteBlock replaces block i of the active page with src.
func (m *Manager) WriteBlock(i int, src []byte) error {
	if len(src) != BlockSize {
		return fmt.Errorf("%w: %d", ErrBlockLength, len(src))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.page.Block(i)
	if err != nil {
		return err
	}
	copy(b, src)
	m.touch()
	return nil
}

// WritePhase replaces one of the WritePhases parts of block i.
func (m *Manager) WritePhase(i, phase int, src []byte) error {
	if phase < 0 || phase >= WritePhases {
		return fmt.Errorf("%w: %d", ErrPhaseOutOfRange, phase)
	}
	if len(src) != PhaseSize {
		return fmt.Errorf("%w: %d", ErrBlockLength, len(src))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.page.Block(i)
	if err != nil {
		return err
	}
	copy(b[phase*PhaseSize:], src)
	m.touch()
	return nil
}

// Snapshot returns a copy of the active page and its number.
func (m *Manager) Snapshot() (Page, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page, m.active
}

// Replace overwrites the whole active page, e.g. when restoring a backup.
func (m *Manager) Replace(p *Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = *p
	m.touch()
}

func (m *Manager) touch() {
	m.dirty = true
	m.store.Touch()
}
