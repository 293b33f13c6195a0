package vmu

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type memStore struct {
	pages   map[int]Page
	mounted []int
	commits int
	touches int
	fail    error
}

func newMemStore() *memStore {
	return &memStore{pages: map[int]Page{}}
}

func (s *memStore) Mount(n int, p *Page) error {
	if s.fail != nil {
		return s.fail
	}
	*p = s.pages[n]
	s.mounted = append(s.mounted, n)
	return nil
}

func (s *memStore) Commit(n int, p *Page) error {
	if s.fail != nil {
		return s.fail
	}
	s.pages[n] = *p
	s.commits++
	return nil
}

func (s *memStore) Touch() { s.touches++ }

func block(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, BlockSize)
}

func TestWrapPage(t *testing.T) {
	tests := map[string]struct{ in, want int }{
		"first":    {1, 1},
		"last":     {8, 8},
		"next":     {9, 1},
		"prev":     {0, 8},
		"far":      {17, 1},
		"negative": {-1, 7},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := WrapPage(tc.in); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestReadWriteBlock(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := range PageBlocks {
		if err := m.WriteBlock(i, block(byte(0x10+i))); err != nil {
			t.Fatalf("write block %d: %v", i, err)
		}
	}
	for i := range PageBlocks {
		got := make([]byte, BlockSize)
		if err := m.ReadBlock(i, got); err != nil {
			t.Fatalf("read block %d: %v", i, err)
		}
		if !bytes.Equal(got, block(byte(0x10+i))) {
			t.Fatalf("block %d mismatch", i)
		}
	}
	if store.touches != PageBlocks {
		t.Fatalf("expected %d touches, got %d", PageBlocks, store.touches)
	}
	if !m.Dirty() {
		t.Fatal("page not dirty")
	}
}

func TestBlockOutOfRange(t *testing.T) {
	store := newMemStore()
	m, _ := NewManager(store, 1)
	m.WriteBlock(0, block(0xaa))
	before, _ := m.Snapshot()

	for _, i := range []int{-1, 4, 5, 1 << 16} {
		err := m.WriteBlock(i, block(0x55))
		if !errors.Is(err, ErrBlockOutOfRange) {
			t.Fatalf("write %d: expected %v, got %v", i, ErrBlockOutOfRange, err)
		}
		err = m.ReadBlock(i, make([]byte, BlockSize))
		if !errors.Is(err, ErrBlockOutOfRange) {
			t.Fatalf("read %d: expected %v, got %v", i, ErrBlockOutOfRange, err)
		}
	}
	if after, _ := m.Snapshot(); after != before {
		t.Fatal("page modified")
	}
	if store.touches != 1 {
		t.Fatalf("rejected writes must not touch, got %d", store.touches)
	}
}

func TestBlockLength(t *testing.T) {
	m, _ := NewManager(newMemStore(), 1)
	if err := m.WriteBlock(0, make([]byte, 10)); !errors.Is(err, ErrBlockLength) {
		t.Fatalf("expected %v, got %v", ErrBlockLength, err)
	}
	if err := m.ReadBlock(0, make([]byte, 10)); !errors.Is(err, ErrBlockLength) {
		t.Fatalf("expected %v, got %v", ErrBlockLength, err)
	}
}

func TestWritePhase(t *testing.T) {
	m, _ := NewManager(newMemStore(), 1)
	for phase := range WritePhases {
		if err := m.WritePhase(2, phase, bytes.Repeat([]byte{byte(phase + 1)}, PhaseSize)); err != nil {
			t.Fatal(err)
		}
	}
	got := make([]byte, BlockSize)
	m.ReadBlock(2, got)
	for phase := range WritePhases {
		if got[phase*PhaseSize] != byte(phase+1) || got[(phase+1)*PhaseSize-1] != byte(phase+1) {
			t.Fatalf("phase %d not written", phase)
		}
	}

	tests := map[string]struct {
		block, phase, len int
		err               error
	}{
		"phase":  {0, 4, PhaseSize, ErrPhaseOutOfRange},
		"block":  {4, 0, PhaseSize, ErrBlockOutOfRange},
		"length": {0, 0, BlockSize, ErrBlockLength},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := m.WritePhase(tc.block, tc.phase, make([]byte, tc.len))
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestSwitchPage(t *testing.T) {
	store := newMemStore()
	m, _ := NewManager(store, 8)

	m.WriteBlock(3, block(0x88))
	if err := m.SwitchPage(m.ActivePage() + 1); err != nil {
		t.Fatal(err)
	}
	if m.ActivePage() != 1 {
		t.Fatalf("expected page 1, got %d", m.ActivePage())
	}
	if store.commits != 1 {
		t.Fatalf("expected dirty page to be committed, got %d commits", store.commits)
	}
	if m.Dirty() {
		t.Fatal("freshly mounted page is dirty")
	}

	if err := m.SwitchPage(m.ActivePage() - 1); err != nil {
		t.Fatal(err)
	}
	if m.ActivePage() != 8 {
		t.Fatalf("expected page 8, got %d", m.ActivePage())
	}
	got := make([]byte, BlockSize)
	m.ReadBlock(3, got)
	if !bytes.Equal(got, block(0x88)) {
		t.Fatal("page 8 content lost")
	}
	if store.commits != 1 {
		t.Fatalf("clean page committed, got %d commits", store.commits)
	}
}

func TestSwitchSamePage(t *testing.T) {
	store := newMemStore()
	m, _ := NewManager(store, 3)
	m.WriteBlock(0, block(1))
	if err := m.SwitchPage(3); err != nil {
		t.Fatal(err)
	}
	if store.commits != 0 || len(store.mounted) != 1 {
		t.Fatalf("switch to active page must be a no-op: %d commits, %v mounts", store.commits, store.mounted)
	}
	if !m.Dirty() {
		t.Fatal("pending modification lost")
	}
}

func TestSwitchPageCommitFails(t *testing.T) {
	store := newMemStore()
	m, _ := NewManager(store, 2)
	m.WriteBlock(1, block(0x22))
	store.fail = io.ErrUnexpectedEOF

	if err := m.SwitchPage(5); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected %v, got %v", io.ErrUnexpectedEOF, err)
	}
	if m.ActivePage() != 2 || !m.Dirty() {
		t.Fatal("failed switch must keep the active page")
	}
	got := make([]byte, BlockSize)
	m.ReadBlock(1, got)
	if !bytes.Equal(got, block(0x22)) {
		t.Fatal("content lost")
	}
}

func TestReplace(t *testing.T) {
	store := newMemStore()
	m, _ := NewManager(store, 1)
	var p Page
	p[PageSize-1] = 0x77
	m.Replace(&p)
	snap, n := m.Snapshot()
	if n != 1 || snap != p || !m.Dirty() {
		t.Fatal("page not replaced")
	}
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}
	if store.pages[1] != p || m.Dirty() {
		t.Fatal("page not committed")
	}
}
