package console

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/display"
	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/persist"
	"github.com/clktmr/maplepad/drivers/sdcard"
	"github.com/clktmr/maplepad/drivers/vmu"
	"github.com/clktmr/maplepad/serial/maple"
)

type fakeBus struct {
	in, out [][]byte
}

func (b *fakeBus) ReceiveFrame() ([]byte, bool) {
	if len(b.in) == 0 {
		return nil, false
	}
	f := b.in[0]
	b.in = b.in[1:]
	return f, true
}

func (b *fakeBus) SendFrame(f []byte) error {
	b.out = append(b.out, bytes.Clone(f))
	return nil
}

type fakePins map[int]bool // pressed pins

func (p fakePins) Get(pin int) bool { return !p[pin] }

func (p fakePins) release() {
	for k := range p {
		delete(p, k)
	}
}

type testPad struct {
	*Pad
	bus    *fakeBus
	pins   fakePins
	usb    *controller.USB
	flash  *flash.Memory
	status *display.Text
	log    *bytes.Buffer
}

func newPad(t *testing.T, card sdcard.Card) *testPad {
	t.Helper()
	tp := &testPad{
		bus:   &fakeBus{},
		pins:  fakePins{},
		usb:   controller.NewUSB(),
		flash: flash.NewMemory(persist.RegionSize),
		log:   &bytes.Buffer{},
	}
	logger := log.New(tp.log, "", 0)
	store, err := persist.Open(tp.flash, card, logger)
	if err != nil {
		t.Fatal(err)
	}
	gpio := controller.NewGPIO(tp.pins, nil, controller.HKT7700)
	tp.Pad = New(tp.bus, store, nil, tp.usb, gpio)
	tp.Log = logger
	tp.Pins = tp.pins
	tp.status = display.NewText(&bytes.Buffer{}, display.SSD1306)
	tp.Status = tp.status
	tp.Start()
	return tp
}

func encode(t *testing.T, f maple.Frame) []byte {
	t.Helper()
	b, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func getCondition(t *testing.T) []byte {
	return encode(t, maple.Frame{
		Command:     maple.CmdGetCondition,
		Destination: maple.AddrMain,
		Payload:     maple.Words(uint32(maple.FuncController)),
	})
}

func buttons(t *testing.T, raw []byte) uint16 {
	t.Helper()
	f, err := maple.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if f.Command != maple.CmdDataTransfer {
		t.Fatalf("unexpected response %v", f)
	}
	return binary.BigEndian.Uint16(f.Payload[4:])
}

func TestBoot(t *testing.T) {
	p := newPad(t, nil)
	if !strings.Contains(p.status.String(), "SD: Failed") {
		t.Fatalf("boot message not shown before the first tick:\n%s", p.status)
	}
	p.Tick()
	if p.Store.VMU().ActivePage() != 1 {
		t.Fatal("first boot didn't mount page 1")
	}
	screen := p.status.String()
	for _, s := range []string{"Page 1", "SD: Failed", "Input: gpio"} {
		if !strings.Contains(screen, s) {
			t.Fatalf("%q missing on display:\n%s", s, screen)
		}
	}
}

func TestServe(t *testing.T) {
	p := newPad(t, nil)
	p.pins[0] = true // A
	p.bus.in = append(p.bus.in, getCondition(t), getCondition(t)[:5])
	p.Tick()
	if len(p.bus.out) != 1 {
		t.Fatalf("%d responses, want 1", len(p.bus.out))
	}
	if b := buttons(t, p.bus.out[0]); b != 0xfffb {
		t.Fatalf("buttons %#04x", b)
	}
	if !strings.Contains(p.log.String(), "maple: dropping frame") {
		t.Fatalf("malformed frame not logged:\n%s", p.log)
	}
}

func TestUSBMidSession(t *testing.T) {
	p := newPad(t, nil)
	p.pins[0] = true // A on the GPIO inputs

	p.bus.in = append(p.bus.in, getCondition(t))
	p.Tick()

	p.usb.Mount()
	report := make([]byte, controller.X360ReportLen)
	binary.LittleEndian.PutUint16(report[2:], uint16(controller.X360B))
	if err := p.usb.Deliver(report); err != nil {
		t.Fatal(err)
	}

	p.bus.in = append(p.bus.in, getCondition(t))
	p.Tick()

	if len(p.bus.out) != 2 {
		t.Fatalf("%d responses, want 2", len(p.bus.out))
	}
	if b := buttons(t, p.bus.out[0]); b != 0xfffb {
		t.Fatalf("gpio buttons %#04x", b)
	}
	if b := buttons(t, p.bus.out[1]); b != 0xfffd {
		t.Fatalf("usb buttons %#04x", b)
	}
	if !strings.Contains(p.log.String(), "controller: input source usb") {
		t.Fatalf("switch not logged:\n%s", p.log)
	}
	if !strings.Contains(p.status.String(), "Input: usb") {
		t.Fatalf("display not updated:\n%s", p.status)
	}

	p.usb.Unmount()
	p.Tick()
	if p.Input.Current().Name() != "gpio" {
		t.Fatal("no fallback to gpio")
	}
}

func TestPageCycling(t *testing.T) {
	p := newPad(t, nil)
	page := func() int { return p.Store.VMU().ActivePage() }
	steps := []struct {
		pins []int
		want int
	}{
		{[]int{10, 9}, 2}, // Start+Right
		{[]int{10, 9}, 2}, // held
		{nil, 2},
		{[]int{10, 8}, 1}, // Start+Left
		{nil, 1},
		{[]int{10, 8}, 8},
		{nil, 8},
		{[]int{PageButtonPin}, 1},
		{[]int{PageButtonPin}, 1},
		{nil, 1},
		{[]int{PageButtonPin}, 2},
		{nil, 2},
		{[]int{10, 4, 5}, 3}, // Start+X+Y
		{[]int{10, 4, 5}, 3},
	}
	for i, s := range steps {
		p.pins.release()
		for _, pin := range s.pins {
			p.pins[pin] = true
		}
		p.Tick()
		if page() != s.want {
			t.Fatalf("step %d: page %d, want %d", i, page(), s.want)
		}
	}
	if !strings.Contains(p.status.String(), "Page 3") {
		t.Fatalf("display not updated:\n%s", p.status)
	}
}

func TestPageRequests(t *testing.T) {
	p := newPad(t, nil)
	steps := []struct {
		req  Request
		want int
	}{
		{Request{Op: OpStep, Page: -1}, 8},
		{Request{Op: OpStep, Page: 1}, 1},
		{Request{Op: OpPage, Page: 0}, 8},
		{Request{Op: OpPage, Page: 9}, 1},
		{Request{Op: OpPage, Page: 4}, 4},
		{Request{Op: OpPage, Active: true}, 4},
	}
	done := make(chan error, 1)
	for i, s := range steps {
		s.req.Done = done
		p.Requests <- s.req
		p.Tick()
		if err := <-done; err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if n := p.Store.VMU().ActivePage(); n != s.want {
			t.Fatalf("step %d: page %d, want %d", i, n, s.want)
		}
	}
}

func TestPageRestore(t *testing.T) {
	p := newPad(t, nil)
	data := bytes.Repeat([]byte{0xa5}, vmu.BlockSize)
	write := maple.Frame{
		Command:     maple.CmdBlockWrite,
		Destination: maple.AddrMain,
		Payload:     append(maple.Words(uint32(maple.FuncStorage), 1), data...),
	}
	p.bus.in = append(p.bus.in, encode(t, write))
	p.Tick()

	done := make(chan error, 2)
	p.Requests <- Request{Op: OpPage, Page: 5, Done: done}
	p.Requests <- Request{Op: OpPage, Page: 1, Done: done}
	p.Tick()
	for range 2 {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
	b := make([]byte, vmu.BlockSize)
	p.Store.VMU().ReadBlock(1, b)
	if !bytes.Equal(b, data) {
		t.Fatal("page content lost by switching")
	}
}

func TestWriteDebounce(t *testing.T) {
	p := newPad(t, nil)
	base := p.flash.Programs()
	write := maple.Frame{
		Command:     maple.CmdBlockWrite,
		Destination: maple.AddrMain,
		Payload:     append(maple.Words(uint32(maple.FuncStorage), 0), make([]byte, vmu.BlockSize)...),
	}
	for range 5 {
		p.bus.in = append(p.bus.in, encode(t, write))
	}
	for range persist.FlushDelay - 1 {
		p.Tick()
	}
	if p.flash.Programs() != base {
		t.Fatal("committed during flush delay")
	}
	p.Tick()
	if p.flash.Programs() != base+1 {
		t.Fatalf("%d commits, want 1", p.flash.Programs()-base)
	}
}

func TestBackupUnavailable(t *testing.T) {
	p := newPad(t, nil)
	done := make(chan error, 1)
	p.Requests <- Request{Op: OpSave, Page: 3, Done: done}
	p.Tick()
	if err := <-done; !errors.Is(err, persist.ErrBackupUnavailable) {
		t.Fatalf("got %v, want %v", err, persist.ErrBackupUnavailable)
	}
	if !strings.Contains(p.status.String(), "No SD Card") {
		t.Fatalf("status:\n%s", p.status)
	}
}

func TestBackup(t *testing.T) {
	card, err := sdcard.Create(filepath.Join(t.TempDir(), "sd.img"), 256)
	if err != nil {
		t.Fatal(err)
	}
	defer card.Close()

	p := newPad(t, card)
	if !strings.Contains(p.status.String(), "SD: Ready") {
		t.Fatalf("status:\n%s", p.status)
	}
	data := bytes.Repeat([]byte{0x3c}, vmu.BlockSize)
	p.Store.VMU().WriteBlock(2, data)

	done := make(chan error, 1)
	p.Requests <- Request{Op: OpSave, Active: true, Done: done}
	p.Tick()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p.status.String(), "Page Saved!") {
		t.Fatalf("status:\n%s", p.status)
	}
	b := make([]byte, sdcard.BlockSize)
	if err := card.ReadBlock(persist.BackupBlock(1)+2, b); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, data) {
		t.Fatal("block not backed up")
	}

	p.Store.VMU().WriteBlock(2, make([]byte, vmu.BlockSize))
	p.Requests <- Request{Op: OpLoad, Active: true, Done: done}
	p.Tick()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	p.Store.VMU().ReadBlock(2, b)
	if !bytes.Equal(b, data) {
		t.Fatal("page not restored")
	}

	for range MessageTicks {
		p.Tick()
	}
	if strings.Contains(p.status.String(), "Page Loaded!") {
		t.Fatal("message not cleared")
	}
}

func TestApplyConfig(t *testing.T) {
	p := newPad(t, nil)
	cfg := p.Store.Config()
	cfg.VMUEnable = false
	cfg.InvertX = true
	cfg.AnalogTrig = false
	cfg.USBStickDeadzone = 100
	p.Store.SetConfig(cfg)
	p.ApplyConfig(&cfg)

	if p.Device.Functions()&maple.FuncStorage != 0 {
		t.Fatal("storage still enabled")
	}
	cal := p.GPIO.Calibration
	if !cal.X.Invert || !cal.L.Digital || !cal.R.Digital || cal.Y.Invert {
		t.Fatalf("calibration not applied: %+v", cal)
	}
	if p.USB.StickDeadzone != 100 {
		t.Fatal("usb deadzone not applied")
	}
}

func TestAutoReset(t *testing.T) {
	p := newPad(t, nil)
	var resets int
	p.Reset = func() { resets++ }
	cfg := p.Store.Config()
	cfg.AutoResetEnable = true
	cfg.AutoResetTimer = 1
	p.ApplyConfig(&cfg)

	for range 3 * AutoResetUnit {
		p.Tick()
	}
	if resets != 1 {
		t.Fatalf("%d resets, want 1", resets)
	}
	p.bus.in = append(p.bus.in, getCondition(t))
	p.Tick()
	for range AutoResetUnit {
		p.Tick()
	}
	if resets != 2 {
		t.Fatalf("%d resets, want 2", resets)
	}
}

func TestRun(t *testing.T) {
	p := newPad(t, nil)
	p.Store.VMU().WriteBlock(0, bytes.Repeat([]byte{1}, vmu.BlockSize))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Store.VMU().Dirty() {
		t.Fatal("pending write not committed")
	}
}
