package controller

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
)

var ErrReportLength = errors.New("invalid hid report length")

// Xbox 360 controller identifiers.
const (
	VendorMicrosoft   = 0x045e
	ProductX360       = 0x028e
	ProductX360Wlss   = 0x0719
	ProductX360Chatpd = 0x0291
)

// X360Buttons is the button field of an Xbox 360 input report.
type X360Buttons uint16

const (
	X360Up X360Buttons = 1 << iota
	X360Down
	X360Left
	X360Right
	X360Start
	X360Back
	X360LStick
	X360RStick
	X360LB
	X360RB
	X360Guide
	_
	X360A
	X360B
	X360X
	X360Y
)

// X360ReportLen is the length of an Xbox 360 input report.
const X360ReportLen = 20

type X360Report struct {
	Buttons  X360Buttons
	LTrigger uint8
	RTrigger uint8
	LX, LY   int16
	RX, RY   int16
}

func ParseX360Report(b []byte) (r X360Report, err error) {
	if len(b) < X360ReportLen {
		return r, fmt.Errorf("%w: %d", ErrReportLength, len(b))
	}
	r.Buttons = X360Buttons(binary.LittleEndian.Uint16(b[2:]))
	r.LTrigger = b[4]
	r.RTrigger = b[5]
	r.LX = int16(binary.LittleEndian.Uint16(b[6:]))
	r.LY = int16(binary.LittleEndian.Uint16(b[8:]))
	r.RX = int16(binary.LittleEndian.Uint16(b[10:]))
	r.RY = int16(binary.LittleEndian.Uint16(b[12:]))
	return
}

// Remap assigns a pad button to a Dreamcast button.
type Remap struct {
	From X360Buttons
	To   ButtonMask
}

// DefaultRemap maps the face buttons by label and the bumpers to the Z and C
// buttons of the arcade layout.
var DefaultRemap = []Remap{
	{X360A, ButtonA},
	{X360B, ButtonB},
	{X360X, ButtonX},
	{X360Y, ButtonY},
	{X360Start, ButtonStart},
	{X360Up, ButtonUp},
	{X360Down, ButtonDown},
	{X360Left, ButtonLeft},
	{X360Right, ButtonRight},
	{X360LB, ButtonZ},
	{X360RB, ButtonC},
}

const (
	DefaultStickDeadzone   = 8000
	DefaultTriggerDeadzone = 30
)

// USB is a gamepad attached to the USB host port. The USB stack delivers
// reports from its own context, the main loop pulls the latest state.
type USB struct {
	StickDeadzone   uint16 // radial, out of 32767
	TriggerDeadzone uint8
	Remap           []Remap

	mu        sync.Mutex
	connected bool
	ready     bool
	report    X360Report
}

func NewUSB() *USB {
	return &USB{
		StickDeadzone:   DefaultStickDeadzone,
		TriggerDeadzone: DefaultTriggerDeadzone,
		Remap:           DefaultRemap,
	}
}

func (u *USB) Name() string { return "usb" }

// Mount marks the pad as attached. It becomes ready with the first valid
// report.
func (u *USB) Mount() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connected = true
	u.ready = false
}

func (u *USB) Unmount() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connected, u.ready = false, false
	u.report = X360Report{}
}

// Deliver stores a raw input report. Short reports are rejected and leave the
// last state untouched.
func (u *USB) Deliver(b []byte) error {
	r, err := ParseX360Report(b)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.connected {
		return nil
	}
	u.report = r
	u.ready = true
	return nil
}

func (u *USB) Connected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.connected && u.ready
}

func (u *USB) State() (s State) {
	u.mu.Lock()
	r := u.report
	u.mu.Unlock()

	for _, m := range u.Remap {
		if r.Buttons&m.From != 0 {
			s.Buttons |= m.To
		}
	}
	s.LTrigger = u.trigger(r.LTrigger)
	s.RTrigger = u.trigger(r.RTrigger)
	s.StickX, s.StickY = u.stick(r.LX, r.LY)
	return
}

func (u *USB) trigger(v uint8) uint8 {
	if v < u.TriggerDeadzone {
		return 0
	}
	return v
}

// stick converts signed pad axes to Dreamcast axes. Pad Y points up, the
// Dreamcast's down.
func (u *USB) stick(x, y int16) (uint8, uint8) {
	if math.Hypot(float64(x), float64(y)) < float64(u.StickDeadzone) {
		return AxisCenter, AxisCenter
	}
	conv := func(v int16) uint8 {
		return uint8(scale(int32(v), math.MinInt16, math.MaxInt16, 0, 255))
	}
	return conv(x), 255 - conv(y)
}
