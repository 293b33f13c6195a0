package controller

import (
	"strings"
)

// ButtonMask holds the Dreamcast buttons, active high. Bit positions match
// the controller condition on the bus.
type ButtonMask uint16

const (
	ButtonC ButtonMask = 1 << iota
	ButtonB
	ButtonA
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonZ
	ButtonY
	ButtonX
	ButtonD

	ButtonsAll ButtonMask = 1<<12 - 1
)

var buttonNames = [...]string{
	"C",
	"B",
	"A",
	"Start",
	"↑",
	"↓",
	"←",
	"→",
	"Z",
	"Y",
	"X",
	"D",
}

func (b ButtonMask) String() string {
	var sb strings.Builder
	for i, v := range buttonNames {
		if b&(1<<i) != 0 {
			if sb.Len() != 0 {
				sb.WriteString(" + ")
			}
			sb.WriteString(v)
		}
	}
	return sb.String()
}

// ParseButton returns the button with the given name, accepting the arrow
// glyphs as well as "up", "down", "left" and "right".
func ParseButton(name string) (ButtonMask, bool) {
	switch strings.ToLower(name) {
	case "up":
		return ButtonUp, true
	case "down":
		return ButtonDown, true
	case "left":
		return ButtonLeft, true
	case "right":
		return ButtonRight, true
	}
	for i, v := range buttonNames {
		if strings.EqualFold(v, name) {
			return 1 << i, true
		}
	}
	return 0, false
}

// AxisCenter is the resting position of the analog stick.
const AxisCenter = 128

// State is a snapshot of a controller as reported to the console.
type State struct {
	Buttons  ButtonMask
	LTrigger uint8
	RTrigger uint8
	StickX   uint8
	StickY   uint8
}

// Neutral is the state of an untouched controller.
var Neutral = State{StickX: AxisCenter, StickY: AxisCenter}

// Source produces controller state snapshots.
type Source interface {
	Name() string
	Connected() bool
	State() State
}
