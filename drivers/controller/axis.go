package controller

import (
	"golang.org/x/exp/constraints"
)

func clamp[T constraints.Integer](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// scale maps v linearly from [inLo, inHi] to [outLo, outHi], clamping to the
// output range.
func scale[T constraints.Integer](v, inLo, inHi, outLo, outHi T) T {
	if inHi == inLo {
		return outLo
	}
	r := int64(outLo) + (int64(v)-int64(inLo))*(int64(outHi)-int64(outLo))/(int64(inHi)-int64(inLo))
	lo, hi := int64(min(outLo, outHi)), int64(max(outLo, outHi))
	return T(clamp(r, lo, hi))
}

// Axis holds the calibration of an analog stick axis. Raw values are 8 bit.
type Axis struct {
	Min, Center, Max uint8

	// Deflections up to Deadzone report the center position, everything above
	// starts at AntiDeadzone.
	Deadzone     uint8
	AntiDeadzone uint8
	Invert       bool
}

// DefaultAxis is an uncalibrated stick axis.
var DefaultAxis = Axis{Min: 0x00, Center: 0x80, Max: 0xff}

// Map returns the calibrated axis position, 0-255 with 128 as center.
func (a Axis) Map(raw uint8) uint8 {
	var d int // deflection -128..127
	switch {
	case raw > a.Center:
		d = scale(int(raw), int(a.Center), int(max(a.Max, a.Center)), 0, 127)
	case raw < a.Center:
		d = -scale(int(raw), int(a.Center), int(min(a.Min, a.Center)), 0, 128)
	}

	mag := d
	if mag < 0 {
		mag = -mag
	}
	if mag <= int(a.Deadzone) {
		return AxisCenter
	}
	limit := 127
	if d < 0 {
		limit = 128
	}
	mag = scale(mag, int(a.Deadzone), limit, int(min(int(a.AntiDeadzone), limit)), limit)
	if d < 0 {
		d = -mag
	} else {
		d = mag
	}

	if a.Invert {
		d = -d
	}
	return uint8(clamp(AxisCenter+d, 0, 255))
}

// Trigger holds the calibration of an analog trigger. Raw values are 8 bit.
type Trigger struct {
	Min, Max     uint8
	Deadzone     uint8
	AntiDeadzone uint8
	Invert       bool

	// Digital triggers report either fully released or fully pressed.
	Digital bool
}

var DefaultTrigger = Trigger{Min: 0x00, Max: 0xff}

// Map returns the calibrated trigger position, 0 (released) to 255.
func (t Trigger) Map(raw uint8) uint8 {
	v := scale(int(raw), int(t.Min), int(t.Max), 0, 255)
	if t.Invert {
		v = 255 - v
	}
	if v <= int(t.Deadzone) {
		return 0
	}
	if t.Digital {
		if v >= 0x80 {
			return 0xff
		}
		return 0
	}
	return uint8(scale(v, int(t.Deadzone), 255, int(t.AntiDeadzone), 255))
}
