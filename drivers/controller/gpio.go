package controller

// Pins reads digital inputs. Buttons pull their pin low when pressed.
type Pins interface {
	Get(pin int) bool
}

// ADC reads 12-bit analog inputs.
type ADC interface {
	Read(channel int) uint16
}

// ButtonInfo maps an input pin to a Dreamcast button.
type ButtonInfo struct {
	Pin    int
	Button ButtonMask
}

// Pin tables of the supported controller models.
var (
	// HKT7700 is the standard controller.
	HKT7700 = []ButtonInfo{
		{0, ButtonA},
		{1, ButtonB},
		{4, ButtonX},
		{5, ButtonY},
		{6, ButtonUp},
		{7, ButtonDown},
		{8, ButtonLeft},
		{9, ButtonRight},
		{10, ButtonStart},
	}

	// HKT7300 is the arcade stick, which adds C and Z.
	HKT7300 = append(HKT7700[:len(HKT7700):len(HKT7700)],
		ButtonInfo{16, ButtonC},
		ButtonInfo{17, ButtonZ},
	)
)

// ADC channels of the analog inputs.
const (
	ChannelX = iota
	ChannelY
	ChannelL
	ChannelR
)

// Calibration holds all analog settings of a GPIO controller.
type Calibration struct {
	X, Y   Axis
	L, R   Trigger
	SwapXY bool
	SwapLR bool
}

var DefaultCalibration = Calibration{
	X: DefaultAxis,
	Y: DefaultAxis,
	L: DefaultTrigger,
	R: DefaultTrigger,
}

// GPIO reads buttons from pins and stick and triggers from the ADC. It is
// always connected.
type GPIO struct {
	Pins        Pins
	ADC         ADC
	Buttons     []ButtonInfo
	Calibration Calibration
}

func NewGPIO(pins Pins, adc ADC, buttons []ButtonInfo) *GPIO {
	return &GPIO{
		Pins:        pins,
		ADC:         adc,
		Buttons:     buttons,
		Calibration: DefaultCalibration,
	}
}

func (g *GPIO) Name() string { return "gpio" }

func (g *GPIO) Connected() bool { return true }

func (g *GPIO) State() (s State) {
	for _, b := range g.Buttons {
		if !g.Pins.Get(b.Pin) {
			s.Buttons |= b.Button
		}
	}

	cal := &g.Calibration
	if g.ADC == nil {
		s.StickX, s.StickY = AxisCenter, AxisCenter
		return
	}
	read := func(ch int) uint8 { return uint8(g.ADC.Read(ch) >> 4) }

	xch, ych := ChannelX, ChannelY
	if cal.SwapXY {
		xch, ych = ych, xch
	}
	lch, rch := ChannelL, ChannelR
	if cal.SwapLR {
		lch, rch = rch, lch
	}

	s.StickX = cal.X.Map(read(xch))
	s.StickY = cal.Y.Map(read(ych))
	s.LTrigger = cal.L.Map(read(lch))
	s.RTrigger = cal.R.Map(read(rch))
	return
}
