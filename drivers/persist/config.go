package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Firmware versions stored in Config.Version.
const (
	Version1_0  = 0x00
	Version1_1  = 0x01
	Version1_2  = 0x02
	Version1_3  = 0x03
	Version1_3b = 0x04
	Version1_4  = 0x05
	Version1_4b = 0x06
	Version1_4c = 0x07
	Version1_4d = 0x08
	Version1_4e = 0x09
	Version1_5  = 0x0a
	Version1_6  = 0x0b
	Version1_7  = 0x0c

	CurrentVersion = Version1_7
)

// ConfigSize is the space reserved for the config at the start of a slot.
const ConfigSize = 64

// Config holds all settings that survive a power cycle. It is stored
// little-endian, in field order.
type Config struct {
	// Stick and trigger calibration, raw 8-bit ADC values.
	XCenter, XMin, XMax uint8
	YCenter, YMin, YMax uint8
	LMin, LMax          uint8
	RMin, RMax          uint8

	InvertX, InvertY bool
	InvertL, InvertR bool

	// CurrentPage is the mounted memory card page. It is maintained by the
	// Coordinator.
	CurrentPage uint8

	RumbleEnable bool
	VMUEnable    bool
	OLEDFlip     bool
	SwapXY       bool
	SwapLR       bool
	OLEDType     uint8
	AnalogTrig   bool

	XDeadzone, XAntiDeadzone uint8
	YDeadzone, YAntiDeadzone uint8
	LDeadzone, LAntiDeadzone uint8
	RDeadzone, RAntiDeadzone uint8

	AutoResetEnable bool
	AutoResetTimer  uint8 // units of 2s

	Version uint8

	// Since Version1_7
	USBStickDeadzone   uint16
	USBTriggerDeadzone uint8
}

// DefaultConfig returns the settings of a freshly flashed device.
func DefaultConfig() Config {
	return Config{
		XCenter: 0x80, XMin: 0x00, XMax: 0xff,
		YCenter: 0x80, YMin: 0x00, YMax: 0xff,
		LMin: 0x00, LMax: 0xff,
		RMin: 0x00, RMax: 0xff,

		CurrentPage:  1,
		RumbleEnable: true,
		VMUEnable:    true,
		AnalogTrig:   true,

		XDeadzone: 0x0f, XAntiDeadzone: 0x04,
		YDeadzone: 0x0f, YAntiDeadzone: 0x04,
		LDeadzone: 0x0f, LAntiDeadzone: 0x00,
		RDeadzone: 0x0f, RAntiDeadzone: 0x00,

		AutoResetTimer: 0x5a,

		Version: CurrentVersion,

		USBStickDeadzone:   8000,
		USBTriggerDeadzone: 30,
	}
}

// upgrade fills in settings introduced after the version the config was
// stored with.
func (c *Config) upgrade() {
	if c.Version < Version1_7 {
		def := DefaultConfig()
		c.USBStickDeadzone = def.USBStickDeadzone
		c.USBTriggerDeadzone = def.USBTriggerDeadzone
	}
	c.Version = CurrentVersion
}

func (c *Config) marshal(dst []byte) error {
	buf := bytes.NewBuffer(dst[:0:len(dst)])
	if err := binary.Write(buf, binary.LittleEndian, c); err != nil {
		return err
	}
	clear(dst[buf.Len():])
	return nil
}

func (c *Config) unmarshal(src []byte) error {
	return binary.Read(bytes.NewReader(src), binary.LittleEndian, c)
}

func init() {
	if n := binary.Size(Config{}); n > ConfigSize {
		panic(fmt.Sprintf("config exceeds reserved space: %d bytes", n))
	}
}
