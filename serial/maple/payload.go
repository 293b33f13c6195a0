package maple

import (
	"bytes"
	"encoding/binary"
	"errors"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var ErrShortPayload = errors.New("payload too short")

// Device info strings are fixed width, space padded Latin-1.
var latin1 = encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())

// PutString encodes s into dst, truncating or padding with spaces.
func PutString(dst []byte, s string) {
	enc, err := latin1.Bytes([]byte(s))
	if err != nil {
		enc = nil
	}
	n := copy(dst, enc)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

// String returns a fixed width field as string, without trailing padding.
func String(src []byte) string {
	return string(bytes.TrimRight(src, " \x00"))
}

// DeviceInfo is the payload of a DeviceStatus response.
type DeviceInfo struct {
	Func               Function
	FuncData           [3]uint32
	AreaCode           int8
	ConnectorDirection uint8
	ProductName        [30]byte
	ProductLicense     [60]byte
	StandbyPower       uint16 // 0.1 mA
	MaxPower           uint16 // 0.1 mA
}

// ExtendedDeviceInfo is the payload of an ExtendedDeviceStatus response.
type ExtendedDeviceInfo struct {
	DeviceInfo
	FreeDeviceStatus [80]byte
}

// MemoryInfo describes the geometry of a storage medium. Areas are given as
// block numbers, counts as number of blocks.
type MemoryInfo struct {
	Func           Function
	TotalSize      uint16 // last block number
	Partition      uint16
	SystemArea     uint16
	FATArea        uint16
	FATBlocks      uint16
	FileInfoArea   uint16
	FileInfoBlocks uint16
	VolumeIcon     uint8
	_              uint8
	SaveArea       uint16
	SaveBlocks     uint16
	_              uint32
	_              uint16
	_              uint16
}

// ControllerCondition is the payload of a controller GetCondition response.
// Buttons are active low.
type ControllerCondition struct {
	Func     Function
	Buttons  uint16
	RTrigger uint8
	LTrigger uint8
	StickX   uint8
	StickY   uint8
	Stick2X  uint8
	Stick2Y  uint8
}

// BlockAddress is the second word of all block commands.
type BlockAddress struct {
	Partition uint8
	Phase     uint8
	Block     uint16
}

func ParseBlockAddress(w uint32) BlockAddress {
	return BlockAddress{uint8(w >> 24), uint8(w >> 16), uint16(w)}
}

func (a BlockAddress) Word() uint32 {
	return uint32(a.Partition)<<24 | uint32(a.Phase)<<16 | uint32(a.Block)
}

// VibrationCondition is the condition word of a vibration SetCondition
// command.
type VibrationCondition struct {
	Control   uint8
	Power     uint8 // bits 4-6 forward, bits 0-2 reverse intensity
	Frequency uint8
	Increment uint8
}

func ParseVibrationCondition(w uint32) VibrationCondition {
	return VibrationCondition{uint8(w >> 24), uint8(w >> 16), uint8(w >> 8), uint8(w)}
}

func (c VibrationCondition) Word() uint32 {
	return uint32(c.Control)<<24 | uint32(c.Power)<<16 | uint32(c.Frequency)<<8 | uint32(c.Increment)
}

// Intensity returns the stronger of both directions, 0 (off) to 7.
func (c VibrationCondition) Intensity() uint8 {
	return max((c.Power>>4)&7, c.Power&7)
}

// Marshal encodes a fixed size payload structure big-endian.
func Marshal(v any) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, binary.Size(v)))
	err := binary.Write(buf, binary.BigEndian, v)
	if err != nil {
		return nil, err
	}
	if buf.Len()&3 != 0 {
		return nil, ErrPayloadLength
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a fixed size payload structure from the start of b.
func Unmarshal(b []byte, v any) error {
	if len(b) < binary.Size(v) {
		return ErrShortPayload
	}
	return binary.Read(bytes.NewReader(b), binary.BigEndian, v)
}

// Words encodes a list of words big-endian.
func Words(w ...uint32) []byte {
	b := make([]byte, 0, len(w)*4)
	for _, v := range w {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

// Error bits in the payload of a FileError response, following the function
// code.
const (
	FileErrPartition uint32 = 1 << iota
	FileErrPhase
	FileErrBlock
	FileErrWrite
	FileErrLength
	FileErrCRC
)
