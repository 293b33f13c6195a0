package maple

import (
	"fmt"
	"strings"
)

type Command int8

// Commands sent by the console.
const (
	CmdDeviceInfo         Command = 1
	CmdExtendedDeviceInfo Command = 2
	CmdReset              Command = 3
	CmdShutdown           Command = 4
	CmdGetCondition       Command = 9
	CmdGetMediaInfo       Command = 10
	CmdBlockRead          Command = 11
	CmdBlockWrite         Command = 12
	CmdBlockCompleteWrite Command = 13
	CmdSetCondition       Command = 14
)

// Responses sent by peripherals.
const (
	CmdFileError            Command = -5
	CmdRequestResend        Command = -4
	CmdUnknownCommand       Command = -3
	CmdFunctionNotSupported Command = -2
	CmdNoResponse           Command = -1

	CmdDeviceStatus         Command = 5
	CmdExtendedDeviceStatus Command = 6
	CmdAck                  Command = 7
	CmdDataTransfer         Command = 8
)

var commandNames = map[Command]string{
	CmdDeviceInfo:           "DeviceInfo",
	CmdExtendedDeviceInfo:   "ExtendedDeviceInfo",
	CmdReset:                "Reset",
	CmdShutdown:             "Shutdown",
	CmdGetCondition:         "GetCondition",
	CmdGetMediaInfo:         "GetMediaInfo",
	CmdBlockRead:            "BlockRead",
	CmdBlockWrite:           "BlockWrite",
	CmdBlockCompleteWrite:   "BlockCompleteWrite",
	CmdSetCondition:         "SetCondition",
	CmdFileError:            "FileError",
	CmdRequestResend:        "RequestResend",
	CmdUnknownCommand:       "UnknownCommand",
	CmdFunctionNotSupported: "FunctionNotSupported",
	CmdNoResponse:           "NoResponse",
	CmdDeviceStatus:         "DeviceStatus",
	CmdExtendedDeviceStatus: "ExtendedDeviceStatus",
	CmdAck:                  "Ack",
	CmdDataTransfer:         "DataTransfer",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Command(%d)", int8(c))
}

// Address identifies a device on the bus. The upper two bits select the port,
// bit 5 addresses the main peripheral and bits 0-4 its sub-peripherals. The
// console itself has the device bits cleared.
type Address uint8

const (
	AddrMain     Address = 0x20
	AddrSubMask  Address = 0x1f
	AddrPortMask Address = 0xc0
)

func NewAddress(port uint8, dev Address) Address {
	return Address(port&3)<<6 | dev&^AddrPortMask
}

func (a Address) Port() uint8 {
	return uint8(a >> 6)
}

// Device returns the address without the port bits.
func (a Address) Device() Address {
	return a &^ AddrPortMask
}

func (a Address) Console() bool {
	return a.Device() == 0
}

func (a Address) Main() bool {
	return a&AddrMain != 0
}

func (a Address) String() string {
	port := "ABCD"[a.Port()]
	switch {
	case a.Console():
		return fmt.Sprintf("%c/console", port)
	case a.Main():
		return fmt.Sprintf("%c/main", port)
	}
	return fmt.Sprintf("%c/sub%02x", port, uint8(a.Device()))
}

// Function is a bitmask of peripheral capabilities.
type Function uint32

const (
	FuncController Function = 0x001
	FuncStorage    Function = 0x002
	FuncLCD        Function = 0x004
	FuncTimer      Function = 0x008
	FuncAudioInput Function = 0x010
	FuncARGun      Function = 0x020
	FuncKeyboard   Function = 0x040
	FuncGun        Function = 0x080
	FuncVibration  Function = 0x100
	FuncMouse      Function = 0x200
)

var functionNames = [...]string{
	"Controller",
	"Storage",
	"LCD",
	"Timer",
	"AudioInput",
	"ARGun",
	"Keyboard",
	"Gun",
	"Vibration",
	"Mouse",
}

func (f Function) String() string {
	var sb strings.Builder
	for i, v := range functionNames {
		if f&(1<<i) != 0 {
			if sb.Len() != 0 {
				sb.WriteString(" + ")
			}
			sb.WriteString(v)
		}
	}
	if rest := f &^ (1<<len(functionNames) - 1); rest != 0 || f == 0 {
		if sb.Len() != 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%#x", uint32(rest))
	}
	return sb.String()
}

// Single returns true if exactly one function bit is set.
func (f Function) Single() bool {
	return f != 0 && f&(f-1) == 0
}
