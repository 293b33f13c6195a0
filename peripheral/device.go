// Package peripheral answers Maple bus requests on behalf of a Dreamcast
// controller with a memory card and a vibration pack. All three functions are
// hosted at the main peripheral address of one port.
package peripheral

import (
	"log"

	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/vmu"
	"github.com/clktmr/maplepad/serial/maple"
)

const (
	ProductName    = "Dreamcast Controller"
	ProductLicense = "Produced By or Under License From SEGA ENTERPRISES,LTD."
	FreeStatus     = "Version 1.010,1998/09/28,315-6211-AB   ,Analog Module : The 4th Edition.5/8  +DF"

	StandbyPower = 0x01ae // 43.0 mA
	MaxPower     = 0x01f4 // 50.0 mA

	AreaAll = -1
)

// Device is the emulated peripheral. It keeps no state between requests
// apart from the vibration settings, the memory card content is owned by the
// vmu.Manager.
type Device struct {
	Log *log.Logger

	controller *controllerFunc
	storage    *storageFunc
	vibration  *vibrationFunc

	// Enabled functions, ordered from the highest function bit down.
	functions []function
}

// New returns a Device with all functions enabled. A nil motor discards
// vibration requests.
func New(m *vmu.Manager, motor Motor) *Device {
	d := &Device{
		Log:        log.Default(),
		controller: &controllerFunc{},
		storage:    &storageFunc{vmu: m},
		vibration:  newVibrationFunc(motor),
	}
	d.Configure(true, true)
	return d
}

// Configure enables or disables the optional functions. A disabled memory
// card disappears from the bus, a disabled vibration pack is still reported
// but doesn't drive the motor.
func (d *Device) Configure(storage, rumble bool) {
	d.functions = d.functions[:0]
	d.functions = append(d.functions, d.vibration)
	if storage {
		d.functions = append(d.functions, d.storage)
	}
	d.functions = append(d.functions, d.controller)
	d.vibration.enabled = rumble
	if !rumble {
		d.vibration.stop()
	}
}

// Functions returns the combined code of all enabled functions.
func (d *Device) Functions() (f maple.Function) {
	for _, fn := range d.functions {
		f |= fn.code()
	}
	return
}

func (d *Device) lookup(f maple.Function) function {
	for _, fn := range d.functions {
		if fn.code() == f {
			return fn
		}
	}
	return unsupported(f)
}

// DeviceInfo returns the payload of the DeviceStatus response.
func (d *Device) DeviceInfo() maple.DeviceInfo {
	info := maple.DeviceInfo{
		AreaCode:     AreaAll,
		StandbyPower: StandbyPower,
		MaxPower:     MaxPower,
	}
	for i, fn := range d.functions {
		info.Func |= fn.code()
		info.FuncData[i] = fn.data()
	}
	maple.PutString(info.ProductName[:], ProductName)
	maple.PutString(info.ProductLicense[:], ProductLicense)
	return info
}

// Handle computes the response to req. The controller condition is taken from
// st. Requests for other devices are ignored, in which case ok is false.
func (d *Device) Handle(req *maple.Frame, st controller.State) (resp maple.Frame, ok bool) {
	if !req.Destination.Main() {
		return resp, false
	}
	resp.Destination = req.Origin
	resp.Origin = req.Destination

	switch req.Command {
	case maple.CmdDeviceInfo:
		resp.Command = maple.CmdDeviceStatus
		resp.Payload = d.marshal(d.DeviceInfo())
	case maple.CmdExtendedDeviceInfo:
		info := maple.ExtendedDeviceInfo{DeviceInfo: d.DeviceInfo()}
		maple.PutString(info.FreeDeviceStatus[:], FreeStatus)
		resp.Command = maple.CmdExtendedDeviceStatus
		resp.Payload = d.marshal(info)
	case maple.CmdReset:
		d.vibration.stop()
		resp.Command = maple.CmdAck
	case maple.CmdShutdown:
		d.vibration.stop()
		resp.Command = maple.CmdAck
	case maple.CmdGetCondition, maple.CmdGetMediaInfo, maple.CmdBlockRead,
		maple.CmdBlockWrite, maple.CmdBlockCompleteWrite, maple.CmdSetCondition:
		f, ok := req.Function()
		if !ok {
			resp.Command = maple.CmdRequestResend
			break
		}
		resp.Command, resp.Payload = d.dispatch(d.lookup(f), req, st)
	default:
		resp.Command = maple.CmdFunctionNotSupported
	}
	return resp, true
}

func (d *Device) dispatch(fn function, req *maple.Frame, st controller.State) (maple.Command, []byte) {
	switch fn := fn.(type) {
	case *controllerFunc:
		return fn.handle(req, st)
	case *storageFunc:
		return fn.handle(req)
	case *vibrationFunc:
		return fn.handle(req)
	case unsupported:
		return maple.CmdFunctionNotSupported, nil
	}
	panic("unreachable")
}

func (d *Device) marshal(v any) []byte {
	b, err := maple.Marshal(v)
	if err != nil {
		panic(err) // fixed size payload types
	}
	return b
}

// Serve decodes a request frame and returns the encoded response. Malformed
// frames and frames for other devices get no response.
func (d *Device) Serve(raw []byte, st controller.State) ([]byte, bool) {
	req, err := maple.Decode(raw)
	if err != nil {
		d.Log.Println("maple: dropping frame:", err)
		return nil, false
	}
	resp, ok := d.Handle(&req, st)
	if !ok {
		return nil, false
	}
	b, err := resp.Encode()
	if err != nil {
		d.Log.Println("maple: encode response:", err)
		return nil, false
	}
	return b, true
}
