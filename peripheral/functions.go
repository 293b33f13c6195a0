package peripheral

import (
	"errors"
	"sync"
	"time"

	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/vmu"
	"github.com/clktmr/maplepad/serial/maple"
)

// Capability words reported in the device info, one per function.
const (
	ControllerData = 0x000f06fe // all 12 buttons, both triggers, one stick
	StorageData    = 0x000f4100 // 1 partition, 512 byte blocks, 4 write phases, removable
	VibrationData  = 0x01010000 // one vibration source
)

// function is one capability hosted by the Device.
type function interface {
	code() maple.Function
	data() uint32
}

type unsupported maple.Function

func (f unsupported) code() maple.Function { return maple.Function(f) }
func (f unsupported) data() uint32         { return 0 }

func fileError(f maple.Function, bits uint32) (maple.Command, []byte) {
	return maple.CmdFileError, maple.Words(uint32(f), bits)
}

type controllerFunc struct{}

func (*controllerFunc) code() maple.Function { return maple.FuncController }
func (*controllerFunc) data() uint32         { return ControllerData }

// Condition returns the controller condition reported for st.
func Condition(st controller.State) maple.ControllerCondition {
	return maple.ControllerCondition{
		Func:     maple.FuncController,
		Buttons:  ^uint16(st.Buttons),
		RTrigger: st.RTrigger,
		LTrigger: st.LTrigger,
		StickX:   st.StickX,
		StickY:   st.StickY,
		Stick2X:  controller.AxisCenter,
		Stick2Y:  controller.AxisCenter,
	}
}

func (fn *controllerFunc) handle(req *maple.Frame, st controller.State) (maple.Command, []byte) {
	if req.Command != maple.CmdGetCondition {
		return maple.CmdFunctionNotSupported, nil
	}
	b, _ := maple.Marshal(Condition(st))
	return maple.CmdDataTransfer, b
}

// MemoryInfo describes the geometry of a single page. The system, FAT and
// directory blocks occupy the end of the page, followed downwards by one save
// block.
var MemoryInfo = maple.MemoryInfo{
	Func:           maple.FuncStorage,
	TotalSize:      vmu.PageBlocks - 1,
	SystemArea:     vmu.SystemBlock,
	FATArea:        vmu.FATBlock,
	FATBlocks:      vmu.FATBlocks,
	FileInfoArea:   vmu.FileInfoBlock,
	FileInfoBlocks: vmu.FileInfoBlocks,
	SaveArea:       vmu.FileInfoBlock - vmu.FileInfoBlocks,
	SaveBlocks:     vmu.SaveBlocks,
}

type storageFunc struct {
	vmu *vmu.Manager
}

func (*storageFunc) code() maple.Function { return maple.FuncStorage }
func (*storageFunc) data() uint32         { return StorageData }

func (fn *storageFunc) handle(req *maple.Frame) (maple.Command, []byte) {
	if req.Command == maple.CmdGetMediaInfo {
		b, _ := maple.Marshal(MemoryInfo)
		return maple.CmdDataTransfer, b
	}
	if req.Command == maple.CmdGetCondition || req.Command == maple.CmdSetCondition {
		return maple.CmdFunctionNotSupported, nil
	}

	w, ok := req.Word(1)
	if !ok {
		return maple.CmdRequestResend, nil
	}
	addr := maple.ParseBlockAddress(w)
	if addr.Partition != 0 {
		return fileError(maple.FuncStorage, maple.FileErrPartition)
	}
	block := int(addr.Block)

	var err error
	switch req.Command {
	case maple.CmdBlockRead:
		resp := make([]byte, 8+vmu.BlockSize)
		copy(resp, req.Payload[:8])
		if err = fn.vmu.ReadBlock(block, resp[8:]); err == nil {
			return maple.CmdDataTransfer, resp
		}
	case maple.CmdBlockWrite:
		data := req.Payload[8:]
		switch len(data) {
		case vmu.BlockSize:
			if addr.Phase != 0 {
				return fileError(maple.FuncStorage, maple.FileErrPhase)
			}
			err = fn.vmu.WriteBlock(block, data)
		case vmu.PhaseSize:
			err = fn.vmu.WritePhase(block, int(addr.Phase), data)
		default:
			return maple.CmdRequestResend, nil
		}
	case maple.CmdBlockCompleteWrite:
		if block >= vmu.PageBlocks {
			err = vmu.ErrBlockOutOfRange
		}
	default:
		return maple.CmdFunctionNotSupported, nil
	}

	switch {
	case err == nil:
		return maple.CmdAck, nil
	case errors.Is(err, vmu.ErrBlockOutOfRange):
		return fileError(maple.FuncStorage, maple.FileErrBlock)
	case errors.Is(err, vmu.ErrPhaseOutOfRange):
		return fileError(maple.FuncStorage, maple.FileErrPhase)
	}
	return fileError(maple.FuncStorage, maple.FileErrWrite)
}

// Motor drives the vibration motor. An intensity of 0 stops it, otherwise it
// stops by itself after d.
type Motor interface {
	Vibrate(intensity uint8, d time.Duration)
}

const (
	// AutoStopUnit is the resolution of the auto stop time.
	AutoStopUnit = 250 * time.Millisecond

	// DefaultAutoStop is the auto stop time after reset, in AutoStopUnit.
	DefaultAutoStop = 0x13

	maxIntensity = 7
)

type vibrationFunc struct {
	mu       sync.Mutex
	motor    Motor
	enabled  bool
	setting  uint32 // auto stop time in the lowest byte
	cond     maple.VibrationCondition
	vibrates bool
}

func newVibrationFunc(m Motor) *vibrationFunc {
	return &vibrationFunc{motor: m, setting: DefaultAutoStop}
}

func (*vibrationFunc) code() maple.Function { return maple.FuncVibration }
func (*vibrationFunc) data() uint32         { return VibrationData }

func (fn *vibrationFunc) autoStop() time.Duration {
	return time.Duration(fn.setting&0xff) * AutoStopUnit
}

func (fn *vibrationFunc) stop() {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.cond = maple.VibrationCondition{}
	fn.drive(0)
}

func (fn *vibrationFunc) drive(intensity uint8) {
	if !fn.enabled {
		intensity = 0
	}
	if fn.motor == nil || (intensity == 0 && !fn.vibrates) {
		return
	}
	fn.vibrates = intensity != 0
	fn.motor.Vibrate(intensity, fn.autoStop())
}

func (fn *vibrationFunc) handle(req *maple.Frame) (maple.Command, []byte) {
	fn.mu.Lock()
	defer fn.mu.Unlock()

	switch req.Command {
	case maple.CmdGetCondition:
		return maple.CmdDataTransfer, maple.Words(uint32(maple.FuncVibration), fn.cond.Word())
	case maple.CmdGetMediaInfo:
		return maple.CmdDataTransfer, maple.Words(uint32(maple.FuncVibration), VibrationData)
	case maple.CmdBlockRead:
		w, ok := req.Word(1)
		if !ok {
			return maple.CmdRequestResend, nil
		}
		return maple.CmdDataTransfer, maple.Words(uint32(maple.FuncVibration), w, fn.setting)
	case maple.CmdBlockWrite:
		w, ok := req.Word(2)
		if !ok {
			return maple.CmdRequestResend, nil
		}
		fn.setting = w
		return maple.CmdAck, nil
	case maple.CmdSetCondition:
		w, ok := req.Word(1)
		if !ok {
			return maple.CmdRequestResend, nil
		}
		fn.cond = maple.ParseVibrationCondition(w)
		fn.drive(Intensity(fn.cond))
		return maple.CmdAck, nil
	}
	return maple.CmdFunctionNotSupported, nil
}

// Intensity returns the motor intensity for a vibration condition, scaled
// from the protocol's 0-7 range to 0-255. Reserved bits are ignored.
func Intensity(c maple.VibrationCondition) uint8 {
	i := min(c.Intensity(), maxIntensity)
	return uint8(uint16(i) * 255 / maxIntensity)
}
