package console

import (
	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/display"
	"github.com/clktmr/maplepad/drivers/persist"
)

// Calibration returns the GPIO calibration stored in cfg.
func Calibration(cfg *persist.Config) controller.Calibration {
	return controller.Calibration{
		X: controller.Axis{
			Min: cfg.XMin, Center: cfg.XCenter, Max: cfg.XMax,
			Deadzone: cfg.XDeadzone, AntiDeadzone: cfg.XAntiDeadzone,
			Invert: cfg.InvertX,
		},
		Y: controller.Axis{
			Min: cfg.YMin, Center: cfg.YCenter, Max: cfg.YMax,
			Deadzone: cfg.YDeadzone, AntiDeadzone: cfg.YAntiDeadzone,
			Invert: cfg.InvertY,
		},
		L: controller.Trigger{
			Min: cfg.LMin, Max: cfg.LMax,
			Deadzone: cfg.LDeadzone, AntiDeadzone: cfg.LAntiDeadzone,
			Invert: cfg.InvertL, Digital: !cfg.AnalogTrig,
		},
		R: controller.Trigger{
			Min: cfg.RMin, Max: cfg.RMax,
			Deadzone: cfg.RDeadzone, AntiDeadzone: cfg.RAntiDeadzone,
			Invert: cfg.InvertR, Digital: !cfg.AnalogTrig,
		},
		SwapXY: cfg.SwapXY,
		SwapLR: cfg.SwapLR,
	}
}

// ApplyConfig distributes the settings to the components of the pad.
func (p *Pad) ApplyConfig(cfg *persist.Config) {
	if p.GPIO != nil {
		p.GPIO.Calibration = Calibration(cfg)
	}
	if p.USB != nil {
		p.USB.StickDeadzone = cfg.USBStickDeadzone
		p.USB.TriggerDeadzone = cfg.USBTriggerDeadzone
	}
	if oled, ok := p.Status.(*display.OLED); ok {
		oled.Flip = cfg.OLEDFlip
	}
	p.Device.Configure(cfg.VMUEnable, cfg.RumbleEnable)

	p.autoReset = 0
	if cfg.AutoResetEnable {
		p.autoReset = int(cfg.AutoResetTimer) * AutoResetUnit
	}
	p.redraw = true
}
