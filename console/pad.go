// Package console runs the controller's main loop. Each tick polls the
// inputs, answers all pending bus requests, advances the persistence and
// refreshes the status display, in that order. Nothing in a tick blocks
// for longer than a flash or SD transfer.
package console

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/display"
	"github.com/clktmr/maplepad/drivers/persist"
	"github.com/clktmr/maplepad/peripheral"
	"github.com/clktmr/maplepad/serial/maple"
)

// Bus is the transceiver side of the Maple bus.
type Bus interface {
	ReceiveFrame() ([]byte, bool)
	SendFrame(b []byte) error
}

const (
	// PageButtonPin cycles to the next page when pulled low.
	PageButtonPin = 21

	PageBackward = controller.ButtonStart | controller.ButtonLeft
	PageForward  = controller.ButtonStart | controller.ButtonRight
	PageCycle    = controller.ButtonStart | controller.ButtonX | controller.ButtonY

	// TickRate is the polling frequency of Run.
	TickRate = 60

	// AutoResetUnit is the unit of persist.Config.AutoResetTimer in ticks.
	AutoResetUnit = 2 * TickRate

	// MessageTicks is how long a status message is shown.
	MessageTicks = 2 * TickRate
)

// Op is an operation requested from outside the loop.
type Op int

const (
	OpSave  Op = iota // save page to the backup card
	OpLoad            // load page from the backup card
	OpPage            // switch to page
	OpStep            // move by Page pages from the active page
	OpFlush           // commit pending changes
)

func (op Op) String() string {
	switch op {
	case OpSave:
		return "save"
	case OpLoad:
		return "load"
	case OpPage:
		return "page"
	case OpStep:
		return "step"
	case OpFlush:
		return "flush"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Request is handled by the loop between two ticks. Page numbers wrap like
// page cycling does. The result is sent to Done, if set.
type Request struct {
	Op     Op
	Page   int
	Active bool // use the active page instead of Page
	Done   chan<- error
}

// Pad owns all components of the controller.
type Pad struct {
	Log    *log.Logger
	Bus    Bus
	Store  *persist.Coordinator
	Device *peripheral.Device
	Input  *controller.Selector
	GPIO   *controller.GPIO
	USB    *controller.USB
	Status display.Status

	// Reads the page button, may be nil.
	Pins controller.Pins

	// Reset is called once the bus was idle for the auto reset time.
	Reset func()

	Requests chan Request

	ctrl      controller.Controller
	pageDown  bool
	idle      int
	autoReset int

	message      string
	messageTicks int
	shown        string
	redraw       bool
}

// New assembles a Pad. Optional components may be set on the returned Pad
// before the first tick.
func New(bus Bus, store *persist.Coordinator, motor peripheral.Motor, sources ...controller.Source) *Pad {
	p := &Pad{
		Log:      log.Default(),
		Bus:      bus,
		Store:    store,
		Device:   peripheral.New(store.VMU(), motor),
		Input:    controller.NewSelector(sources...),
		Requests: make(chan Request, 4),
	}
	for _, src := range sources {
		switch src := src.(type) {
		case *controller.GPIO:
			p.GPIO = src
		case *controller.USB:
			p.USB = src
		}
	}
	p.Device.Log = p.Log
	return p
}

// Start applies the stored configuration and shows the boot message.
func (p *Pad) Start() {
	p.Input.Log = p.Log
	p.Device.Log = p.Log
	cfg := p.Store.Config()
	p.ApplyConfig(&cfg)
	if p.Store.BackupAvailable() {
		p.show("SD: Ready")
	} else {
		p.show("SD: Failed")
	}
	p.Log.Printf("console: page %d mounted", p.Store.VMU().ActivePage())
	p.refresh()
}

// Tick runs one iteration of the main loop.
func (p *Pad) Tick() {
	st, _ := p.Input.Poll()
	p.ctrl.Update(st)

	p.cyclePages()
	p.serve(st)
	p.handleRequests()
	p.Store.Tick()
	p.refresh()
}

func (p *Pad) cyclePages() {
	var step int
	if p.Pins != nil {
		down := !p.Pins.Get(PageButtonPin)
		if down && !p.pageDown {
			step = 1
		}
		p.pageDown = down
	}
	switch {
	case p.ctrl.Combo(PageBackward):
		step = -1
	case p.ctrl.Combo(PageForward), p.ctrl.Combo(PageCycle):
		step = 1
	}
	if step != 0 {
		p.switchPage(p.Store.VMU().ActivePage() + step)
	}
}

func (p *Pad) switchPage(n int) error {
	if err := p.Store.SwitchPage(n); err != nil {
		p.Log.Println("console: switch page:", err)
		p.show("Page failed")
		return err
	}
	p.redraw = true
	return nil
}

func (p *Pad) serve(st controller.State) {
	if p.Bus == nil {
		return
	}
	served := false
	for {
		raw, ok := p.Bus.ReceiveFrame()
		if !ok {
			break
		}
		served = true
		start := time.Now()
		resp, ok := p.Device.Serve(raw, st)
		if !ok {
			continue
		}
		if d := time.Since(start); d > maple.ReplyDeadline {
			p.Log.Printf("maple: response took %v", d)
		}
		if err := p.Bus.SendFrame(resp); err != nil {
			p.Log.Println("maple: send:", err)
		}
	}

	if served {
		p.idle = 0
		return
	}
	p.idle++
	if p.autoReset > 0 && p.idle == p.autoReset {
		p.Log.Println("console: bus idle, resetting")
		if err := p.Store.ForceFlush(); err != nil {
			p.Log.Println("console: flush:", err)
		}
		if p.Reset != nil {
			p.Reset()
		}
	}
}

func (p *Pad) handleRequests() {
	for {
		select {
		case req := <-p.Requests:
			err := p.handle(req)
			if req.Done != nil {
				req.Done <- err
			}
		default:
			return
		}
	}
}

func (p *Pad) handle(req Request) (err error) {
	page := req.Page
	switch {
	case req.Op == OpStep:
		page += p.Store.VMU().ActivePage()
	case req.Active:
		page = p.Store.VMU().ActivePage()
	}
	switch req.Op {
	case OpSave:
		err = p.Store.SaveToBackup(page)
		p.showResult(err, "Page Saved!")
	case OpLoad:
		err = p.Store.LoadFromBackup(page)
		p.showResult(err, "Page Loaded!")
	case OpPage, OpStep:
		err = p.switchPage(page)
	case OpFlush:
		err = p.Store.ForceFlush()
	default:
		err = fmt.Errorf("unknown operation %v", req.Op)
	}
	if err != nil {
		p.Log.Printf("console: %v page %d: %v", req.Op, page, err)
	}
	return err
}

func (p *Pad) showResult(err error, ok string) {
	switch {
	case err == nil:
		p.show(ok)
	case errors.Is(err, persist.ErrBackupUnavailable):
		p.show("No SD Card")
	default:
		p.show("SD Error")
	}
}

func (p *Pad) show(msg string) {
	p.message = msg
	p.messageTicks = MessageTicks
	p.redraw = true
}

func (p *Pad) refresh() {
	if p.messageTicks > 0 {
		p.messageTicks--
		if p.messageTicks == 0 {
			p.message = ""
			p.redraw = true
		}
	}

	src := "none"
	if cur := p.Input.Current(); cur != nil {
		src = cur.Name()
	}
	page := p.Store.VMU().ActivePage()
	screen := fmt.Sprintf("%d|%s|%s", page, src, p.message)
	if p.Status == nil || (!p.redraw && screen == p.shown) {
		return
	}
	p.redraw = false
	p.shown = screen

	p.Status.Clear()
	p.Status.DrawText("MaplePad", 0, 0)
	p.Status.DrawText(fmt.Sprintf("Page %d", page), 0, 1)
	p.Status.DrawText("Input: "+src, 0, 2)
	p.Status.DrawText(p.message, 0, 3)
	if err := p.Status.Present(); err != nil {
		p.Log.Println("console: display:", err)
	}
}
