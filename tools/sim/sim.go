package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/buildkite/shellwords"

	"github.com/clktmr/maplepad/console"
	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/persist"
)

var (
	errUsage   = errors.New("usage")
	errQuit    = errors.New("quit")
	errButton  = errors.New("unknown button")
	errCommand = errors.New("unknown command")
)

// Inputs are the simulated pins and analog channels. They are written by the
// operator and read by the loop.
type Inputs struct {
	mu      sync.Mutex
	pressed map[int]bool
	analog  [4]uint16
}

func NewInputs() *Inputs {
	in := &Inputs{pressed: make(map[int]bool)}
	for i := range in.analog {
		in.analog[i] = uint16(controller.AxisCenter) << 4
	}
	in.analog[controller.ChannelL] = 0
	in.analog[controller.ChannelR] = 0
	return in
}

func (in *Inputs) Get(pin int) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return !in.pressed[pin]
}

func (in *Inputs) Read(ch int) uint16 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.analog[ch]
}

func (in *Inputs) set(pin int, down bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pressed[pin] = down
}

func (in *Inputs) setAnalog(a, b int, va, vb uint8) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.analog[a] = uint16(va) << 4
	in.analog[b] = uint16(vb) << 4
}

type motor struct {
	log *log.Logger
}

func (m motor) Vibrate(intensity uint8, d time.Duration) {
	m.log.Printf("sim: vibrate %d for %v", intensity, d)
}

// Sim wires a console.Pad to simulated inputs.
type Sim struct {
	Pad    *console.Pad
	Inputs *Inputs
	USB    *controller.USB
	Log    *log.Logger

	table []controller.ButtonInfo
}

func New(bus console.Bus, store *persist.Coordinator, table []controller.ButtonInfo) *Sim {
	s := &Sim{
		Inputs: NewInputs(),
		USB:    controller.NewUSB(),
		Log:    log.Default(),
		table:  table,
	}
	gpio := controller.NewGPIO(s.Inputs, s.Inputs, table)
	s.Pad = console.New(bus, store, motor{s.Log}, s.USB, gpio)
	s.Pad.Pins = s.Inputs
	s.Pad.Reset = func() { s.Log.Println("sim: reset requested") }
	return s
}

// Operate executes operator commands until quit or the end of input.
func (s *Sim) Operate(ctx context.Context, sc *bufio.Scanner, w io.Writer) {
	for sc.Scan() {
		args, err := shellwords.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(w, err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		err = s.Exec(ctx, args)
		switch {
		case errors.Is(err, errQuit):
			return
		case err != nil:
			fmt.Fprintln(w, err)
		}
	}
}

// Exec runs a single operator command.
func (s *Sim) Exec(ctx context.Context, args []string) error {
	switch args[0] {
	case "page":
		if len(args) != 2 {
			return fmt.Errorf("%w: page next|prev|<n>", errUsage)
		}
		req := console.Request{Op: console.OpStep}
		switch args[1] {
		case "next":
			req.Page = 1
		case "prev":
			req.Page = -1
		default:
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: page next|prev|<n>", errUsage)
			}
			req = console.Request{Op: console.OpPage, Page: n}
		}
		return s.request(ctx, req)
	case "save", "load", "flush":
		op := map[string]console.Op{
			"save":  console.OpSave,
			"load":  console.OpLoad,
			"flush": console.OpFlush,
		}[args[0]]
		if len(args) > 2 || (op == console.OpFlush && len(args) > 1) {
			return fmt.Errorf("%w: %s [n]", errUsage, args[0])
		}
		req := console.Request{Op: op, Active: true}
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: %s [n]", errUsage, args[0])
			}
			req = console.Request{Op: op, Page: n}
		}
		return s.request(ctx, req)
	case "press", "release":
		if len(args) != 2 {
			return fmt.Errorf("%w: %s <button>", errUsage, args[0])
		}
		pin, err := s.pin(args[1])
		if err != nil {
			return err
		}
		s.Inputs.set(pin, args[0] == "press")
	case "stick", "trigger":
		if len(args) != 3 {
			return fmt.Errorf("%w: %s <a> <b>", errUsage, args[0])
		}
		a, err1 := strconv.ParseUint(args[1], 0, 8)
		b, err2 := strconv.ParseUint(args[2], 0, 8)
		if err := errors.Join(err1, err2); err != nil {
			return err
		}
		if args[0] == "stick" {
			s.Inputs.setAnalog(controller.ChannelX, controller.ChannelY, uint8(a), uint8(b))
		} else {
			s.Inputs.setAnalog(controller.ChannelL, controller.ChannelR, uint8(a), uint8(b))
		}
	case "quit":
		return errQuit
	default:
		return fmt.Errorf("%w: %s", errCommand, args[0])
	}
	return nil
}

func (s *Sim) pin(name string) (int, error) {
	if name == "page" {
		return console.PageButtonPin, nil
	}
	b, ok := controller.ParseButton(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", errButton, name)
	}
	for _, info := range s.table {
		if info.Button == b {
			return info.Pin, nil
		}
	}
	return 0, fmt.Errorf("%w: %s not wired", errButton, name)
}

func (s *Sim) request(ctx context.Context, req console.Request) error {
	done := make(chan error, 1)
	req.Done = done
	select {
	case s.Pad.Requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadHID delivers reports from a hidraw device to the USB source until the
// device goes away.
func (s *Sim) ReadHID(ctx context.Context, name string) {
	f, err := os.Open(name)
	if err != nil {
		s.Log.Println("sim: hid:", err)
		return
	}
	go func() {
		<-ctx.Done()
		f.Close()
	}()

	s.USB.Mount()
	defer s.USB.Unmount()
	buf := make([]byte, 64)
	for {
		n, err := f.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.Log.Println("sim: hid:", err)
			}
			return
		}
		if err := s.USB.Deliver(buf[:n]); err != nil {
			s.Log.Println("sim: hid:", err)
		}
	}
}
