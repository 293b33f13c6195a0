// Package sim runs the controller firmware on the host. The Maple bus is
// exposed as a pseudo terminal, the operator drives the inputs from stdin.
package sim

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"

	"github.com/aymanbagabas/go-pty"

	"github.com/clktmr/maplepad/drivers/controller"
	"github.com/clktmr/maplepad/drivers/display"
	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/persist"
	"github.com/clktmr/maplepad/drivers/sdcard"
	"github.com/clktmr/maplepad/serial"
)

const usageString = `MaplePad simulator.

Usage: %s [flags]

The Maple bus is served on a pseudo terminal, its name is printed at startup.
Frames are exchanged with a trailing XOR check byte. Commands read from stdin:

	page next|prev|<n>	switch memory card page
	save [n]		save page to the SD card image
	load [n]		load page from the SD card image
	press <button>		press a button, "page" is the page button
	release <button>	release a button
	stick <x> <y>		move the analog stick, 0-255
	trigger <l> <r>		set the analog triggers, 0-255
	flush			commit pending changes to flash
	quit			exit the simulator

`

var (
	flags = flag.NewFlagSet("sim", flag.ExitOnError)

	flashImage = flags.String("flash", "maplepad.flash", "flash image, created if missing")
	sdImage    = flags.String("sd", "", "SD card image, none if empty")
	sdBlocks   = flags.Int64("sdblocks", 2048, "size of a newly created SD card image in blocks")
	hidraw     = flags.String("hidraw", "", "hidraw device of an Xbox 360 pad")
	model      = flags.String("model", "hkt7700", "hkt7700 | hkt7300")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "sim")
	flags.PrintDefaults()
}

func openCard(name string, blocks int64) (*sdcard.Image, error) {
	card, err := sdcard.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return sdcard.Create(name, blocks)
	}
	return card, err
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() != 0 {
		flags.Usage()
		os.Exit(1)
	}

	var table []controller.ButtonInfo
	switch *model {
	case "hkt7700":
		table = controller.HKT7700
	case "hkt7300":
		table = controller.HKT7300
	default:
		log.Fatalf("sim: unknown model %q", *model)
	}

	region, err := flash.OpenFile(*flashImage, persist.RegionSize)
	if err != nil {
		log.Fatalln("sim:", err)
	}
	defer region.Close()

	var card sdcard.Card
	if *sdImage != "" {
		img, err := openCard(*sdImage, *sdBlocks)
		if err != nil {
			log.Fatalln("sim:", err)
		}
		defer img.Close()
		card = img
	}

	store, err := persist.Open(region, card, log.Default())
	if err != nil && !errors.Is(err, persist.ErrFlashBounds) {
		log.Fatalln("sim:", err)
	}

	p, err := pty.New()
	if err != nil {
		log.Fatalln("sim: open pty:", err)
	}
	bus := serial.Start(p, log.Default())
	defer bus.Close()
	log.Printf("sim: maple bus on %s", p.Name())

	sim := New(bus, store, table)
	sim.Pad.Status = display.NewText(os.Stdout, display.SSD1306)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)
	go func() {
		<-sigintr
		cancel()
	}()

	if *hidraw != "" {
		go sim.ReadHID(ctx, *hidraw)
	}
	go func() {
		sim.Operate(ctx, bufio.NewScanner(os.Stdin), os.Stdout)
		cancel()
	}()

	if err := sim.Pad.Run(ctx); err != nil {
		log.Fatalln("sim:", err)
	}
}
