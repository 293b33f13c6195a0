package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clktmr/maplepad/tools/sim"
	"github.com/clktmr/maplepad/tools/vmufs"
)

const usageString = `mptool is a tool for development of MaplePad firmware.

Usage:

	%s <command> [arguments]

The commands are:

	sim      run the firmware on the host
	vmufs    inspect and modify memory card pages of flash images
`

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), usageString, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	log.Default().SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "sim":
		sim.Main(flag.Args())
	case "vmufs":
		vmufs.Main(flag.Args())
	default:
		fmt.Fprintf(flag.CommandLine.Output(), "unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
