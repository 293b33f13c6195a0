// Package vmufs inspects and modifies the memory card pages of a flash image.
package vmufs

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/persist"
)

const usageString = `Memory card page utility.

Usage:

	%s <command> [arguments]

The commands are:

	ls <flash>			list the slots of a flash image
	export <flash> <page> <file>	copy a page out of the image
	import <flash> <page> <file>	replace a page in the image
	mount <flash> <dir>		serve the pages via fuse
`

var flags = flag.NewFlagSet("vmufs", flag.ExitOnError)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "vmufs")
	flags.PrintDefaults()
}

func must[T any](ret T, err error) T {
	if err != nil {
		log.Fatalln("vmufs:", err)
	}
	return ret
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	nargs := map[string]int{"ls": 2, "export": 4, "import": 4, "mount": 3}
	n, ok := nargs[flags.Arg(0)]
	if !ok || flags.NArg() != n {
		flags.Usage()
		os.Exit(1)
	}

	region := must(flash.OpenFile(flags.Arg(1), persist.RegionSize))
	defer region.Close()

	var err error
	switch flags.Arg(0) {
	case "ls":
		err = List(os.Stdout, region)
	case "export":
		page := must(strconv.Atoi(flags.Arg(2)))
		var data []byte
		if data, err = Export(region, page); err == nil {
			err = os.WriteFile(flags.Arg(3), data, 0o644)
		}
	case "import":
		page := must(strconv.Atoi(flags.Arg(2)))
		data := must(os.ReadFile(flags.Arg(3)))
		err = Import(region, page, data)
	case "mount":
		err = mount(region, flags.Arg(2))
	}
	if err != nil {
		log.Fatalln("vmufs:", err)
	}
}
