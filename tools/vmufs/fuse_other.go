//go:build !(linux || darwin)

package vmufs

import (
	"errors"

	"github.com/clktmr/maplepad/drivers/flash"
)

func mount(region flash.Region, dir string) error {
	return errors.New("fuse not supported on this platform")
}
