//go:build linux || darwin

package vmufs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rsc.io/rsc/fuse"

	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/vmu"
)

func mount(region flash.Region, dir string) error {
	c, err := fuse.Mount(dir)
	if err != nil {
		return err
	}

	sigintr := make(chan os.Signal, 1)
	signal.Notify(sigintr, os.Interrupt)

	go c.Serve(&fusefs{region, time.Now()})
	<-sigintr

	cmd := exec.Command("/bin/umount", dir)
	_, err = cmd.CombinedOutput()
	return err
}

func pageName(n int) string {
	return fmt.Sprintf("page%d.bin", n)
}

func parsePageName(name string) (int, bool) {
	s, ok := strings.CutPrefix(name, "page")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, ".bin")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || checkPage(n) != nil {
		return 0, false
	}
	return n, true
}

// fusefs implements the file system and the root dir Node. Each page is a
// file of fixed size.
type fusefs struct {
	region flash.Region
	mtime  time.Time
}

func (p *fusefs) Root() (fuse.Node, fuse.Error) {
	return p, nil
}

func (p *fusefs) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  os.ModeDir | 0o755,
		Mtime: p.mtime,
	}
}

func (p *fusefs) Lookup(name string, intr fuse.Intr) (fuse.Node, fuse.Error) {
	n, ok := parsePageName(name)
	if !ok {
		return nil, fuse.ENOENT
	}
	return &fusefile{p, n}, nil
}

func (p *fusefs) ReadDir(intr fuse.Intr) ([]fuse.Dirent, fuse.Error) {
	entries := make([]fuse.Dirent, 0, vmu.Pages)
	for n := vmu.FirstPage; n <= vmu.LastPage; n++ {
		entries = append(entries, fuse.Dirent{Name: pageName(n)})
	}
	return entries, nil
}

// fusefile implements both Node and Handle.
type fusefile struct {
	fs   *fusefs
	page int
}

func (p *fusefile) Attr() fuse.Attr {
	return fuse.Attr{
		Mode:  0o644,
		Mtime: p.fs.mtime,
		Size:  vmu.PageSize,
	}
}

func (p *fusefile) ReadAll(intr fuse.Intr) ([]byte, fuse.Error) {
	b, err := Export(p.fs.region, p.page)
	if err != nil {
		return nil, errno(err)
	}
	return b, nil
}

// Only whole pages can be written.
func (p *fusefile) WriteAll(data []byte, intr fuse.Intr) fuse.Error {
	if err := Import(p.fs.region, p.page, data); err != nil {
		return errno(err)
	}
	p.fs.mtime = time.Now()
	return nil
}

func (p *fusefile) Fsync(req *fuse.FsyncRequest, intr fuse.Intr) fuse.Error {
	return nil
}

func errno(err error) fuse.Error {
	switch {
	case errors.Is(err, ErrLength), errors.Is(err, ErrPage):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, flash.ErrBounds):
		return fuse.Errno(syscall.ENOSPC)
	}
	log.Println("vmufs:", err)
	return fuse.EIO
}
