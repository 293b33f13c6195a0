package vmufs

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/persist"
	"github.com/clktmr/maplepad/drivers/vmu"
)

var (
	ErrPage   = errors.New("invalid page")
	ErrLength = errors.New("invalid page length")
)

func checkPage(n int) error {
	if n < vmu.FirstPage || n > vmu.LastPage {
		return fmt.Errorf("%w: %d", ErrPage, n)
	}
	return nil
}

// List writes a table of all slots. The slot holding the authoritative config
// is marked with an asterisk.
func List(w io.Writer, r io.ReaderAt) error {
	_, latest, err := persist.Latest(r)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tGEN\tVERSION\tACTIVE\t")
	for n := vmu.FirstPage; n <= vmu.LastPage; n++ {
		s, err := persist.ReadSlot(r, n)
		mark := ""
		if n == latest {
			mark = "*"
		}
		switch {
		case errors.Is(err, persist.ErrCorruptSlot):
			fmt.Fprintf(tw, "%d\t-\t-\t\t\n", n)
		case err != nil:
			return err
		default:
			fmt.Fprintf(tw, "%d%s\t%d\t%#02x\t%d\t\n", n, mark, s.Generation, s.Config.Version, s.Config.CurrentPage)
		}
	}
	return tw.Flush()
}

// Export returns the content of page n. Blank slots read as zeros.
func Export(r io.ReaderAt, n int) ([]byte, error) {
	if err := checkPage(n); err != nil {
		return nil, err
	}
	s, err := persist.ReadSlot(r, n)
	if errors.Is(err, persist.ErrCorruptSlot) {
		return make([]byte, vmu.PageSize), nil
	} else if err != nil {
		return nil, err
	}
	return s.Page[:], nil
}

// Import replaces page n. The slot is written with the newest config and a new
// generation, so the firmware's page selection is unchanged.
func Import(region flash.Region, n int, data []byte) error {
	if err := checkPage(n); err != nil {
		return err
	}
	if len(data) != vmu.PageSize {
		return fmt.Errorf("%w: %d", ErrLength, len(data))
	}
	latest, _, err := persist.Latest(region)
	if err != nil {
		return err
	}
	s := &persist.Slot{Config: persist.DefaultConfig(), Generation: 1}
	if latest != nil {
		s.Config = latest.Config
		s.Generation = latest.Generation + 1
	}
	copy(s.Page[:], data)
	return persist.WriteSlot(region, n, s)
}
