package persist

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc8"

	"github.com/clktmr/maplepad/drivers/flash"
	"github.com/clktmr/maplepad/drivers/vmu"
)

// Each memory card page is stored in its own flash sector, together with a
// copy of the config and a generation counter. The valid slot with the
// highest generation holds the authoritative config.
//
//	offset  size  content
//	0       64    Config, little-endian
//	64      2048  page data
//	2112    4     generation, little-endian
//	2116    1     CRC-8 over all preceding bytes
const (
	slotPage = ConfigSize
	slotGen  = slotPage + vmu.PageSize
	slotCRC  = slotGen + 4
	slotLen  = slotCRC + 1

	SlotSize = flash.SectorSize

	// RegionSize is the flash space needed for all pages.
	RegionSize = vmu.Pages * SlotSize
)

var ErrCorruptSlot = errors.New("corrupt slot")

var slotCRC8 = crc8.MakeTable(crc8.CRC8_CDMA2000)

// Slot is the decoded content of a flash slot.
type Slot struct {
	Config     Config
	Page       vmu.Page
	Generation uint32
}

func slotOffset(n int) int64 {
	return int64(n-vmu.FirstPage) * SlotSize
}

// ReadSlot reads and verifies the slot of page n. Erased or never written
// slots return ErrCorruptSlot.
func ReadSlot(r io.ReaderAt, n int) (*Slot, error) {
	if n < vmu.FirstPage || n > vmu.LastPage {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	var buf [slotLen]byte
	if _, err := r.ReadAt(buf[:], slotOffset(n)); err != nil {
		return nil, err
	}
	gen := binary.LittleEndian.Uint32(buf[slotGen:])
	if gen == 0 || gen == 0xffffffff {
		return nil, fmt.Errorf("%w: page %d: blank", ErrCorruptSlot, n)
	}
	if sum := crc8.Checksum(buf[:slotCRC], slotCRC8); sum != buf[slotCRC] {
		return nil, fmt.Errorf("%w: page %d: crc %#02x, want %#02x", ErrCorruptSlot, n, buf[slotCRC], sum)
	}

	s := &Slot{Generation: gen}
	if err := s.Config.unmarshal(buf[:slotPage]); err != nil {
		return nil, err
	}
	copy(s.Page[:], buf[slotPage:slotGen])
	return s, nil
}

// WriteSlot programs the slot of page n with a single write.
func WriteSlot(w io.WriterAt, n int, s *Slot) error {
	if n < vmu.FirstPage || n > vmu.LastPage {
		return fmt.Errorf("%w: %d", ErrInvalidPage, n)
	}
	var buf [slotLen]byte
	if err := s.Config.marshal(buf[:slotPage]); err != nil {
		return err
	}
	copy(buf[slotPage:slotGen], s.Page[:])
	binary.LittleEndian.PutUint32(buf[slotGen:], s.Generation)
	buf[slotCRC] = crc8.Checksum(buf[:slotCRC], slotCRC8)
	_, err := w.WriteAt(buf[:], slotOffset(n))
	return err
}

// Latest returns the valid slot with the highest generation and its page
// number, or nil if the region holds no valid slot.
func Latest(r io.ReaderAt) (s *Slot, n int, err error) {
	for i := vmu.FirstPage; i <= vmu.LastPage; i++ {
		cur, err := ReadSlot(r, i)
		if errors.Is(err, ErrCorruptSlot) {
			continue
		} else if err != nil {
			return nil, 0, err
		}
		if s == nil || cur.Generation > s.Generation {
			s, n = cur, i
		}
	}
	return s, n, nil
}
