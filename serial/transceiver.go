// Package serial moves Maple frames between the bus and the main loop. The
// bus side is a byte stream, e.g. a UART connected to the bus transceiver or
// a pseudo terminal in the simulator. Each frame on the stream is followed by
// its check byte.
package serial

import (
	"errors"
	"io"
	"log"
	"sync"

	"github.com/clktmr/maplepad/serial/maple"
)

var ErrClosed = errors.New("transceiver closed")

// ReadFrame reads one frame including its check byte from r and returns it
// without the check byte.
func ReadFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, maple.MaxFrameLen+1)
	if _, err := io.ReadFull(r, buf[:maple.HeaderLen]); err != nil {
		return nil, err
	}
	n := maple.HeaderLen + int(buf[3])*4 + 1
	if _, err := io.ReadFull(r, buf[maple.HeaderLen:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return maple.VerifyChecksum(buf[:n])
}

// WriteFrame writes frame b followed by its check byte to w.
func WriteFrame(w io.Writer, b []byte) error {
	buf := make([]byte, 0, len(b)+1)
	buf = append(buf, b...)
	buf = append(buf, maple.Checksum(b))
	_, err := w.Write(buf)
	return err
}

// Transceiver receives frames in the background and hands them to the main
// loop, which polls with ReceiveFrame.
type Transceiver struct {
	Log *log.Logger

	rw   io.ReadWriter
	in   chan []byte
	wmu  sync.Mutex
	done chan struct{}
	err  error

	stop     chan struct{}
	stopOnce sync.Once
}

// Start begins receiving frames from rw.
func Start(rw io.ReadWriter, logger *log.Logger) *Transceiver {
	if logger == nil {
		logger = log.Default()
	}
	t := &Transceiver{
		Log:  logger,
		rw:   rw,
		in:   make(chan []byte, 1),
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	go t.receive()
	return t
}

func (t *Transceiver) receive() {
	defer close(t.done)
	for {
		b, err := ReadFrame(t.rw)
		if errors.Is(err, maple.ErrChecksum) {
			t.Log.Println("maple: dropping frame:", err)
			continue
		} else if err != nil {
			select {
			case <-t.stop:
				err = ErrClosed
			default:
			}
			t.err = err
			return
		}
		select {
		case t.in <- b:
		case <-t.stop:
			t.err = ErrClosed
			return
		}
	}
}

// Close stops receiving and closes the stream if it is an io.Closer. Frames
// not yet received are discarded.
func (t *Transceiver) Close() (err error) {
	t.stopOnce.Do(func() {
		close(t.stop)
		if c, ok := t.rw.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// ReceiveFrame returns the next received frame, if any. It doesn't block.
func (t *Transceiver) ReceiveFrame() ([]byte, bool) {
	select {
	case b := <-t.in:
		return b, true
	default:
		return nil, false
	}
}

// Frames returns the channel of received frames, which is never closed.
func (t *Transceiver) Frames() <-chan []byte {
	return t.in
}

// Done is closed once the stream ended. Err returns the reason afterwards.
func (t *Transceiver) Done() <-chan struct{} {
	return t.done
}

func (t *Transceiver) Err() error {
	select {
	case <-t.done:
		if t.err == nil || t.err == io.EOF {
			return ErrClosed
		}
		return t.err
	default:
		return nil
	}
}

// SendFrame transmits frame b.
func (t *Transceiver) SendFrame(b []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return WriteFrame(t.rw, b)
}
