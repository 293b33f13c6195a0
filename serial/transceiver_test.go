package serial

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/clktmr/maplepad/serial/maple"
)

func encode(t *testing.T, f maple.Frame) []byte {
	t.Helper()
	b, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestReadWriteFrame(t *testing.T) {
	frame := encode(t, maple.Frame{
		Command:     maple.CmdGetCondition,
		Destination: 0x20,
		Payload:     maple.Words(uint32(maple.FuncController)),
	})

	var buf bytes.Buffer
	if err := WriteFrame(&buf, frame); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != len(frame)+1 {
		t.Fatalf("wrote %d bytes, want %d", buf.Len(), len(frame)+1)
	}
	raw := bytes.Clone(buf.Bytes())

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, frame) {
		t.Fatalf("got % x, want % x", got, frame)
	}

	tests := map[string]struct {
		raw []byte
		err error
	}{
		"empty":     {nil, io.EOF},
		"header":    {raw[:3], io.ErrUnexpectedEOF},
		"payload":   {raw[:6], io.ErrUnexpectedEOF},
		"checkByte": {raw[:len(raw)-1], io.ErrUnexpectedEOF},
		"corrupt":   {append(bytes.Clone(raw[:len(raw)-1]), raw[len(raw)-1]^1), maple.ErrChecksum},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tc.raw))
			if !errors.Is(err, tc.err) {
				t.Fatalf("got %v, want %v", err, tc.err)
			}
		})
	}
}

func TestTransceiver(t *testing.T) {
	bus, peer := net.Pipe()
	var logbuf bytes.Buffer
	logger := log.New(&logbuf, "", 0)
	tr := Start(bus, logger)

	if _, ok := tr.ReceiveFrame(); ok {
		t.Fatal("frame before anything was sent")
	}

	req := encode(t, maple.Frame{Command: maple.CmdDeviceInfo, Destination: 0x20})
	go func() {
		bad := append(bytes.Clone(req), maple.Checksum(req)^0xff)
		peer.Write(bad)
		WriteFrame(peer, req)
	}()

	select {
	case got := <-tr.Frames():
		if !bytes.Equal(got, req) {
			t.Fatalf("got % x, want % x", got, req)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	if !strings.Contains(logbuf.String(), "checksum mismatch") {
		t.Fatalf("corrupt frame not logged:\n%s", logbuf.String())
	}

	resp := encode(t, maple.Frame{Command: maple.CmdAck, Origin: 0x20})
	errc := make(chan error, 1)
	go func() { errc <- tr.SendFrame(resp) }()
	got, err := ReadFrame(peer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, resp) {
		t.Fatalf("sent % x, want % x", got, resp)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	if tr.Err() != nil {
		t.Fatal("error before close")
	}
	peer.Close()
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	if !errors.Is(tr.Err(), ErrClosed) {
		t.Fatalf("got %v, want %v", tr.Err(), ErrClosed)
	}
}

func TestTransceiverClose(t *testing.T) {
	var stream bytes.Buffer
	for i := range 3 {
		req := encode(t, maple.Frame{Command: maple.CmdGetCondition, Destination: 0x20, Payload: maple.Words(uint32(i))})
		if err := WriteFrame(&stream, req); err != nil {
			t.Fatal(err)
		}
	}
	// Not an io.Closer, the receiver blocks on the full channel.
	rw := struct {
		io.Reader
		io.Writer
	}{&stream, io.Discard}
	tr := Start(rw, log.New(io.Discard, "", 0))

	// Let the receiver fill the channel and block on the next frame.
	time.Sleep(10 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver still running after close")
	}
	if !errors.Is(tr.Err(), ErrClosed) {
		t.Fatalf("got %v, want %v", tr.Err(), ErrClosed)
	}
	if err := tr.Close(); err != nil {
		t.Fatal("second close:", err)
	}
}
