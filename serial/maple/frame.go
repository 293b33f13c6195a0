// Package maple contains functions for creating and parsing Maple bus frames
// as they are exchanged between the Dreamcast and its peripherals. A frame is
// a four byte header followed by a payload of 32-bit words. It doesn't handle
// the transmission of frames on the bus.
package maple

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTruncatedFrame   = errors.New("truncated frame")
	ErrInvalidWordCount = errors.New("invalid word count")
	ErrPayloadLength    = errors.New("payload not a multiple of 4 bytes")
	ErrChecksum         = errors.New("checksum mismatch")
)

const (
	HeaderLen   = 4
	MaxWords    = 255
	MaxFrameLen = HeaderLen + MaxWords*4
)

// ReplyDeadline is the time the console waits for a peripheral to start its
// response before it considers the port empty.
const ReplyDeadline = 1 * time.Millisecond

type Frame struct {
	Command     Command
	Destination Address
	Origin      Address
	Payload     []byte
}

// Words returns the number of payload words as stored in the header.
func (f *Frame) Words() int {
	return len(f.Payload) >> 2
}

// Len returns the encoded length of the frame, excluding the check byte.
func (f *Frame) Len() int {
	return HeaderLen + f.Words()*4
}

// Decode parses a frame from b. The returned payload aliases b. Bytes
// following the declared payload are ignored.
func Decode(b []byte) (f Frame, err error) {
	if len(b) < HeaderLen {
		return f, fmt.Errorf("%w: %d header bytes", ErrTruncatedFrame, len(b))
	}

	n := HeaderLen + int(b[3])*4
	if n > len(b) {
		return f, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedFrame, n, len(b))
	}

	f.Command = Command(int8(b[0]))
	f.Destination = Address(b[1])
	f.Origin = Address(b[2])
	f.Payload = b[HeaderLen:n:n]
	return f, nil
}

// Encode returns the wire representation of f.
func (f *Frame) Encode() ([]byte, error) {
	return f.AppendTo(make([]byte, 0, f.Len()))
}

// AppendTo appends the wire representation of f to b.
func (f *Frame) AppendTo(b []byte) ([]byte, error) {
	if len(f.Payload)&3 != 0 {
		return b, ErrPayloadLength
	}
	if f.Words() > MaxWords {
		return b, fmt.Errorf("%w: %d", ErrInvalidWordCount, f.Words())
	}
	b = append(b, byte(f.Command), byte(f.Destination), byte(f.Origin), byte(f.Words()))
	return append(b, f.Payload...), nil
}

// Word returns the i-th payload word, decoded big-endian, and false if the
// payload is too short.
func (f *Frame) Word(i int) (uint32, bool) {
	if i < 0 || (i+1)*4 > len(f.Payload) {
		return 0, false
	}
	w := f.Payload[i*4 : i*4+4]
	return uint32(w[0])<<24 | uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3]), true
}

// Function returns the function code in the first payload word, which every
// function specific command carries.
func (f *Frame) Function() (Function, bool) {
	w, ok := f.Word(0)
	return Function(w), ok
}

func (f Frame) String() string {
	return fmt.Sprintf("%v %v->%v [%d words]", f.Command, f.Origin, f.Destination, f.Words())
}

// Checksum returns the check byte that trails every frame on the bus: the XOR
// of all header and payload bytes.
func Checksum(b []byte) (sum byte) {
	for _, v := range b {
		sum ^= v
	}
	return
}

// VerifyChecksum checks the trailing check byte of a raw bus frame and returns
// the frame without it.
func VerifyChecksum(b []byte) ([]byte, error) {
	if len(b) < 1 {
		return nil, ErrTruncatedFrame
	}
	data := b[:len(b)-1]
	if Checksum(data) != b[len(b)-1] {
		return nil, ErrChecksum
	}
	return data, nil
}
