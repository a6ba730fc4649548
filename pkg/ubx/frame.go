// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for oversize payloads and undersized
// output buffers.
var ErrInvalidArgument = errors.New("ubx: invalid argument")

// Frame is a complete wire-format UBX frame. It is a view over the bytes it
// was built in or decoded from.
type Frame []byte

// BuildFrame writes a complete frame for class/id/payload into dst and
// returns the number of bytes written. dst must hold at least
// FrameSize(len(payload)) bytes. Nothing is written on error.
func BuildFrame(dst []byte, class, id byte, payload []byte) (int, error) {
	if len(payload) > MaxPayload {
		return 0, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrInvalidArgument, len(payload), MaxPayload)
	}
	size := FrameSize(len(payload))
	if len(dst) < size {
		return 0, fmt.Errorf("%w: buffer too small: %d bytes (need %d)", ErrInvalidArgument, len(dst), size)
	}

	copy(dst[idxPayload:], payload)
	return finishFrame(dst, class, id, len(payload)), nil
}

// finishFrame writes header and checksum around n payload bytes already
// in place at dst[idxPayload:].
func finishFrame(dst []byte, class, id byte, n int) int {
	dst[idxSync1] = SyncChar1
	dst[idxSync2] = SyncChar2
	dst[idxClass] = class
	dst[idxID] = id
	binary.LittleEndian.PutUint16(dst[idxLenLow:], uint16(n))

	end := idxPayload + n
	dst[end], dst[end+1] = Checksum(dst[checksumStart:end])
	return end + FooterSize
}

// NewFrame allocates and builds a frame.
func NewFrame(class, id byte, payload []byte) (Frame, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrInvalidArgument, len(payload), MaxPayload)
	}
	buf := make([]byte, FrameSize(len(payload)))
	n, err := BuildFrame(buf, class, id, payload)
	if err != nil {
		return nil, err
	}
	return Frame(buf[:n]), nil
}

// MustNewFrame is NewFrame for payloads known to fit.
// Panics on error.
func MustNewFrame(class, id byte, payload []byte) Frame {
	f, err := NewFrame(class, id, payload)
	if err != nil {
		panic(fmt.Sprintf("ubx: build error: %v", err))
	}
	return f
}

// Class returns the message class
func (f Frame) Class() byte {
	return f[idxClass]
}

// ID returns the message id
func (f Frame) ID() byte {
	return f[idxID]
}

// PayloadLen returns the length field
func (f Frame) PayloadLen() int {
	return int(binary.LittleEndian.Uint16(f[idxLenLow:]))
}

// Payload returns the payload bytes
func (f Frame) Payload() []byte {
	return f[idxPayload : idxPayload+f.PayloadLen()]
}

// Checksum returns the checksum bytes carried by the frame
func (f Frame) Checksum() (a, b byte) {
	end := idxPayload + f.PayloadLen()
	return f[end], f[end+1]
}

// Verify checks sync characters, length and checksum.
func (f Frame) Verify() error {
	if len(f) < Overhead {
		return fmt.Errorf("frame too short: %d bytes", len(f))
	}
	if f[idxSync1] != SyncChar1 || f[idxSync2] != SyncChar2 {
		return fmt.Errorf("bad sync characters 0x%02X 0x%02X", f[idxSync1], f[idxSync2])
	}
	n := f.PayloadLen()
	if n > MaxPayload {
		return fmt.Errorf("invalid length: %d (max %d)", n, MaxPayload)
	}
	if len(f) != FrameSize(n) {
		return fmt.Errorf("length mismatch: frame is %d bytes, header says %d", len(f), FrameSize(n))
	}
	a, b := Checksum(f[checksumStart : idxPayload+n])
	gotA, gotB := f.Checksum()
	if a != gotA || b != gotB {
		return fmt.Errorf("checksum mismatch: expected 0x%02X%02X, got 0x%02X%02X", a, b, gotA, gotB)
	}
	return nil
}

// Is reports whether the frame carries class/id.
func (f Frame) Is(class, id byte) bool {
	return f.Class() == class && f.ID() == id
}
