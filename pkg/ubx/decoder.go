// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"errors"
	"fmt"
)

// Decode errors
var (
	ErrChecksum      = errors.New("checksum mismatch")
	ErrFrameTooLarge = errors.New("invalid length")
)

// Decoder recovers UBX frames from a raw byte stream. Bytes that are not
// part of a frame (NMEA sentences, noise) are skipped while hunting for the
// sync characters.
type Decoder struct {
	state   int
	buffer  []byte
	index   int
	length  int
	skipped int
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateSync1,
		buffer: make([]byte, MaxFrameLen),
	}
}

// Reset resets the decoder state to sync hunting
func (d *Decoder) Reset() {
	d.state = stateSync1
	d.index = 0
	d.length = 0
}

// Skipped returns the number of bytes discarded while hunting for sync
// since the last completed frame.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
// Returns an error if decoding fails; the decoder is then back in sync
// hunting.
func (d *Decoder) DecodeByte(b byte) (Frame, error) {
	switch d.state {
	case stateSync1:
		if b != SyncChar1 {
			d.skipped++
			return nil, nil
		}
		d.buffer[idxSync1] = b
		d.state = stateSync2
		return nil, nil

	case stateSync2:
		switch b {
		case SyncChar2:
			d.buffer[idxSync2] = b
			d.state = stateClass
		case SyncChar1:
			// Repeated first sync character, keep waiting for the second
			d.skipped++
		default:
			d.skipped += 2
			d.Reset()
		}
		return nil, nil

	case stateClass:
		d.buffer[idxClass] = b
		d.state = stateID
		return nil, nil

	case stateID:
		d.buffer[idxID] = b
		d.state = stateLenLow
		return nil, nil

	case stateLenLow:
		d.buffer[idxLenLow] = b
		d.length = int(b)
		d.state = stateLenHigh
		return nil, nil

	case stateLenHigh:
		d.buffer[idxLenHigh] = b
		d.length |= int(b) << 8
		if d.length > MaxPayload {
			n := d.length
			d.Reset()
			return nil, fmt.Errorf("%w: %d (max %d)", ErrFrameTooLarge, n, MaxPayload)
		}
		d.index = idxPayload
		if d.length == 0 {
			d.state = stateCkA
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.buffer[d.index] = b
		d.index++
		if d.index == idxPayload+d.length {
			d.state = stateCkA
		}
		return nil, nil

	case stateCkA:
		d.buffer[d.index] = b
		d.index++
		d.state = stateCkB
		return nil, nil

	case stateCkB:
		d.buffer[d.index] = b
		d.index++
		end := idxPayload + d.length
		a, c := Checksum(d.buffer[checksumStart:end])
		gotA, gotB := d.buffer[end], d.buffer[end+1]
		if a != gotA || c != gotB {
			d.Reset()
			return nil, fmt.Errorf("%w: expected 0x%02X%02X, got 0x%02X%02X", ErrChecksum, a, c, gotA, gotB)
		}
		frame := make(Frame, d.index)
		copy(frame, d.buffer[:d.index])
		d.skipped = 0
		d.Reset()
		return frame, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// Decode feeds a chunk through the decoder and calls fn for every frame and
// every decode error, in stream order.
func (d *Decoder) Decode(data []byte, fn func(Frame, error)) {
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if frame != nil || err != nil {
			fn(frame, err)
		}
	}
}
