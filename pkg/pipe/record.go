// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipe

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a recorded chunk
type Direction uint8

const (
	DirRx Direction = 0
	DirTx Direction = 1
)

func (d Direction) String() string {
	if d == DirTx {
		return "TX"
	}
	return "RX"
}

// Record is one chunk of a session capture. A capture file is a CBOR
// sequence of records, each encoded as [offset-us, direction, data].
type Record struct {
	_      struct{} `cbor:",toarray"`
	Offset int64
	Dir    Direction
	Data   []byte
}

// At returns the offset from the start of the capture.
func (r Record) At() time.Duration {
	return time.Duration(r.Offset) * time.Microsecond
}

// Recorder writes pipe traffic as a CBOR sequence. It implements Tap.
type Recorder struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	start time.Time
	now   func() time.Time
	err   error
}

var _ Tap = (*Recorder)(nil)

// NewRecorder starts a capture written to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		enc:   cbor.NewEncoder(w),
		start: time.Now(),
		now:   time.Now,
	}
}

// Received records an RX chunk
func (r *Recorder) Received(p []byte) {
	r.write(DirRx, p)
}

// Sent records a TX chunk
func (r *Recorder) Sent(p []byte) {
	r.write(DirTx, p)
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) write(dir Direction, p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec := Record{
		Offset: r.now().Sub(r.start).Microseconds(),
		Dir:    dir,
		Data:   p,
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("failed to write capture record: %w", err)
	}
}

// ReadRecords decodes a whole capture.
func ReadRecords(rd io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(rd)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("failed to decode capture record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// MultiTap fans traffic out to several taps.
type MultiTap []Tap

func (m MultiTap) Received(p []byte) {
	for _, t := range m {
		t.Received(p)
	}
}

func (m MultiTap) Sent(p []byte) {
	for _, t := range m {
		t.Sent(p)
	}
}
