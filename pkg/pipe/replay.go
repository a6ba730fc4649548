// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipe

import (
	"sync"
	"time"

	"github.com/Thermoquad/ubxctl/pkg/chat"
)

// Replay plays a capture back as a pipe. Received chunks are delivered in
// order; a chunk recorded after a transmission is held back until at least
// as many bytes have been sent, so answers never arrive before their
// requests. Speed scales the recorded gaps; zero delivers without delay.
type Replay struct {
	records []Record
	speed   float64

	mu      sync.Mutex
	cond    *sync.Cond
	rx      []byte
	sent    int
	onData  func()
	open    bool
	started bool
	stopped chan struct{}
	done    chan struct{}
}

var _ chat.Pipe = (*Replay)(nil)

// NewReplay creates a replay pipe over records.
func NewReplay(records []Record, speed float64) *Replay {
	r := &Replay{records: records, speed: speed, done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Open starts playback.
func (r *Replay) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return nil
	}
	r.open = true
	r.rx = nil
	r.sent = 0
	r.stopped = make(chan struct{})
	if r.started {
		r.done = make(chan struct{})
	}
	r.started = true
	go r.play(r.stopped, r.done)
	return nil
}

// Close stops playback.
func (r *Replay) Close() error {
	r.mu.Lock()
	if !r.open {
		r.mu.Unlock()
		return nil
	}
	r.open = false
	close(r.stopped)
	r.cond.Broadcast()
	done := r.done
	r.mu.Unlock()
	<-done
	return nil
}

// Done is closed when every record has been played or playback stopped.
// Before the first Open it returns the channel that playback will close.
func (r *Replay) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Send accepts everything and counts it against recorded transmissions.
func (r *Replay) Send(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return 0, ErrClosed
	}
	r.sent += len(p)
	r.cond.Broadcast()
	return len(p), nil
}

// Receive copies replayed bytes into p.
func (r *Replay) Receive(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := copy(p, r.rx)
	r.rx = r.rx[n:]
	return n, nil
}

// OnDataAvailable registers the receive notification.
func (r *Replay) OnDataAvailable(fn func()) {
	r.mu.Lock()
	r.onData = fn
	r.mu.Unlock()
}

func (r *Replay) play(stopped, done chan struct{}) {
	defer close(done)

	var last time.Duration
	wantSent := 0
	for _, rec := range r.records {
		if rec.Dir == DirTx {
			wantSent += len(rec.Data)
			if !r.waitSent(wantSent) {
				return
			}
			last = rec.At()
			continue
		}

		if gap := rec.At() - last; r.speed > 0 && gap > 0 {
			select {
			case <-time.After(time.Duration(float64(gap) / r.speed)):
			case <-stopped:
				return
			}
		}
		last = rec.At()

		r.mu.Lock()
		r.rx = append(r.rx, rec.Data...)
		fn := r.onData
		r.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// waitSent blocks until n bytes were sent or playback stops
func (r *Replay) waitSent(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.sent < n && r.open {
		r.cond.Wait()
	}
	return r.open
}
