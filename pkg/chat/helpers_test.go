// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// manualScheduler is a Scheduler driven by the test with virtual time.
type manualScheduler struct {
	now    time.Time
	queue  []func()
	timers []*manualTask
	seq    int

	// keepCancelled simulates timers that already fired when they were
	// cancelled: Cancel reports failure and the callback still runs.
	keepCancelled bool
}

type manualTask struct {
	s         *manualScheduler
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() bool {
	if t.s.keepCancelled || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) Submit(fn func()) {
	s.queue = append(s.queue, fn)
}

func (s *manualScheduler) After(d time.Duration, fn func()) Task {
	s.seq++
	t := &manualTask{s: s, at: s.now.Add(d), seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Now() time.Time {
	return s.now
}

// RunPending runs queued tasks until the queue is empty.
func (s *manualScheduler) RunPending() {
	for len(s.queue) > 0 {
		fn := s.queue[0]
		s.queue = s.queue[1:]
		fn()
	}
}

// Advance moves virtual time forward, firing due timers in order.
func (s *manualScheduler) Advance(d time.Duration) {
	end := s.now.Add(d)
	for {
		s.RunPending()
		sort.SliceStable(s.timers, func(i, j int) bool {
			if s.timers[i].at.Equal(s.timers[j].at) {
				return s.timers[i].seq < s.timers[j].seq
			}
			return s.timers[i].at.Before(s.timers[j].at)
		})
		if len(s.timers) == 0 || s.timers[0].at.After(end) {
			break
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		s.now = t.at
		if !t.cancelled || s.keepCancelled {
			s.Submit(t.fn)
		}
	}
	s.now = end
	s.RunPending()
}

// fakePipe is an in-memory Pipe.
type fakePipe struct {
	mu      sync.Mutex
	rx      []byte
	tx      []byte
	onData  func()
	sendErr error
	recvErr error
	// accept limits how many bytes each Send call takes. Entries are
	// consumed in order; 0 reports backpressure. When empty, Send takes
	// everything.
	accept []int
	// onSend is called with each accepted chunk.
	onSend func(p []byte)
}

func (p *fakePipe) Open() error  { return nil }
func (p *fakePipe) Close() error { return nil }

func (p *fakePipe) Send(b []byte) (int, error) {
	p.mu.Lock()
	if p.sendErr != nil {
		p.mu.Unlock()
		return 0, p.sendErr
	}
	n := len(b)
	if len(p.accept) > 0 {
		n = min(n, p.accept[0])
		p.accept = p.accept[1:]
	}
	p.tx = append(p.tx, b[:n]...)
	hook := p.onSend
	p.mu.Unlock()
	if hook != nil && n > 0 {
		hook(b[:n])
	}
	return n, nil
}

func (p *fakePipe) Receive(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recvErr != nil {
		return 0, p.recvErr
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePipe) OnDataAvailable(fn func()) {
	p.mu.Lock()
	p.onData = fn
	p.mu.Unlock()
}

// Inject makes data available for Receive.
func (p *fakePipe) Inject(data string) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	fn := p.onData
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *fakePipe) Sent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.tx)
}

var errBrokenPipe = errors.New("broken pipe")

// countingObserver records engine events.
type countingObserver struct {
	lines     int
	overflows int
	matches   map[Role]int
	steps     int
	results   []Result
}

func newCountingObserver() *countingObserver {
	return &countingObserver{matches: map[Role]int{}}
}

func (o *countingObserver) LineReceived([]byte)                     { o.lines++ }
func (o *countingObserver) BufferOverflow()                         { o.overflows++ }
func (o *countingObserver) Matched(m Match)                         { o.matches[m.Role]++ }
func (o *countingObserver) StepFinished(string, int, time.Duration) { o.steps++ }

func (o *countingObserver) ScriptFinished(_ string, r Result, _ time.Duration) {
	o.results = append(o.results, r)
}

// resultRecorder collects script callback invocations.
type resultRecorder struct {
	results []Result
}

func (r *resultRecorder) callback(res Result) {
	r.results = append(r.results, res)
}
