// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"sync"
	"time"
)

// Task is a pending deferred call.
type Task interface {
	// Cancel stops the call if it has not been queued yet. A call that was
	// already queued still runs; the engine tells stale calls apart itself.
	Cancel() bool
}

// Scheduler runs callbacks one at a time. Every engine state change happens
// inside a callback run by its Scheduler.
type Scheduler interface {
	Submit(fn func())
	After(d time.Duration, fn func()) Task
	Now() time.Time
}

// WorkQueue is a Scheduler backed by a single goroutine and an unbounded
// FIFO. Timers post their callback to the queue when they fire.
type WorkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool
	done   chan struct{}
}

// NewWorkQueue starts the queue goroutine.
func NewWorkQueue() *WorkQueue {
	q := &WorkQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Submit appends fn to the queue. Calls after Close are dropped.
func (q *WorkQueue) Submit(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks = append(q.tasks, fn)
	q.cond.Signal()
}

// After submits fn once d has elapsed.
func (q *WorkQueue) After(d time.Duration, fn func()) Task {
	return timerTask{time.AfterFunc(d, func() { q.Submit(fn) })}
}

// Now returns the wall clock.
func (q *WorkQueue) Now() time.Time {
	return time.Now()
}

// Close runs what is already queued and stops the goroutine.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *WorkQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

type timerTask struct {
	t *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.t.Stop()
}
