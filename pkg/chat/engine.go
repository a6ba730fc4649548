// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package chat runs request/response scripts over a byte pipe.
//
// Incoming bytes are split into lines, each line is tested against the
// abort matches of the running script, the responses expected by its
// current step and a set of unsolicited matches that apply whether or not
// a script runs. All engine state lives on one Scheduler queue, so match
// callbacks, timers and script callbacks never run concurrently.
package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine defaults
const (
	DefaultSendRetryDelay = 10 * time.Millisecond
	DefaultSendTimeout    = time.Second
	DefaultReceiveChunk   = 128
)

// Config configures an Engine.
type Config struct {
	ParserConfig

	// SendDelimiter appends the line delimiter to every request.
	SendDelimiter bool
	// SendRetryDelay is the pause after the pipe reports backpressure.
	SendRetryDelay time.Duration
	// SendTimeout bounds sending one request.
	SendTimeout time.Duration
	// ReceiveChunk is the read size used to drain the pipe.
	ReceiveChunk int
}

func (c *Config) setDefaults() {
	c.ParserConfig.setDefaults()
	if c.SendRetryDelay == 0 {
		c.SendRetryDelay = DefaultSendRetryDelay
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ReceiveChunk == 0 {
		c.ReceiveChunk = DefaultReceiveChunk
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithScheduler runs the engine on s instead of a private WorkQueue.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithObserver reports engine events to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithUnsolicited registers patterns tested on every line.
func WithUnsolicited(patterns ...MatchPattern) Option {
	return func(e *Engine) {
		e.unsolicited = MatchSet{Role: RoleUnsolicited, Patterns: patterns}
	}
}

type attachment struct {
	pipe Pipe
}

// Engine executes at most one Script at a time over an attached Pipe.
type Engine struct {
	cfg         Config
	log         *zap.Logger
	sched       Scheduler
	ownQueue    *WorkQueue
	observer    Observer
	unsolicited MatchSet

	pipe      atomic.Pointer[attachment]
	busy      atomic.Bool
	nextGen   atomic.Uint64
	activeGen atomic.Uint64
	abortGen  atomic.Uint64

	// Owned by the scheduler queue
	parser *Parser
	rxBuf  []byte
	argv   [][]byte
	cur    *run
}

// New creates an engine. Without WithScheduler the engine starts its own
// WorkQueue, stopped by Close.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.setDefaults()
	if cfg.SendRetryDelay < 0 || cfg.SendTimeout < 0 || cfg.ReceiveChunk < 0 {
		return nil, fmt.Errorf("%w: negative send or receive setting", ErrInvalidArgument)
	}
	parser, err := NewParser(cfg.ParserConfig)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		log:         zap.NewNop(),
		observer:    nopObserver{},
		unsolicited: MatchSet{Role: RoleUnsolicited},
		parser:      parser,
		rxBuf:       make([]byte, cfg.ReceiveChunk),
		argv:        make([][]byte, 0, cfg.MaxArgs),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.ownQueue = NewWorkQueue()
		e.sched = e.ownQueue
	}
	return e, nil
}

// Close releases the pipe and stops the private queue, if any.
func (e *Engine) Close() {
	e.Release()
	if e.ownQueue != nil {
		e.ownQueue.Close()
	}
}

// Attach connects an opened pipe. Received data is processed on the
// engine's queue from now on.
func (e *Engine) Attach(p Pipe) error {
	if p == nil {
		return fmt.Errorf("%w: nil pipe", ErrInvalidArgument)
	}
	if !e.pipe.CompareAndSwap(nil, &attachment{pipe: p}) {
		return fmt.Errorf("%w: a pipe is already attached", ErrInvalidArgument)
	}
	e.sched.Submit(e.parser.Reset)
	p.OnDataAvailable(func() {
		e.sched.Submit(e.receive)
	})
	// Drain anything buffered before the notification was registered
	e.sched.Submit(e.receive)
	e.log.Debug("pipe attached")
	return nil
}

// Release detaches the pipe. A running script is aborted.
func (e *Engine) Release() {
	a := e.pipe.Swap(nil)
	if a == nil {
		return
	}
	a.pipe.OnDataAvailable(nil)
	e.Abort()
	e.sched.Submit(e.parser.Reset)
	e.log.Debug("pipe released")
}

// Running reports whether a script is in progress.
func (e *Engine) Running() bool {
	return e.busy.Load()
}

// RunAsync starts s and returns immediately. s.Callback is invoked exactly
// once on the engine's queue with the result; the engine is idle again
// once the callback has returned.
func (e *Engine) RunAsync(s *Script) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Callback == nil {
		return fmt.Errorf("%w: script %q has no callback", ErrInvalidArgument, s.Name)
	}
	_, err := e.start(s)
	return err
}

// Run executes s and waits for it to finish. s.Callback is optional. If
// ctx ends first the script is aborted and ctx.Err() is returned once it
// has stopped; a script that finished on its own reports its own result.
func (e *Engine) Run(ctx context.Context, s *Script) error {
	if err := s.Validate(); err != nil {
		return err
	}
	var result Result
	wrapped := *s
	wrapped.Callback = func(r Result) {
		result = r
		if s.Callback != nil {
			s.Callback(r)
		}
	}
	r, err := e.start(&wrapped)
	if err != nil {
		return err
	}

	select {
	case <-r.done:
		return result.Err()
	case <-ctx.Done():
		e.abort(r.gen)
		<-r.done
		// The script may have finished before the abort was applied
		if result != ResultAbort {
			return result.Err()
		}
		return ctx.Err()
	}
}

// Abort stops the running script with ResultAbort. It does nothing when
// idle or when the script already finished.
func (e *Engine) Abort() {
	if gen := e.activeGen.Load(); gen != 0 {
		e.abort(gen)
	}
}

func (e *Engine) abort(gen uint64) {
	e.abortGen.Store(gen)
	e.sched.Submit(e.handleAbortRequest)
}

func (e *Engine) start(s *Script) (*run, error) {
	if e.pipe.Load() == nil {
		return nil, ErrNotAttached
	}
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	r := &run{
		script: s,
		id:     uuid.New(),
		gen:    e.nextGen.Add(1),
		done:   make(chan struct{}),
	}
	e.activeGen.Store(r.gen)
	e.sched.Submit(func() {
		e.begin(r)
	})
	return r, nil
}

// handleAbortRequest applies a pending Abort. It runs as its own task and
// again before every line and timer so a request made from inside a
// callback takes effect before the next event.
func (e *Engine) handleAbortRequest() {
	if e.cur != nil && e.abortGen.Load() == e.cur.gen && !e.cur.state.Terminal() {
		e.log.Debug("script abort requested", e.cur.fields()...)
		e.finish(ResultAbort)
	}
}

// receive drains the pipe into the parser
func (e *Engine) receive() {
	a := e.pipe.Load()
	if a == nil {
		return
	}
	for {
		n, err := a.pipe.Receive(e.rxBuf)
		if err != nil {
			e.log.Warn("pipe receive failed", zap.Error(err))
			if e.cur != nil && !e.cur.state.Terminal() {
				e.finish(ResultTransportFault)
			}
			return
		}
		if n == 0 {
			return
		}
		if err := e.parser.Feed(e.rxBuf[:n], e.processLine); err != nil {
			e.log.Warn("line dropped", zap.Error(err))
			e.observer.BufferOverflow()
		}
	}
}

// processLine evaluates one line: abort matches, then the current step's
// responses, then unsolicited matches.
func (e *Engine) processLine(line []byte) {
	e.handleAbortRequest()
	e.observer.LineReceived(line)

	if r := e.cur; r != nil && !r.state.Terminal() {
		if m, ok := TryMatch(line, MatchSet{Role: RoleAbort, Patterns: r.script.AbortMatches}); ok {
			e.deliver(m)
			e.log.Info("abort match", append(r.fields(), zap.ByteString("line", line))...)
			e.finish(ResultAbort)
		} else if r.state == StateAwaitingResponse {
			step := r.script.Steps[r.step]
			if m, ok := TryMatch(line, MatchSet{Role: RoleResponse, Patterns: step.Responses}); ok {
				e.deliver(m)
				e.handleAbortRequest()
				if !m.Pattern.Partial && e.cur == r && r.state == StateAwaitingResponse {
					e.advance()
				}
			}
		}
	}

	if m, ok := TryMatch(line, e.unsolicited); ok {
		e.deliver(m)
	}
}

func (e *Engine) deliver(m Match) {
	m.Args = appendArgs(e.argv[:0], m)
	e.observer.Matched(m)
	if m.Pattern.Callback != nil {
		m.Pattern.Callback(m)
	}
}
