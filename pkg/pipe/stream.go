// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package pipe provides chat.Pipe implementations over serial ports,
// WebSockets and recorded sessions.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/pkg/chat"
)

// Buffer defaults
const (
	DefaultRxBufferSize = 4096
	DefaultTxBufferSize = 1024
	readChunkSize       = 512
)

// ErrClosed is returned by Send and Receive once the stream is closed.
var ErrClosed = errors.New("pipe closed")

// Dialer opens the underlying blocking connection.
type Dialer func() (io.ReadWriteCloser, error)

// Tap observes every chunk crossing a pipe.
type Tap interface {
	Received(p []byte)
	Sent(p []byte)
}

// Option configures a Stream.
type Option func(*Stream)

// WithLogger sets the stream logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Stream) {
		s.log = log
	}
}

// WithTap reports traffic to t.
func WithTap(t Tap) Option {
	return func(s *Stream) {
		s.tap = t
	}
}

// WithBufferSizes bounds the receive and transmit buffers.
func WithBufferSizes(rx, tx int) Option {
	return func(s *Stream) {
		if rx > 0 {
			s.rxCap = rx
		}
		if tx > 0 {
			s.txCap = tx
		}
	}
}

// Stream adapts a blocking connection into a non-blocking chat.Pipe. A
// reader goroutine fills a bounded receive buffer and a writer goroutine
// drains a bounded transmit buffer; Send reports backpressure when the
// transmit buffer is full.
type Stream struct {
	dial  Dialer
	name  string
	log   *zap.Logger
	tap   Tap
	rxCap int
	txCap int

	mu      sync.Mutex
	cond    *sync.Cond
	conn    io.ReadWriteCloser
	rx      []byte
	tx      []byte
	onData  func()
	err     error
	failed  chan struct{}
	open    bool
	closing bool
	wg      sync.WaitGroup
}

var _ chat.Pipe = (*Stream)(nil)

// NewStream creates a stream that dials on Open.
func NewStream(name string, dial Dialer, opts ...Option) *Stream {
	s := &Stream{
		dial:  dial,
		name:  name,
		log:   zap.NewNop(),
		rxCap: DefaultRxBufferSize,
		txCap: DefaultTxBufferSize,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// String describes the connection
func (s *Stream) String() string {
	return s.name
}

// Open dials the connection and starts the I/O goroutines.
func (s *Stream) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("%s: already open", s.name)
	}

	conn, err := s.dial()
	if err != nil {
		return err
	}
	s.conn = conn
	s.rx = make([]byte, 0, s.rxCap)
	s.tx = make([]byte, 0, s.txCap)
	s.err = nil
	s.failed = make(chan struct{})
	s.open = true
	s.closing = false

	s.wg.Add(2)
	go s.readLoop(conn)
	go s.writeLoop(conn)
	s.log.Debug("pipe opened", zap.String("pipe", s.name))
	return nil
}

// Close stops the I/O goroutines and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	s.closing = true
	conn := s.conn
	s.cond.Broadcast()
	s.mu.Unlock()

	err := conn.Close()
	s.wg.Wait()
	s.log.Debug("pipe closed", zap.String("pipe", s.name))
	return err
}

// Send queues as much of p as fits into the transmit buffer.
func (s *Stream) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	n := min(len(p), s.txCap-len(s.tx))
	if n == 0 {
		return 0, nil
	}
	s.tx = append(s.tx, p[:n]...)
	s.cond.Broadcast()
	return n, nil
}

// Receive copies buffered bytes into p. It returns the connection error
// once the buffer is drained after a failure.
func (s *Stream) Receive(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		if !s.open {
			return 0, ErrClosed
		}
		return 0, nil
	}
	n := copy(p, s.rx)
	s.rx = s.rx[:copy(s.rx, s.rx[n:])]
	s.cond.Broadcast()
	return n, nil
}

// Failed is closed when the connection of the current Open fails. It is
// not closed by Close.
func (s *Stream) Failed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// OnDataAvailable registers the receive notification.
func (s *Stream) OnDataAvailable(fn func()) {
	s.mu.Lock()
	s.onData = fn
	s.mu.Unlock()
}

func (s *Stream) notify() {
	s.mu.Lock()
	fn := s.onData
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	if s.err == nil {
		s.err = err
		close(s.failed)
		s.log.Warn("pipe failed", zap.String("pipe", s.name), zap.Error(err))
	}
	s.cond.Broadcast()
	s.mu.Unlock()
	s.notify()
}

func (s *Stream) readLoop(conn io.Reader) {
	defer s.wg.Done()
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if s.tap != nil {
				s.tap.Received(buf[:n])
			}
			if !s.push(buf[:n]) {
				return
			}
			s.notify()
		}
		if err != nil {
			s.fail(err)
			return
		}
	}
}

// push appends to the receive buffer, waiting for room when it is full
func (s *Stream) push(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(data) > 0 {
		for len(s.rx) == s.rxCap && !s.closing {
			fn := s.onData
			s.mu.Unlock()
			// Wake the consumer before blocking
			if fn != nil {
				fn()
			}
			s.mu.Lock()
			if len(s.rx) == s.rxCap && !s.closing {
				s.cond.Wait()
			}
		}
		if s.closing {
			return false
		}
		n := min(len(data), s.rxCap-len(s.rx))
		s.rx = append(s.rx, data[:n]...)
		data = data[n:]
	}
	return true
}

func (s *Stream) writeLoop(conn io.Writer) {
	defer s.wg.Done()
	var chunk []byte
	for {
		s.mu.Lock()
		for len(s.tx) == 0 && !s.closing && s.err == nil {
			s.cond.Wait()
		}
		if s.closing || s.err != nil {
			s.mu.Unlock()
			return
		}
		chunk = append(chunk[:0], s.tx...)
		s.tx = s.tx[:0]
		s.cond.Broadcast()
		s.mu.Unlock()

		// Report before writing so a capture never holds an answer ahead
		// of its request
		if s.tap != nil {
			s.tap.Sent(chunk)
		}
		if _, err := conn.Write(chunk); err != nil {
			s.fail(err)
			return
		}
	}
}
