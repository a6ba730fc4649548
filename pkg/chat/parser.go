// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"bytes"
	"fmt"
	"iter"
)

// Parser defaults
const (
	DefaultBufferSize = 256
	DefaultMaxArgs    = 32
)

// ParserConfig configures line splitting.
type ParserConfig struct {
	// Delimiter terminates a line, e.g. "\r\n". Required.
	Delimiter []byte
	// Filter bytes are dropped before they reach the buffer.
	Filter []byte
	// BufferSize bounds one line including its delimiter.
	BufferSize int
	// MaxArgs bounds the tokens handed to a match callback, the literal
	// included.
	MaxArgs int
}

func (c *ParserConfig) setDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxArgs == 0 {
		c.MaxArgs = DefaultMaxArgs
	}
}

func (c ParserConfig) validate() error {
	if len(c.Delimiter) == 0 {
		return fmt.Errorf("%w: empty delimiter", ErrInvalidArgument)
	}
	if c.BufferSize <= len(c.Delimiter) {
		return fmt.Errorf("%w: buffer size %d cannot hold a line and a %d byte delimiter",
			ErrInvalidArgument, c.BufferSize, len(c.Delimiter))
	}
	if c.MaxArgs < 1 {
		return fmt.Errorf("%w: max args %d", ErrInvalidArgument, c.MaxArgs)
	}
	return nil
}

// Parser splits a byte stream into delimited lines. It is not safe for
// concurrent use.
type Parser struct {
	delimiter []byte
	filter    [256]bool
	buf       []byte
	maxArgs   int
}

// NewParser creates a parser with a bounded line buffer.
func NewParser(cfg ParserConfig) (*Parser, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Parser{
		delimiter: bytes.Clone(cfg.Delimiter),
		buf:       make([]byte, 0, cfg.BufferSize),
		maxArgs:   cfg.MaxArgs,
	}
	for _, b := range cfg.Filter {
		p.filter[b] = true
	}
	return p, nil
}

// Reset drops any partial line.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}

// Buffered returns the number of bytes of the current partial line.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Feed processes a chunk of received bytes and calls emit for each
// complete, non-empty line, without its delimiter. The line is only valid
// during emit.
//
// A line that outgrows the buffer is discarded along with the byte that
// did not fit; parsing continues with the next byte and ErrBufferOverflow
// is returned once the whole chunk has been consumed.
func (p *Parser) Feed(data []byte, emit func(line []byte)) error {
	overflows := 0
	for _, b := range data {
		if p.filter[b] {
			continue
		}
		if len(p.buf) == cap(p.buf) {
			p.buf = p.buf[:0]
			overflows++
			continue
		}
		p.buf = append(p.buf, b)
		if !bytes.HasSuffix(p.buf, p.delimiter) {
			continue
		}
		line := p.buf[:len(p.buf)-len(p.delimiter)]
		if len(line) > 0 {
			emit(line)
		}
		p.buf = p.buf[:0]
	}
	if overflows > 0 {
		return fmt.Errorf("%w: %d line(s) longer than %d bytes dropped", ErrBufferOverflow, overflows, cap(p.buf))
	}
	return nil
}

// Tokens splits a matched line into arguments. The first token is the
// matched literal line[:literalLen]. One separator directly after the
// literal is skipped, then the rest is split on any byte in separators.
// At most max tokens are produced; the last one then holds the unsplit
// remainder. Each call of the returned sequence starts over.
func Tokens(line []byte, literalLen int, separators []byte, max int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if max < 1 || literalLen > len(line) {
			return
		}
		if !yield(line[:literalLen]) {
			return
		}
		rest := line[literalLen:]
		if len(rest) == 0 {
			return
		}
		if bytes.IndexByte(separators, rest[0]) >= 0 {
			rest = rest[1:]
			if len(rest) == 0 {
				return
			}
		}
		for n := 1; n < max; n++ {
			i := indexSeparator(rest, separators)
			if i < 0 || n == max-1 {
				yield(rest)
				return
			}
			if !yield(rest[:i]) {
				return
			}
			rest = rest[i+1:]
		}
	}
}

func indexSeparator(b, separators []byte) int {
	for i, c := range b {
		if bytes.IndexByte(separators, c) >= 0 {
			return i
		}
	}
	return -1
}
