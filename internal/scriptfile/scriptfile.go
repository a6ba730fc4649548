// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scriptfile reads chat scripts from YAML.
//
// A script file looks like:
//
//	name: bring-up
//	timeout: 30s
//	abort:
//	  - match: "ERROR"
//	steps:
//	  - ubx: {reset: {mask: cold, mode: hardware}}
//	  - delay: 8s
//	  - ubx: {rate: {class: 0xF0, id: 0x00, rate: 0}}
//	    expect:
//	      - match: '\xB5\x62\x05\x01'
//	        wildcard: true
//	    timeout: 2s
//
// Match literals and text are unescaped with Go rules; single quotes keep
// YAML from decoding \x escapes as runes first. A step sends at most one
// of text, hex, frame or ubx. It waits for one of
// its expect patterns, or for delay, or completes once sent.
package scriptfile

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

// ErrInvalidScript is wrapped by every decoding error
var ErrInvalidScript = errors.New("invalid script")

type scriptDoc struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
	Abort   []patternDoc  `yaml:"abort"`
	Steps   []stepDoc     `yaml:"steps"`
}

type patternDoc struct {
	Match      string `yaml:"match"`
	Separators string `yaml:"separators"`
	Wildcard   bool   `yaml:"wildcard"`
	Partial    bool   `yaml:"partial"`
}

type stepDoc struct {
	Text    *string       `yaml:"text"`
	Hex     string        `yaml:"hex"`
	Frame   *frameDoc     `yaml:"frame"`
	UBX     *ubxDoc       `yaml:"ubx"`
	Expect  []patternDoc  `yaml:"expect"`
	Delay   time.Duration `yaml:"delay"`
	Timeout time.Duration `yaml:"timeout"`
}

type frameDoc struct {
	Class   uint8  `yaml:"class"`
	ID      uint8  `yaml:"id"`
	Payload string `yaml:"payload"`
}

// Options adjusts how a script is built
type Options struct {
	// OnMatch is attached to every response and abort pattern.
	OnMatch chat.MatchCallback
	// DefaultName is used when the file has no name.
	DefaultName string
}

// Load reads and decodes the script at path
func Load(path string, opts Options) (*chat.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if opts.DefaultName == "" {
		opts.DefaultName = path
	}
	return Parse(data, opts)
}

// Parse decodes a script document
func Parse(data []byte, opts Options) (*chat.Script, error) {
	var doc scriptDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}

	s := &chat.Script{
		Name:    doc.Name,
		Timeout: doc.Timeout,
	}
	if s.Name == "" {
		s.Name = opts.DefaultName
	}

	var err error
	if s.AbortMatches, err = patterns(doc.Abort, opts.OnMatch); err != nil {
		return nil, fmt.Errorf("%w: abort: %w", ErrInvalidScript, err)
	}
	for i, sd := range doc.Steps {
		step, err := sd.build(opts.OnMatch)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d: %w", ErrInvalidScript, i, err)
		}
		s.Steps = append(s.Steps, step)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return s, nil
}

func (sd stepDoc) build(cb chat.MatchCallback) (chat.Step, error) {
	request, err := sd.request()
	if err != nil {
		return chat.Step{}, err
	}
	responses, err := patterns(sd.Expect, cb)
	if err != nil {
		return chat.Step{}, err
	}

	switch {
	case sd.Delay > 0:
		if len(responses) > 0 || sd.Timeout > 0 {
			return chat.Step{}, errors.New("delay cannot be combined with expect or timeout")
		}
		return chat.Delay(request, sd.Delay), nil
	case len(responses) > 0:
		return chat.ExpectWithin(request, sd.Timeout, responses...), nil
	case sd.Timeout > 0:
		return chat.Step{}, errors.New("timeout needs expect")
	case len(request) == 0:
		return chat.Step{}, errors.New("empty step")
	default:
		return chat.Send(request), nil
	}
}

// request returns the bytes the step sends
func (sd stepDoc) request() ([]byte, error) {
	set := 0
	for _, ok := range []bool{sd.Text != nil, sd.Hex != "", sd.Frame != nil, sd.UBX != nil} {
		if ok {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("text, hex, frame and ubx are mutually exclusive")
	}

	switch {
	case sd.Text != nil:
		return Unescape(*sd.Text)
	case sd.Hex != "":
		return DecodeHex(sd.Hex)
	case sd.Frame != nil:
		payload, err := DecodeHex(sd.Frame.Payload)
		if err != nil {
			return nil, err
		}
		f, err := ubx.NewFrame(sd.Frame.Class, sd.Frame.ID, payload)
		if err != nil {
			return nil, err
		}
		return f, nil
	case sd.UBX != nil:
		return sd.UBX.encode()
	}
	return nil, nil
}

func patterns(docs []patternDoc, cb chat.MatchCallback) ([]chat.MatchPattern, error) {
	var out []chat.MatchPattern
	for i, d := range docs {
		literal, err := Unescape(d.Match)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		if len(literal) == 0 {
			return nil, fmt.Errorf("pattern %d: empty match", i)
		}
		seps, err := Unescape(d.Separators)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		out = append(out, chat.MatchPattern{
			Literal:    literal,
			Separators: seps,
			Wildcard:   d.Wildcard,
			Partial:    d.Partial,
			Callback:   cb,
		})
	}
	return out, nil
}

// Unescape decodes Go string escapes such as \r, \n and \xB5.
func Unescape(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	// Quote bare double quotes, leaving escape sequences as they are
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			b.WriteString(s[i : i+2])
			i++
		case s[i] == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	u, err := strconv.Unquote(b.String())
	if err != nil {
		return nil, fmt.Errorf("bad escape in %q", s)
	}
	return []byte(u), nil
}

// DecodeHex decodes hex bytes. Spaces, colons and an optional 0x prefix
// per byte group are ignored.
func DecodeHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "\n", "", "0x", "", "0X", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("bad hex %q: %w", s, err)
	}
	return b, nil
}
