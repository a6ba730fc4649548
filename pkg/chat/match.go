// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"bytes"
	"iter"
)

// WildcardByte matches any single byte in a wildcard literal.
const WildcardByte = '?'

// Role says which match set a pattern belongs to.
type Role int

const (
	RoleResponse Role = iota
	RoleAbort
	RoleUnsolicited
)

func (r Role) String() string {
	switch r {
	case RoleResponse:
		return "response"
	case RoleAbort:
		return "abort"
	case RoleUnsolicited:
		return "unsolicited"
	default:
		return "unknown"
	}
}

// MatchCallback is called on the engine's queue for every matched line.
// Args are only valid during the call.
type MatchCallback func(m Match)

// MatchPattern recognises and tokenises one kind of line.
type MatchPattern struct {
	// Literal the line must start with.
	Literal []byte
	// Separators split the text after the literal into arguments.
	Separators []byte
	// Wildcard turns the literal into a plain prefix in which
	// WildcardByte matches anything.
	Wildcard bool
	// Partial responses keep the current step waiting for more lines.
	Partial bool
	// Callback is optional.
	Callback MatchCallback
}

// NewMatch returns a pattern for literal followed by a separator or the
// end of the line.
func NewMatch(literal, separators string, cb MatchCallback) MatchPattern {
	return MatchPattern{Literal: []byte(literal), Separators: []byte(separators), Callback: cb}
}

// NewWildcardMatch returns a prefix pattern.
func NewWildcardMatch(literal, separators string, cb MatchCallback) MatchPattern {
	m := NewMatch(literal, separators, cb)
	m.Wildcard = true
	return m
}

// NewPartialMatch returns a response pattern that does not complete its
// step.
func NewPartialMatch(literal, separators string, cb MatchCallback) MatchPattern {
	m := NewMatch(literal, separators, cb)
	m.Partial = true
	return m
}

// Matches reports whether line is recognised by the pattern.
func (p *MatchPattern) Matches(line []byte) bool {
	if len(line) < len(p.Literal) {
		return false
	}
	if !p.Wildcard {
		if !bytes.HasPrefix(line, p.Literal) {
			return false
		}
		return len(line) == len(p.Literal) || bytes.IndexByte(p.Separators, line[len(p.Literal)]) >= 0
	}
	for i, c := range p.Literal {
		if c != WildcardByte && c != line[i] {
			return false
		}
	}
	return true
}

// MatchSet is an ordered list of patterns sharing a role.
type MatchSet struct {
	Role     Role
	Patterns []MatchPattern
}

// Match is the result of a successful TryMatch.
type Match struct {
	Role    Role
	Pattern *MatchPattern
	Line    []byte
	// Args holds the tokens of Line when the match was delivered by an
	// Engine, Args[0] being the literal.
	Args [][]byte
}

// Tokens lazily splits the matched line, bounded to max tokens.
func (m Match) Tokens(max int) iter.Seq[[]byte] {
	return Tokens(m.Line, len(m.Pattern.Literal), m.Pattern.Separators, max)
}

// Arg returns argument i or nil.
func (m Match) Arg(i int) []byte {
	if i < 0 || i >= len(m.Args) {
		return nil
	}
	return m.Args[i]
}

// TryMatch returns the first pattern of set that recognises line.
// Registration order decides between overlapping patterns.
func TryMatch(line []byte, set MatchSet) (Match, bool) {
	for i := range set.Patterns {
		p := &set.Patterns[i]
		if p.Matches(line) {
			return Match{Role: set.Role, Pattern: p, Line: line}, true
		}
	}
	return Match{}, false
}

// appendArgs fills dst with the tokens of m, bounded by cap(dst).
func appendArgs(dst [][]byte, m Match) [][]byte {
	for tok := range m.Tokens(cap(dst)) {
		dst = append(dst, tok)
	}
	return dst
}
