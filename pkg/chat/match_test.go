// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern_Matches(t *testing.T) {
	tests := []struct {
		name    string
		pattern MatchPattern
		line    string
		want    bool
	}{
		{"exact", NewMatch("OK", "", nil), "OK", true},
		{"followed by separator", NewMatch("+CREG:", " ,", nil), "+CREG: 1,5", true},
		{"followed by non-separator", NewMatch("OK", ",", nil), "OKAY", false},
		{"shorter line", NewMatch("ERROR", "", nil), "ERR", false},
		{"different text", NewMatch("OK", "", nil), "NO CARRIER", false},
		{"wildcard prefix", NewWildcardMatch("OK", "", nil), "OKAY", true},
		{"wildcard byte", NewWildcardMatch("$G?GGA", ",", nil), "$GNGGA,123519", true},
		{"wildcard byte mismatch", NewWildcardMatch("$G?GGA", ",", nil), "$GNRMC,123519", false},
		{"question mark literal without wildcard", NewMatch("$G?GGA", ",", nil), "$GNGGA,1", false},
		{"empty wildcard matches anything", NewWildcardMatch("", "", nil), "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches([]byte(tt.line)))
		})
	}
}

func TestTryMatch_RegistrationOrder(t *testing.T) {
	set := MatchSet{
		Role: RoleResponse,
		Patterns: []MatchPattern{
			NewWildcardMatch("+C", "", nil),
			NewMatch("+CSQ:", " ,", nil),
		},
	}

	m, ok := TryMatch([]byte("+CSQ: 1,2"), set)
	require.True(t, ok)
	assert.Same(t, &set.Patterns[0], m.Pattern)
	assert.Equal(t, RoleResponse, m.Role)

	_, ok = TryMatch([]byte("OK"), set)
	assert.False(t, ok)
}

func TestMatch_Tokens(t *testing.T) {
	set := MatchSet{Role: RoleUnsolicited, Patterns: []MatchPattern{NewMatch("+CREG:", " ,", nil)}}
	m, ok := TryMatch([]byte("+CREG: 1,5"), set)
	require.True(t, ok)

	m.Args = appendArgs(make([][]byte, 0, 4), m)
	require.Len(t, m.Args, 3)
	assert.Equal(t, "+CREG:", string(m.Arg(0)))
	assert.Equal(t, "1", string(m.Arg(1)))
	assert.Equal(t, "5", string(m.Arg(2)))
	assert.Nil(t, m.Arg(3))
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "response", RoleResponse.String())
	assert.Equal(t, "abort", RoleAbort.String())
	assert.Equal(t, "unsolicited", RoleUnsolicited.String())
}
