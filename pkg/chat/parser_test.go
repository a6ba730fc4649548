// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedLines(t *testing.T, p *Parser, data string) ([]string, error) {
	t.Helper()
	var lines []string
	err := p.Feed([]byte(data), func(line []byte) {
		lines = append(lines, string(line))
	})
	return lines, err
}

func TestParser_FilterAndDelimiter(t *testing.T) {
	p, err := NewParser(ParserConfig{Delimiter: []byte("\r\n"), Filter: []byte{0x00}})
	require.NoError(t, err)

	lines, err := feedLines(t, p, "A\x00B\r\nC\r\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"AB", "C"}, lines)
}

func TestParser_SplitAcrossChunks(t *testing.T) {
	p, err := NewParser(ParserConfig{Delimiter: []byte("\r\n")})
	require.NoError(t, err)

	lines, err := feedLines(t, p, "+CSQ: 1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, 7, p.Buffered())

	lines, err = feedLines(t, p, "5,99\r")
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = feedLines(t, p, "\nOK\r\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"+CSQ: 15,99", "OK"}, lines)
	assert.Zero(t, p.Buffered())
}

func TestParser_EmptyLinesDropped(t *testing.T) {
	p, err := NewParser(ParserConfig{Delimiter: []byte("\r\n")})
	require.NoError(t, err)

	lines, err := feedLines(t, p, "\r\n\r\nOK\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"OK"}, lines)
}

func TestParser_Overflow(t *testing.T) {
	p, err := NewParser(ParserConfig{Delimiter: []byte("\n"), BufferSize: 4})
	require.NoError(t, err)

	// "abcd" fills the buffer, "e" overflows and is dropped, then the
	// buffer starts over with "f"
	lines, err := feedLines(t, p, "abcdef\nok\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBufferOverflow))
	assert.Equal(t, []string{"f", "ok"}, lines)

	// A line using the whole buffer including the delimiter still fits
	lines, err = feedLines(t, p, "abc\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, lines)
}

func TestParser_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ParserConfig
	}{
		{"no delimiter", ParserConfig{}},
		{"buffer holds only delimiter", ParserConfig{Delimiter: []byte("\r\n"), BufferSize: 2}},
		{"negative max args", ParserConfig{Delimiter: []byte("\n"), MaxArgs: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func collectTokens(line string, literalLen int, seps string, max int) []string {
	var out []string
	for tok := range Tokens([]byte(line), literalLen, []byte(seps), max) {
		out = append(out, string(tok))
	}
	return out
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		literalLen int
		seps       string
		max        int
		want       []string
	}{
		{"literal only", "OK", 2, ",", 8, []string{"OK"}},
		{"leading separator consumed", "+CSQ: 15,99", 5, " ,", 8, []string{"+CSQ:", "15", "99"}},
		{"empty fields kept", "$GPGSA,A,,3", 6, ",", 8, []string{"$GPGSA", "A", "", "3"}},
		{"max keeps remainder", "+X: a,b,c,d", 3, " ,", 3, []string{"+X:", "a", "b,c,d"}},
		{"max one", "+X: a,b", 3, " ,", 1, []string{"+X:"}},
		{"no separators", "VERSION1.2", 7, "", 8, []string{"VERSION", "1.2"}},
		{"only trailing separator", "OK,", 2, ",", 8, []string{"OK"}},
		{"zero max", "OK", 2, ",", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collectTokens(tt.line, tt.literalLen, tt.seps, tt.max))
		})
	}
}

func TestTokens_Restartable(t *testing.T) {
	seq := Tokens([]byte("+CGSN: 1,2"), 6, []byte(" ,"), 8)

	var first, second []string
	for tok := range seq {
		first = append(first, string(tok))
	}
	for tok := range seq {
		second = append(second, string(tok))
		break
	}
	assert.Equal(t, []string{"+CGSN:", "1", "2"}, first)
	assert.Equal(t, []string{"+CGSN:"}, second)
}
