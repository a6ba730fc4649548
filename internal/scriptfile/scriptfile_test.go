// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scriptfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

const bringUp = `
name: bring-up
timeout: 30s
abort:
  - match: "ERROR"
steps:
  - ubx: {reset: {mask: hot, mode: gnss}}
  - delay: 8s
  - ubx: {rate: {class: 0xF0, id: 0x00, rate: 0}}
    expect:
      - match: '\xB5\x62\x05\x01'
        wildcard: true
    timeout: 2s
  - text: "AT\r"
  - hex: "B5 62 06 00 01 00 03 0A 24"
    expect:
      - match: "+CGSN"
        separators: ":,"
        partial: true
      - match: OK
`

func TestParse_BringUp(t *testing.T) {
	var matched int
	s, err := Parse([]byte(bringUp), Options{OnMatch: func(chat.Match) { matched++ }})
	require.NoError(t, err)

	assert.Equal(t, "bring-up", s.Name)
	assert.Equal(t, 30*time.Second, s.Timeout)
	require.Len(t, s.AbortMatches, 1)
	assert.Equal(t, []byte("ERROR"), s.AbortMatches[0].Literal)
	require.Len(t, s.Steps, 5)

	reset := s.Steps[0]
	assert.Equal(t, chat.StepSend, reset.Kind)
	assert.Equal(t, []byte{0xB5, 0x62, 0x06, 0x04, 0x04, 0x00, 0x00, 0x00, 0x02, 0x00, 0x10, 0x68}, reset.Request)

	delay := s.Steps[1]
	assert.Equal(t, chat.StepDelay, delay.Kind)
	assert.Equal(t, 8*time.Second, delay.Timeout)
	assert.Empty(t, delay.Request)

	rate := s.Steps[2]
	assert.Equal(t, chat.StepExpect, rate.Kind)
	assert.Equal(t, 2*time.Second, rate.Timeout)
	assert.Equal(t, []byte{0xB5, 0x62, 0x06, 0x01, 0x03, 0x00, 0xF0, 0x00, 0x00, 0xFA, 0x0F}, rate.Request)
	require.Len(t, rate.Responses, 1)
	assert.True(t, rate.Responses[0].Wildcard)
	assert.Equal(t, []byte{0xB5, 0x62, 0x05, 0x01}, rate.Responses[0].Literal)

	assert.Equal(t, chat.StepSend, s.Steps[3].Kind)
	assert.Equal(t, []byte("AT\r"), s.Steps[3].Request)

	poll := s.Steps[4]
	f := ubx.Frame(poll.Request)
	assert.NoError(t, f.Verify())
	assert.True(t, f.Is(ubx.ClassCFG, ubx.IDCfgPrt))
	require.Len(t, poll.Responses, 2)
	assert.True(t, poll.Responses[0].Partial)
	assert.Equal(t, []byte(":,"), poll.Responses[0].Separators)

	poll.Responses[1].Callback(chat.Match{})
	assert.Equal(t, 1, matched)
}

func TestParse_Builders(t *testing.T) {
	encode := func(m ubx.Message) []byte {
		f, err := ubx.Encode(m)
		require.NoError(t, err)
		return f
	}

	port := ubx.DefaultCfgPrtSet()
	port.PortID = ubx.PortUSB
	port.Baudrate = 115200
	port.OutProtoMask = ubx.OutProtoUBX

	nav := ubx.DefaultCfgNav5()
	nav.DynModel = ubx.DynAutomotive
	nav.MinElev = 10

	gnss := ubx.DefaultCfgGNSS()
	gnss.Enable(ubx.GNSSGPS, 8, 16, ubx.SigGPSL1CA)
	gnss.Enable(ubx.GNSSGalileo, 4, 8, ubx.SigGalileoE1)
	gnss.Disable(ubx.GNSSGLONASS)

	poll := ubx.DefaultCfgPrtPoll()
	poll.PortID = ubx.PortUART2

	tests := []struct {
		name string
		doc  string
		want []byte
	}{
		{"reset defaults", "reset: {}", encode(ubx.DefaultCfgRst())},
		{"port poll", "portPoll: {port: uart2}", encode(poll)},
		{"port", "port: {port: usb, baud: 115200, out: [ubx]}", encode(port)},
		{"nav5", "nav5: {dynModel: automotive, minElev: 10}", encode(nav)},
		{"gnss", "gnss: {enable: [gps, galileo], disable: [glonass]}", encode(gnss)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte("steps:\n  - ubx: {"+tt.doc+"}\n"), Options{DefaultName: "b"})
			require.NoError(t, err)
			assert.Equal(t, "b", s.Name)
			assert.Equal(t, tt.want, s.Steps[0].Request)
		})
	}
}

func TestParse_Frame(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - frame: {class: 0x06, id: 0x04, payload: "FFFF 0000"}
`), Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB5, 0x62, 0x06, 0x04, 0x04, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x0C, 0x5D}, s.Steps[0].Request)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no steps", "name: x\n"},
		{"unknown field", "steps:\n  - txt: AT\n"},
		{"empty step", "steps:\n  - {}\n"},
		{"two requests", "steps:\n  - {text: AT, hex: '00'}\n"},
		{"delay with expect", "steps:\n  - {delay: 1s, expect: [{match: OK}]}\n"},
		{"timeout without expect", "steps:\n  - {text: AT, timeout: 1s}\n"},
		{"bad hex", "steps:\n  - hex: B5G\n"},
		{"bad escape", "steps:\n  - text: 'AT\\q'\n"},
		{"empty match", "steps:\n  - {text: AT, expect: [{separators: ','}]}\n"},
		{"unknown reset", "steps:\n  - ubx: {reset: {mask: lukewarm}}\n"},
		{"two builders", "steps:\n  - ubx: {reset: {}, nav5: {}}\n"},
		{"rate without id", "steps:\n  - ubx: {rate: {class: 0xF0}}\n"},
		{"bad baud", "steps:\n  - ubx: {port: {baud: 1234}}\n"},
		{"empty gnss", "steps:\n  - ubx: {gnss: {}}\n"},
		{"oversize frame", "steps:\n  - frame: {class: 1, id: 2, payload: '" + hexZeros(257) + "'}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), Options{})
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func hexZeros(n int) string {
	b := make([]byte, 2*n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poll.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - ubx: {portPoll: {}}\n"), 0o600))

	s, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, path, s.Name)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"), Options{})
	assert.Error(t, err)
}

func TestUnescape(t *testing.T) {
	b, err := Unescape(`say "hi"\r\n`)
	require.NoError(t, err)
	assert.Equal(t, []byte("say \"hi\"\r\n"), b)

	b, err = Unescape(`plain`)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), b)

	b, err = Unescape(`say \"hi\"\r`)
	require.NoError(t, err)
	assert.Equal(t, []byte("say \"hi\"\r"), b)

	b, err = Unescape(`\\"`)
	require.NoError(t, err)
	assert.Equal(t, []byte(`\"`), b)

	_, err = Unescape(`trailing\`)
	assert.Error(t, err)
}

func TestEncodeMessage(t *testing.T) {
	f, err := EncodeMessage("reset: {mask: cold}")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB5, 0x62, 0x06, 0x04, 0x04, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x0C, 0x5D}, f)

	f, err = EncodeMessage("portPoll: {port: 3}")
	require.NoError(t, err)
	assert.Equal(t, byte(ubx.PortUSB), ubx.Frame(f).Payload()[0])

	_, err = EncodeMessage("warp: {}")
	assert.ErrorIs(t, err, ErrInvalidScript)
	_, err = EncodeMessage("")
	assert.ErrorIs(t, err, ErrInvalidScript)
}
