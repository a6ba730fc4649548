// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

func TestBackoff(t *testing.T) {
	b := newBackoff(time.Second, 5*time.Second)
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 4*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 5*time.Second, b.Next())

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{2*time.Minute + time.Second, "2 minutes and 1 second"},
		{time.Hour, "1 hour"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2 hours, 3 minutes, and 4 seconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), tt.d.String())
	}
}

func TestMonitorModel_SendsCommandLine(t *testing.T) {
	var sent []string
	m := newMonitorModel(2, func(text string) error {
		sent = append(sent, text)
		return nil
	})

	// Not connected yet
	m.input.SetValue("CFG")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(monitorModel)
	assert.Empty(t, sent)
	require.Len(t, m.eventLog, 1)
	assert.True(t, m.eventLog[0].isError)

	next, _ = m.Update(connStatusMsg{connected: true, info: "/dev/ttyACM0 @ 115200 baud"})
	m = next.(monitorModel)
	assert.True(t, m.connected)

	m.input.SetValue(`\xB5\x62`)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(monitorModel)
	assert.Equal(t, []string{`\xB5\x62`}, sent)
	assert.Equal(t, 1, m.commands)
	assert.Empty(t, m.input.Value())
}

func TestMonitorModel_SendError(t *testing.T) {
	m := newMonitorModel(1, func(string) error { return chat.ErrBusy })
	next, _ := m.Update(connStatusMsg{connected: true, info: "test"})
	m = next.(monitorModel)

	m.input.SetValue("x")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(monitorModel)
	assert.Equal(t, 0, m.commands)
	last := m.eventLog[len(m.eventLog)-1]
	assert.True(t, last.isError)
	assert.Contains(t, last.message, "Send failed")
}

func TestMonitorModel_EventBatch(t *testing.T) {
	m := newMonitorModel(1, nil)
	pattern := chat.NewMatch("$GNGGA", ",", nil)

	next, _ := m.Update(eventBatchMsg{
		lines:   10,
		dropped: 1,
		events: []engineEvent{
			{match: &chat.Match{Role: chat.RoleUnsolicited, Pattern: &pattern}, line: "$GNGGA,1"},
			{overflow: true},
			{script: "command", result: chat.ResultTimeout, elapsed: time.Second},
			{script: "command", result: chat.ResultSuccess},
		},
	})
	m = next.(monitorModel)

	assert.Equal(t, uint64(10), m.lines)
	assert.Equal(t, uint64(1), m.dropped)
	assert.Equal(t, 1, m.matches)
	assert.Equal(t, 1, m.overflows)
	require.Len(t, m.eventLog, 3)
	assert.Equal(t, "unsolicited $GNGGA,1", m.eventLog[0].message)
	assert.Contains(t, m.eventLog[2].message, "command: timeout")
	assert.Contains(t, m.View(), "Matches:")
}

func TestMonitorModel_LogIsBounded(t *testing.T) {
	m := newMonitorModel(1, nil)
	for range 150 {
		m.addLogEntry("entry", false)
	}
	assert.Len(t, m.eventLog, m.maxLogEntries)
}

func TestEventBatcher_Run(t *testing.T) {
	b := newEventBatcher()
	b.LineReceived([]byte("$GNGGA"))
	b.BufferOverflow()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs := make(chan tea.Msg, 4)
	go b.run(ctx, func(msg tea.Msg) { msgs <- msg })

	select {
	case msg := <-msgs:
		batch := msg.(eventBatchMsg)
		assert.Equal(t, uint64(1), batch.lines)
		require.Len(t, batch.events, 1)
		assert.True(t, batch.events[0].overflow)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch")
	}
}

func TestConnectionManager_Reconnects(t *testing.T) {
	engine, err := chat.New(chat.Config{ParserConfig: chat.ParserConfig{Delimiter: []byte("\r\n")}})
	require.NoError(t, err)
	defer engine.Close()

	peers := make(chan net.Conn, 2)
	attempts := 0
	dial := func() (io.ReadWriteCloser, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("no device")
		}
		local, remote := net.Pipe()
		peers <- remote
		return local, nil
	}

	statuses := make(chan connStatus, 10)
	cm := &connectionManager{
		engine:  engine,
		open:    func() (*pipe.Stream, error) { return pipe.NewStream("test", dial), nil },
		backoff: newBackoff(time.Millisecond, 4*time.Millisecond),
		log:     zap.NewNop(),
		status:  func(s connStatus) { statuses <- s },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.run(ctx)
	}()

	next := func() connStatus {
		select {
		case s := <-statuses:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no status")
			return connStatus{}
		}
	}

	s := next()
	assert.False(t, s.connected)
	assert.Equal(t, time.Millisecond, s.retry)
	assert.True(t, next().connected)

	// Dropping the peer fails the stream and triggers a reconnect
	(<-peers).Close()
	s = next()
	assert.False(t, s.connected)
	assert.Zero(t, s.retry)
	assert.True(t, next().connected)

	cancel()
	<-done
	(<-peers).Close()
}

func TestSendRequest(t *testing.T) {
	engine, err := chat.New(chat.Config{ParserConfig: chat.ParserConfig{Delimiter: []byte("\r\n")}})
	require.NoError(t, err)
	defer engine.Close()

	local, peer := net.Pipe()
	defer peer.Close()
	s := pipe.NewStream("test", func() (io.ReadWriteCloser, error) { return local, nil })
	require.NoError(t, s.Open())
	defer s.Close()
	require.NoError(t, engine.Attach(s))

	require.NoError(t, sendRequest(engine, `\xB5\x62`))
	buf := make([]byte, 2)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB5, 0x62}, buf)

	assert.Error(t, sendRequest(engine, `\q`))
}
