// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipe

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/ubxctl/pkg/chat"
)

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	clock := rec.start
	rec.now = func() time.Time { return clock }

	rec.Sent([]byte("AT\r"))
	clock = clock.Add(1500 * time.Microsecond)
	rec.Received([]byte("OK\r\n"))
	require.NoError(t, rec.Err())

	records, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, DirTx, records[0].Dir)
	assert.Equal(t, "AT\r", string(records[0].Data))
	assert.Equal(t, DirRx, records[1].Dir)
	assert.Equal(t, "OK\r\n", string(records[1].Data))
	assert.Equal(t, 1500*time.Microsecond, records[1].At())
}

func TestMultiTap(t *testing.T) {
	var a, b bytes.Buffer
	tap := MultiTap{NewRecorder(&a), NewRecorder(&b)}
	tap.Sent([]byte("AT\r"))
	tap.Received([]byte("OK\r\n"))

	for _, buf := range []*bytes.Buffer{&a, &b} {
		records, err := ReadRecords(buf)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, DirTx, records[0].Dir)
		assert.Equal(t, DirRx, records[1].Dir)
	}
}

func TestReadRecords_Truncated(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	rec.Received([]byte("hello"))

	data := buf.Bytes()[:buf.Len()-2]
	_, err := ReadRecords(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestReplay_HoldsAnswersUntilSent(t *testing.T) {
	r := NewReplay([]Record{
		{Dir: DirRx, Data: []byte("BOOT\r\n")},
		{Dir: DirTx, Data: []byte("AT\r")},
		{Dir: DirRx, Data: []byte("OK\r\n")},
	}, 0)
	require.NoError(t, r.Open())
	defer r.Close()

	buf := make([]byte, 32)
	require.Eventually(t, func() bool {
		n, _ := r.Receive(buf)
		return n > 0 && string(buf[:n]) == "BOOT\r\n"
	}, time.Second, time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	n, err := r.Receive(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "answer delivered before request")

	_, err = r.Send([]byte("AT\r"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, _ := r.Receive(buf)
		return n > 0 && string(buf[:n]) == "OK\r\n"
	}, time.Second, time.Millisecond)

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("replay did not finish")
	}
}

func TestReplay_DoneBeforeOpen(t *testing.T) {
	r := NewReplay([]Record{{Dir: DirRx, Data: []byte("OK\r\n")}}, 0)
	done := r.Done()
	require.NotNil(t, done)

	require.NoError(t, r.Open())
	defer r.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("playback did not finish")
	}

	// Reopening starts a new playback
	require.NoError(t, r.Close())
	require.NoError(t, r.Open())
	assert.NotEqual(t, done, r.Done())
}

func TestReplay_DrivesEngine(t *testing.T) {
	r := NewReplay([]Record{
		{Dir: DirTx, Data: []byte("CFG\r")},
		{Dir: DirRx, Data: []byte("ACK\r\n")},
	}, 0)
	require.NoError(t, r.Open())
	defer r.Close()

	e, err := chat.New(chat.Config{ParserConfig: chat.ParserConfig{Delimiter: []byte("\r\n")}})
	require.NoError(t, err)
	defer e.Close()
	require.NoError(t, e.Attach(r))

	script := &chat.Script{
		Name:    "replayed",
		Steps:   []chat.Step{chat.Expect([]byte("CFG\r"), chat.NewMatch("ACK", "", nil))},
		Timeout: time.Second,
	}
	assert.NoError(t, e.Run(context.Background(), script))
}
