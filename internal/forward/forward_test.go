// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package forward

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Thermoquad/ubxctl/internal/config"
	"github.com/Thermoquad/ubxctl/pkg/chat"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic, qos, retained, payload.([]byte)})
	return newDoneToken(p.err)
}

func TestTopicLevel(t *testing.T) {
	tests := []struct {
		literal string
		want    string
	}{
		{"$GNGGA", "GNGGA"},
		{"+CREG:", "CREG:"},
		{"a/b#c", "abc"},
		{"OK GO", "OK_GO"},
		{"$", "_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, topicLevel([]byte(tt.literal)), tt.literal)
	}
}

func TestForwarder_Handle(t *testing.T) {
	pub := &fakePublisher{}
	f := New(pub, config.MQTTConfig{Prefix: "gnss/rover/", QoS: 1, Retain: true}, zap.NewNop())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return at }

	pattern := chat.NewMatch("$GNGGA", ",", nil)
	m, ok := chat.TryMatch([]byte("$GNGGA,123519,4807.038,N"), chat.MatchSet{
		Role:     chat.RoleUnsolicited,
		Patterns: []chat.MatchPattern{pattern},
	})
	require.True(t, ok)
	m.Args = [][]byte{[]byte("$GNGGA"), []byte("123519"), []byte("4807.038,N")}
	f.Handle(m)

	require.Len(t, pub.msgs, 1)
	got := pub.msgs[0]
	assert.Equal(t, "gnss/rover/GNGGA", got.topic)
	assert.Equal(t, byte(1), got.qos)
	assert.True(t, got.retain)

	var msg Message
	require.NoError(t, json.Unmarshal(got.payload, &msg))
	assert.Equal(t, "$GNGGA,123519,4807.038,N", msg.Line)
	assert.Equal(t, []string{"$GNGGA", "123519", "4807.038,N"}, msg.Args)
	assert.True(t, at.Equal(msg.Time))
}

func TestForwarder_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &fakePublisher{err: errors.New("not connected")}
	f := New(pub, config.MQTTConfig{Prefix: "x"}, zap.New(core))

	pattern := chat.NewMatch("OK", "", nil)
	f.Handle(chat.Match{Role: chat.RoleUnsolicited, Pattern: &pattern, Line: []byte("OK")})

	require.Eventually(t, func() bool {
		return logs.FilterMessage("mqtt publish failed").Len() == 1
	}, time.Second, time.Millisecond)
}

func TestClientID(t *testing.T) {
	a, b := ClientID("ubxctl"), ClientID("ubxctl")
	assert.True(t, strings.HasPrefix(a, "ubxctl-"), a)
	assert.Len(t, a, len("ubxctl-")+8)
	assert.NotEqual(t, a, b)
}
