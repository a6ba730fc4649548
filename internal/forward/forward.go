// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package forward publishes matched device lines to an MQTT broker.
package forward

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/internal/config"
	"github.com/Thermoquad/ubxctl/pkg/chat"
)

// Publisher is the part of mqtt.Client the forwarder needs
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the JSON payload published for each match
type Message struct {
	Line string    `json:"line"`
	Args []string  `json:"args,omitempty"`
	Time time.Time `json:"time"`
}

// Forwarder turns matches into MQTT messages
type Forwarder struct {
	pub    Publisher
	prefix string
	qos    byte
	retain bool
	log    *zap.Logger
	now    func() time.Time
}

// New creates a forwarder publishing under prefix
func New(pub Publisher, cfg config.MQTTConfig, log *zap.Logger) *Forwarder {
	return &Forwarder{
		pub:    pub,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
		now:    time.Now,
	}
}

// Topic returns the topic a pattern's matches are published on
func (f *Forwarder) Topic(p *chat.MatchPattern) string {
	return f.prefix + "/" + topicLevel(p.Literal)
}

// Handle publishes m. It is a chat.MatchCallback and does not block the
// engine; delivery failures are logged.
func (f *Forwarder) Handle(m chat.Match) {
	msg := Message{Line: string(m.Line), Time: f.now()}
	for _, a := range m.Args {
		msg.Args = append(msg.Args, string(a))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		f.log.Error("failed to encode match", zap.Error(err))
		return
	}

	topic := f.Topic(m.Pattern)
	token := f.pub.Publish(topic, f.qos, f.retain, payload)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			f.log.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

// topicLevel makes a literal safe to use as one topic level
func topicLevel(literal []byte) string {
	var b strings.Builder
	for _, c := range literal {
		switch {
		case c == '+' || c == '#' || c == '/' || c == '$':
			// wildcard and separator characters are not allowed in names
		case c <= ' ' || c == 0x7F:
			b.WriteByte('_')
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// ClientID makes base unique per process so several instances can share a
// broker
func ClientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// Connect creates and connects an MQTT client
func Connect(cfg config.MQTTConfig, log *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(ClientID(cfg.ClientID))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to mqtt broker", zap.String("broker", cfg.Broker))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}
