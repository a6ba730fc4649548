// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads ubxctl settings from ubxctl.yaml, UBXCTL_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Thermoquad/ubxctl/pkg/chat"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "UBXCTL"

// ConnectionConfig selects the transport
type ConnectionConfig struct {
	Port        string `mapstructure:"port"`
	Baud        int    `mapstructure:"baud"`
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

// ReconnectConfig bounds the reconnect backoff
type ReconnectConfig struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
}

// ChatConfig mirrors chat.Config
type ChatConfig struct {
	Delimiter      string        `mapstructure:"delimiter"`
	Filter         string        `mapstructure:"filter"`
	BufferSize     int           `mapstructure:"bufferSize"`
	MaxArgs        int           `mapstructure:"maxArgs"`
	SendDelimiter  bool          `mapstructure:"sendDelimiter"`
	SendRetryDelay time.Duration `mapstructure:"sendRetryDelay"`
	SendTimeout    time.Duration `mapstructure:"sendTimeout"`
}

// FileConfig configures log rotation
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets level and output
type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	File   FileConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// MQTTConfig controls forwarding of unsolicited lines
type MQTTConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"clientID"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	QoS      byte   `mapstructure:"qos"`
	Retain   bool   `mapstructure:"retain"`
}

// PatternConfig describes one unsolicited match
type PatternConfig struct {
	Match      string `mapstructure:"match"`
	Separators string `mapstructure:"separators"`
	Wildcard   bool   `mapstructure:"wildcard"`
}

// Config is the complete application configuration
type Config struct {
	Connection  ConnectionConfig `mapstructure:"connection"`
	Reconnect   ReconnectConfig  `mapstructure:"reconnect"`
	Chat        ChatConfig       `mapstructure:"chat"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	MQTT        MQTTConfig       `mapstructure:"mqtt"`
	Unsolicited []PatternConfig  `mapstructure:"unsolicited"`
}

// New returns a viper instance with defaults and environment overrides
// set up. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or ubxctl.yaml from the working directory and
// $HOME/.config/ubxctl when path is empty, and decodes the result. A
// missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ubxctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ubxctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.baud", 115200)
	v.SetDefault("connection.username", "admin")

	v.SetDefault("reconnect.initial", "1s")
	v.SetDefault("reconnect.max", "30s")

	v.SetDefault("chat.delimiter", "\r\n")
	v.SetDefault("chat.bufferSize", chat.DefaultBufferSize)
	v.SetDefault("chat.maxArgs", chat.DefaultMaxArgs)
	v.SetDefault("chat.sendDelimiter", true)
	v.SetDefault("chat.sendRetryDelay", chat.DefaultSendRetryDelay)
	v.SetDefault("chat.sendTimeout", chat.DefaultSendTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)

	v.SetDefault("metrics.addr", ":9105")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientID", "ubxctl")
	v.SetDefault("mqtt.prefix", "ubxctl")
}

// Validate checks values viper cannot check
func (c *Config) Validate() error {
	if c.Chat.Delimiter == "" {
		return errors.New("chat.delimiter must not be empty")
	}
	if c.Chat.BufferSize <= len(c.Chat.Delimiter) {
		return fmt.Errorf("chat.bufferSize %d is too small", c.Chat.BufferSize)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QoS)
	}
	if c.Reconnect.Initial <= 0 || c.Reconnect.Max < c.Reconnect.Initial {
		return fmt.Errorf("invalid reconnect backoff %s..%s", c.Reconnect.Initial, c.Reconnect.Max)
	}
	for i, p := range c.Unsolicited {
		if p.Match == "" {
			return fmt.Errorf("unsolicited[%d]: empty match", i)
		}
	}
	return nil
}

// Engine converts the chat section into an engine configuration
func (c ChatConfig) Engine() chat.Config {
	return chat.Config{
		ParserConfig: chat.ParserConfig{
			Delimiter:  []byte(c.Delimiter),
			Filter:     []byte(c.Filter),
			BufferSize: c.BufferSize,
			MaxArgs:    c.MaxArgs,
		},
		SendDelimiter:  c.SendDelimiter,
		SendRetryDelay: c.SendRetryDelay,
		SendTimeout:    c.SendTimeout,
	}
}

// Pattern converts the entry into a match pattern
func (p PatternConfig) Pattern(cb chat.MatchCallback) chat.MatchPattern {
	if p.Wildcard {
		return chat.NewWildcardMatch(p.Match, p.Separators, cb)
	}
	return chat.NewMatch(p.Match, p.Separators, cb)
}
