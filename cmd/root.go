// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/internal/config"
	"github.com/Thermoquad/ubxctl/internal/logging"
)

var (
	configFile string

	// Loaded by the root command before any subcommand runs
	v         = config.New()
	appConfig *config.Config
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ubxctl",
	Short: "u-blox receiver configuration and monitoring tool",
	Long: `ubxctl - A CLI tool for configuring and monitoring u-blox GNSS receivers.

Builds and decodes UBX frames, runs request/response scripts against a
receiver and watches its output for unsolicited messages.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from ubxctl.yaml (or --config) and UBXCTL_* environment
variables; flags take precedence.

For WebSocket authentication, the password is read from the UBXCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "0.3.0",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		appConfig = cfg

		log, err := logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./ubxctl.yaml)")

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	// Flags only override the file and environment when set
	for key, name := range map[string]string{
		"connection.port":        "port",
		"connection.baud":        "baud",
		"connection.url":         "url",
		"connection.username":    "username",
		"connection.noSSLVerify": "no-ssl-verify",
		"logging.level":          "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
