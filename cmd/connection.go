// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

// GetPassword retrieves password from config, environment or prompts user
func GetPassword() (string, error) {
	// Config file or UBXCTL_CONNECTION_PASSWORD
	if appConfig != nil && appConfig.Connection.Password != "" {
		return appConfig.Connection.Password, nil
	}
	if pw := os.Getenv("UBXCTL_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// connectionPassword asks for the WebSocket password when a username is set
func connectionPassword() (string, error) {
	if appConfig.Connection.Username == "" {
		return "", nil
	}
	return GetPassword()
}

// OpenConnection opens a blocking connection for the frame level commands
func OpenConnection() (io.ReadWriteCloser, string, error) {
	c := appConfig.Connection

	if c.URL != "" {
		// WebSocket mode
		password, err := connectionPassword()
		if err != nil {
			return nil, "", err
		}
		conn, err := pipe.OpenWebSocket(c.URL, c.Username, password, c.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.Port != "" {
		// Serial mode
		conn, err := pipe.OpenSerial(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", errNoConnection
}

var errNoConnection = errors.New("either --port or --url must be specified")

// NewStream creates a chat pipe for the configured connection. The caller
// opens it.
func NewStream(opts ...pipe.Option) (*pipe.Stream, error) {
	c := appConfig.Connection
	opts = append([]pipe.Option{pipe.WithLogger(logger)}, opts...)

	switch {
	case c.URL != "":
		password, err := connectionPassword()
		if err != nil {
			return nil, err
		}
		return pipe.NewWebSocket(c.URL, c.Username, password, c.NoSSLVerify, opts...), nil
	case c.Port != "":
		return pipe.NewSerial(c.Port, c.Baud, opts...), nil
	default:
		return nil, errNoConnection
	}
}
