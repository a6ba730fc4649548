// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pipe

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// NewSerial returns a stream over a serial port, 8N1.
func NewSerial(portName string, baudRate int, opts ...Option) *Stream {
	dial := func() (io.ReadWriteCloser, error) {
		return OpenSerial(portName, baudRate)
	}
	return NewStream(fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), dial, opts...)
}

// OpenSerial opens a serial port connection
func OpenSerial(portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return port, nil
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
