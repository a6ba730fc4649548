// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

var (
	frameWaitTimeout time.Duration
)

var frameWaitCmd = &cobra.Command{
	Use:   "frame_wait",
	Short: "Test connection by waiting for a valid UBX frame",
	Long: `Wait for a valid UBX frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
UBX frame. It ignores NMEA output and other bytes and waits for a complete,
valid frame (passing the checksum).

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Receivers with UBX output disabled on the port stay silent here; enable it
with a CFG-PRT script first.`,
	RunE: runFrameWait,
}

func init() {
	rootCmd.AddCommand(frameWaitCmd)
	frameWaitCmd.Flags().DurationVar(&frameWaitTimeout, "timeout", 10*time.Second, "How long to wait for a frame")
}

func runFrameWait(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ubxctl - Frame Wait\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s\n", frameWaitTimeout)
	fmt.Printf("Waiting for valid UBX frame...\n\n")

	decoder := ubx.NewDecoder()
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan ubx.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		skipped := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				// Corrupt frames are skipped like any other noise
				f, _ := decoder.DecodeByte(buf[i])
				if f == nil {
					skipped = decoder.Skipped()
					continue
				}
				if skipped > 0 {
					fmt.Printf("(skipped %d bytes before sync)\n", skipped)
				}
				frameChan <- f
				return
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X 0x%02X)\n", ubx.FormatMessageType(f.Class(), f.ID()), f.Class(), f.ID())
		fmt.Printf("  Length: %d bytes\n", f.PayloadLen())
		a, b := f.Checksum()
		fmt.Printf("  Checksum: 0x%02X%02X\n", a, b)
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(frameWaitTimeout):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %s\n", frameWaitTimeout)
		os.Exit(1)
	}

	return nil
}
