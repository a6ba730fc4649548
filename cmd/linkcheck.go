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

var linkCheckCmd = &cobra.Command{
	Use:   "linkcheck",
	Short: "Test raw connection stability",
	Long: `Connect to the receiver without sending anything and report the traffic
received until the duration elapses or the connection fails.

Useful for debugging serial adapters and WebSocket bridges that drop the
link under load.

Exit codes:
  0 - Test completed normally
  1 - Connection failed during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration time.Duration

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().DurationVar(&linkCheckDuration, "duration", 30*time.Second, "Test duration")
}

// linkTally counts received traffic
type linkTally struct {
	chunks  int
	bytes   int
	frames  int
	errors  int
	decoder *ubx.Decoder
}

func (l *linkTally) add(data []byte) {
	l.chunks++
	l.bytes += len(data)
	l.decoder.Decode(data, func(_ ubx.Frame, err error) {
		if err != nil {
			l.errors++
			return
		}
		l.frames++
	})
}

func (l *linkTally) print(elapsed time.Duration) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", l.chunks)
	fmt.Printf("Bytes received: %d\n", l.bytes)
	fmt.Printf("UBX frames: %d (%d errors)\n", l.frames, l.errors)
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %v\n\n", linkCheckDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	start := time.Now()
	deadline := time.After(linkCheckDuration)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	tally := &linkTally{decoder: ubx.NewDecoder()}

	fmt.Printf("Listening for data...\n\n")

	for {
		select {
		case data := <-readChan:
			tally.add(data)
			fmt.Printf("[%s] Received %d bytes: %x\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			tally.print(time.Since(start))
			fmt.Printf("Result: FAILED (connection error)\n")
			os.Exit(1)

		case <-heartbeat.C:
			remaining := (linkCheckDuration - time.Since(start)).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)

		case <-deadline:
			tally.print(time.Since(start))
			fmt.Printf("Result: PASSED (connection stable)\n")
			return nil
		}
	}
}
