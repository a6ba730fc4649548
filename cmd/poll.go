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
	pollTimeout time.Duration
	pollCount   int
	pollPortID  uint8
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Test the link by polling the receiver's port configuration",
	Long: `Send CFG-PRT poll requests and wait for the receiver's answer.

The receiver answers a poll with the current CFG-PRT settings of the port,
followed by an ACK-ACK. This verifies that UBX input and output both work.

This is useful for verifying:
  - The connection is established
  - The baud rate matches the receiver
  - UBX protocol is enabled in both directions on the port

Exit codes:
  0 - All polls answered
  1 - One or more polls failed/timed out
  2 - Connection error`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().DurationVar(&pollTimeout, "timeout", 2*time.Second, "Timeout for each poll")
	pollCmd.Flags().IntVar(&pollCount, "count", 3, "Number of polls to send")
	pollCmd.Flags().Uint8Var(&pollPortID, "port-id", ubx.PortUART1, "Port to poll (0=DDC 1=UART1 2=UART2 3=USB 4=SPI)")
}

func runPoll(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("ubxctl - Port Poll\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %s per poll\n", pollTimeout)
	fmt.Printf("Count: %d polls\n\n", pollCount)

	// A single reader feeds every poll; answers to a timed out poll are
	// drained by the next one
	frames := make(chan ubx.Frame, 16)
	errChan := make(chan error, 1)
	go func() {
		decoder := ubx.NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			decoder.Decode(buf[:n], func(f ubx.Frame, decodeErr error) {
				// Ignore decode errors
				if decodeErr == nil {
					frames <- f
				}
			})
		}
	}()

	poll := ubx.DefaultCfgPrtPoll()
	poll.PortID = pollPortID
	request := make([]byte, ubx.FrameSize(ubx.CfgPrtPollPayloadSize))
	if _, err := ubx.BuildPortPoll(request, poll); err != nil {
		return err
	}

	successCount := 0
	failCount := 0

	for i := 1; i <= pollCount; i++ {
		fmt.Printf("Poll %d/%d: ", i, pollCount)

		startTime := time.Now()
		if _, err := conn.Write(request); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		prt, err := waitPortAnswer(frames, errChan, pollPortID, pollTimeout)
		if err != nil {
			fmt.Printf("%v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			fmt.Printf("port %d at %d baud, in=0x%04X out=0x%04X, rtt=%v\n",
				prt.PortID, prt.Baudrate, prt.InProtoMask, prt.OutProtoMask, rtt.Round(time.Millisecond))
			successCount++
		}

		// Small delay between polls
		if i < pollCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Poll statistics ---\n")
	fmt.Printf("%d polls sent, %d answers received, %.0f%% loss\n",
		pollCount, successCount, float64(failCount)/float64(pollCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// waitPortAnswer waits for the CFG-PRT answer for portID. A NAK for CFG-PRT
// fails the poll.
func waitPortAnswer(frames <-chan ubx.Frame, errChan <-chan error, portID uint8, timeout time.Duration) (ubx.CfgPrtSet, error) {
	deadline := time.After(timeout)
	for {
		select {
		case f := <-frames:
			if f.Is(ubx.ClassCFG, ubx.IDCfgPrt) && f.PayloadLen() == ubx.CfgPrtSetPayloadSize {
				prt, err := ubx.ParseCfgPrtSet(f.Payload())
				if err == nil && prt.PortID == portID {
					return prt, nil
				}
				continue
			}
			if ack, err := ubx.ParseAck(f); err == nil && ack.Nak && ack.Class == ubx.ClassCFG && ack.ID == ubx.IDCfgPrt {
				return ubx.CfgPrtSet{}, fmt.Errorf("NAK (port %d not supported)", portID)
			}
			// Ignore other frames (navigation output, etc.)

		case err := <-errChan:
			return ubx.CfgPrtSet{}, fmt.Errorf("READ FAILED: %v", err)

		case <-deadline:
			return ubx.CfgPrtSet{}, fmt.Errorf("TIMEOUT (no answer in %s)", timeout)
		}
	}
}
