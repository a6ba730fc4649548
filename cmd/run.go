// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ubxctl/internal/scriptfile"
	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

var (
	runReplay      string
	runReplaySpeed float64
	runRecord      string
	runUnsolicited []string
)

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>",
	Short: "Run a request/response script against the receiver",
	Long: `Execute a YAML chat script: each step sends a request (text, hex, a raw
frame or a UBX builder) and waits for a response line, a delay, or nothing.

Response, abort and unsolicited matches are printed as they arrive. The
command fails when the script is aborted, times out or the transport fails.

--record captures the session to a file; --replay runs the script against a
capture instead of a device, holding each recorded answer back until the
request before it has been sent.

Exit codes:
  0 - Script completed
  1 - Script aborted, timed out or failed`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runReplay, "replay", "", "Replay a recorded capture instead of connecting")
	runCmd.Flags().Float64Var(&runReplaySpeed, "speed", 0, "Replay speed factor (0 = no delays)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Record the session to a capture file")
	runCmd.Flags().StringSliceVar(&runUnsolicited, "match", nil, "Additional unsolicited line prefixes to print")
}

func runScript(cmd *cobra.Command, args []string) error {
	script, err := scriptfile.Load(args[0], scriptfile.Options{OnMatch: printMatch})
	if err != nil {
		return err
	}

	var p chat.Pipe
	connInfo := ""
	if runReplay != "" {
		if runRecord != "" {
			return errors.New("--record cannot be used with --replay")
		}
		replay, err := loadReplay(runReplay, runReplaySpeed)
		if err != nil {
			return err
		}
		p, connInfo = replay, "Replay: "+runReplay
	} else {
		var opts []pipe.Option
		if runRecord != "" {
			rec, finish, err := startRecording(runRecord)
			if err != nil {
				return err
			}
			defer func() {
				if err := finish(); err != nil {
					fmt.Fprintf(os.Stderr, "Recording failed: %v\n", err)
				}
			}()
			opts = append(opts, pipe.WithTap(rec))
		}
		stream, err := NewStream(opts...)
		if err != nil {
			return err
		}
		p, connInfo = stream, stream.String()
	}

	if err := p.Open(); err != nil {
		return err
	}
	defer p.Close()

	engine, err := newEngine(chat.WithUnsolicited(unsolicitedPatterns(runUnsolicited, printMatch)...))
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Attach(p); err != nil {
		return err
	}
	defer engine.Release()

	fmt.Printf("ubxctl - Script %s\n", script.Name)
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Steps: %d\n\n", len(script.Steps))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	err = engine.Run(ctx, script)
	elapsed := time.Since(start).Round(time.Millisecond)

	switch {
	case err == nil:
		fmt.Printf("\nCompleted in %v\n", elapsed)
		return nil
	case ctx.Err() != nil:
		fmt.Printf("\nInterrupted after %v\n", elapsed)
	default:
		fmt.Printf("\nFAILED after %v: %v\n", elapsed, err)
	}
	// Returned rather than exiting so the pipe and capture are closed
	return fmt.Errorf("script %s: %w", script.Name, err)
}
