// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Thermoquad/ubxctl/internal/config"
	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

// newEngine creates a chat engine from the loaded configuration
func newEngine(opts ...chat.Option) (*chat.Engine, error) {
	return chat.New(appConfig.Chat.Engine(), append([]chat.Option{chat.WithLogger(logger)}, opts...)...)
}

// unsolicitedPatterns combines the configured patterns with literals given
// on the command line
func unsolicitedPatterns(extra []string, cb chat.MatchCallback) []chat.MatchPattern {
	var patterns []chat.MatchPattern
	for _, p := range appConfig.Unsolicited {
		patterns = append(patterns, p.Pattern(cb))
	}
	for _, literal := range extra {
		p := config.PatternConfig{Match: literal, Separators: ",*"}
		patterns = append(patterns, p.Pattern(cb))
	}
	return patterns
}

// loadReplay opens a capture written by --record
func loadReplay(path string, speed float64) (*pipe.Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := pipe.ReadRecords(f)
	if err != nil {
		return nil, err
	}
	return pipe.NewReplay(records, speed), nil
}

// startRecording creates a capture file and a tap writing to it
func startRecording(path string) (*pipe.Recorder, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	rec := pipe.NewRecorder(f)
	finish := func() error {
		if err := rec.Err(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return rec, finish, nil
}

// displayLine renders a received line with non-printable bytes escaped
func displayLine(line []byte) string {
	q := strconv.QuoteToASCII(string(line))
	return q[1 : len(q)-1]
}

// printMatch is the match callback of the console commands
func printMatch(m chat.Match) {
	fmt.Printf("[%s] %-11s %s\n", time.Now().Format("15:04:05.000"), m.Role, displayLine(m.Line))
}
