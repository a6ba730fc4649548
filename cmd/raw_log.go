// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

var (
	rawLogNMEA     bool
	rawLogValidate bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display UBX frames in human-readable format",
	Long: `Continuously decode and display UBX frames as they arrive.

Each frame is shown with timestamp, message type and decoded payload. With
--nmea, NMEA sentences interleaved with the binary output are printed too.
Frame statistics are printed on exit.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogNMEA, "nmea", false, "Also print NMEA sentences")
	rawLogCmd.Flags().BoolVar(&rawLogValidate, "validate", true, "Report frames with malformed payloads")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Printf("ubxctl - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	log := newFrameLog(os.Stdout, rawLogNMEA, rawLogValidate)
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			log.feed(buf[:n], time.Now())
		}
		if err != nil {
			fmt.Printf("\n%s", log.stats)
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if ctx.Err() != nil || errors.Is(err, pipe.ErrConnectionClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

// frameLog prints decoded frames and, optionally, NMEA sentences from a
// mixed stream
type frameLog struct {
	out      io.Writer
	decoder  *ubx.Decoder
	lines    *chat.Parser
	stats    *ubx.Statistics
	validate bool
	at       time.Time
}

func newFrameLog(out io.Writer, nmea, validate bool) *frameLog {
	l := &frameLog{
		out:      out,
		decoder:  ubx.NewDecoder(),
		stats:    ubx.NewStatistics(),
		validate: validate,
	}
	if nmea {
		p, err := chat.NewParser(chat.ParserConfig{Delimiter: []byte("\r\n")})
		if err != nil {
			panic(err)
		}
		l.lines = p
	}
	return l
}

func (l *frameLog) feed(data []byte, at time.Time) {
	l.at = at
	l.decoder.Decode(data, l.frame)
	if l.lines != nil {
		if err := l.lines.Feed(data, l.sentence); err != nil {
			logger.Debug("dropped text line", zap.Error(err))
		}
	}
}

func (l *frameLog) frame(f ubx.Frame, err error) {
	if err != nil {
		l.stats.Update(nil, err, nil)
		fmt.Fprintf(l.out, "[ERROR] %v\n", err)
		return
	}

	var problems []ubx.ValidationError
	if l.validate {
		problems = ubx.ValidateFrame(f)
	}
	l.stats.Update(f, nil, problems)
	fmt.Fprint(l.out, ubx.FormatFrame(f, l.at))
	for _, p := range problems {
		fmt.Fprintf(l.out, "  [INVALID] %s\n", p.Message)
	}
}

// sentence prints lines that look like NMEA; binary frames may contain
// delimiters too
func (l *frameLog) sentence(line []byte) {
	if i := bytes.IndexByte(line, '$'); i >= 0 {
		fmt.Fprintf(l.out, "[%s] %s\n", l.at.Format("15:04:05.000"), line[i:])
	}
}
