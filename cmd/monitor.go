// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/internal/forward"
	"github.com/Thermoquad/ubxctl/internal/metrics"
	"github.com/Thermoquad/ubxctl/internal/scriptfile"
	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

var (
	monitorTUI    bool
	monitorMatch  []string
	monitorRecord string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch unsolicited lines with reconnection, metrics and MQTT forwarding",
	Long: `Keep a connection to the receiver open and report every line that matches
an unsolicited pattern (from the config file or --match).

Features:
  - Automatic reconnection with exponential backoff
  - Prometheus metrics when metrics.enable is set
  - MQTT forwarding of matched lines when mqtt.enable is set
  - Interactive TUI (--tui) with a command line for sending requests

Requests typed in the TUI accept Go escapes, e.g. \xB5\x62 or \r.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Interactive terminal UI")
	monitorCmd.Flags().StringSliceVar(&monitorMatch, "match", nil, "Additional unsolicited line prefixes")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Record the session to a capture file")
}

// backoff produces exponentially growing reconnect delays
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max}
}

// Next returns the delay before the next attempt
func (b *backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.initial
	} else {
		b.current *= 2
	}
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// Reset starts over from the initial delay
func (b *backoff) Reset() {
	b.current = 0
}

// connStatus reports connection changes to the front end
type connStatus struct {
	connected bool
	info      string
	err       error
	retry     time.Duration
}

// connectionManager keeps a stream attached to the engine, replacing it
// whenever it fails
type connectionManager struct {
	engine  *chat.Engine
	open    func() (*pipe.Stream, error)
	backoff *backoff
	log     *zap.Logger
	status  func(connStatus)
}

// run blocks until ctx is done
func (cm *connectionManager) run(ctx context.Context) {
	for {
		stream := cm.connect(ctx)
		if stream == nil {
			return
		}

		select {
		case <-ctx.Done():
			cm.engine.Release()
			stream.Close()
			return
		case <-stream.Failed():
		}

		cm.engine.Release()
		stream.Close()
		cm.log.Warn("connection lost", zap.String("pipe", stream.String()))
		cm.status(connStatus{info: stream.String(), err: errors.New("connection lost")})
	}
}

// connect retries until a stream is open and attached, or ctx is done
func (cm *connectionManager) connect(ctx context.Context) *pipe.Stream {
	cm.backoff.Reset()
	for {
		stream, err := cm.attach()
		if err == nil {
			cm.log.Info("connected", zap.String("pipe", stream.String()))
			cm.status(connStatus{connected: true, info: stream.String()})
			return stream
		}

		delay := cm.backoff.Next()
		cm.log.Warn("connect failed", zap.Error(err), zap.Duration("retry", delay))
		cm.status(connStatus{err: err, retry: delay})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (cm *connectionManager) attach() (*pipe.Stream, error) {
	stream, err := cm.open()
	if err != nil {
		return nil, err
	}
	if err := stream.Open(); err != nil {
		return nil, err
	}
	if err := cm.engine.Attach(stream); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// sendRequest runs a one-step script sending text. The result reaches the
// front end through the observer.
func sendRequest(engine *chat.Engine, text string) error {
	req, err := scriptfile.Unescape(text)
	if err != nil {
		return err
	}
	return engine.RunAsync(&chat.Script{
		Name:     "command",
		Steps:    []chat.Step{chat.Send(req)},
		Callback: func(chat.Result) {},
	})
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reg := metrics.NewRegistry()
	observers := chat.Observers{metrics.NewObserver(reg)}

	if appConfig.Metrics.Enable {
		go func() {
			if err := metrics.Serve(ctx, appConfig.Metrics.Addr, appConfig.Metrics.Path, reg, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var onMatch chat.MatchCallback
	if appConfig.MQTT.Enable {
		client, err := forward.Connect(appConfig.MQTT, logger)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		onMatch = forward.New(client, appConfig.MQTT, logger).Handle
	}

	patterns := unsolicitedPatterns(monitorMatch, onMatch)
	if len(patterns) == 0 {
		return errors.New("no unsolicited patterns: set unsolicited in the config file or use --match")
	}

	taps := pipe.MultiTap{metrics.NewTrafficTap(reg)}
	if monitorRecord != "" {
		rec, finish, err := startRecording(monitorRecord)
		if err != nil {
			return err
		}
		defer func() {
			if err := finish(); err != nil {
				fmt.Fprintf(os.Stderr, "Recording failed: %v\n", err)
			}
		}()
		taps = append(taps, rec)
	}
	streamOpts := []pipe.Option{pipe.WithTap(taps)}

	cm := &connectionManager{
		open:    func() (*pipe.Stream, error) { return NewStream(streamOpts...) },
		backoff: newBackoff(appConfig.Reconnect.Initial, appConfig.Reconnect.Max),
		log:     logger,
	}

	if monitorTUI {
		return runMonitorTUI(ctx, cm, observers, patterns)
	}

	observers = append(observers, consoleObserver{})
	engine, err := newEngine(chat.WithObserver(observers), chat.WithUnsolicited(patterns...))
	if err != nil {
		return err
	}
	defer engine.Close()

	cm.engine = engine
	cm.status = func(s connStatus) {
		switch {
		case s.connected:
			fmt.Printf("Connected: %s\n", s.info)
		case s.retry > 0:
			fmt.Printf("Connect failed: %v (retrying in %v)\n", s.err, s.retry)
		default:
			fmt.Printf("Disconnected: %s: %v\n", s.info, s.err)
		}
	}

	fmt.Printf("ubxctl - Monitoring %d patterns (Ctrl+C to stop)\n", len(patterns))
	cm.run(ctx)
	return nil
}

func runMonitorTUI(ctx context.Context, cm *connectionManager, observers chat.Observers, patterns []chat.MatchPattern) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := newEventBatcher()
	observers = append(observers, events)
	engine, err := newEngine(chat.WithObserver(observers), chat.WithUnsolicited(patterns...))
	if err != nil {
		return err
	}
	defer engine.Close()

	m := newMonitorModel(len(patterns), func(text string) error {
		return sendRequest(engine, text)
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	cm.engine = engine
	cm.status = func(s connStatus) { p.Send(connStatusMsg(s)) }

	go events.run(ctx, p.Send)
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.run(ctx)
	}()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// consoleObserver prints engine events for the non-interactive monitor
type consoleObserver struct{}

func (consoleObserver) LineReceived([]byte) {}

func (consoleObserver) BufferOverflow() {
	fmt.Println("[WARN] line buffer overflow")
}

func (consoleObserver) Matched(m chat.Match) {
	printMatch(m)
}

func (consoleObserver) StepFinished(string, int, time.Duration) {}

func (consoleObserver) ScriptFinished(script string, result chat.Result, d time.Duration) {
	if result != chat.ResultSuccess {
		fmt.Printf("[WARN] %s: %s after %v\n", script, result, d.Round(time.Millisecond))
	}
}
