// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/ubxctl/pkg/chat"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// engineEvent is an observer notification queued for the TUI
type engineEvent struct {
	at       time.Time
	overflow bool
	match    *chat.Match
	line     string
	script   string
	result   chat.Result
	elapsed  time.Duration
}

// Messages
type tickMsg time.Time
type connStatusMsg connStatus
type eventBatchMsg struct {
	events  []engineEvent
	lines   uint64
	dropped uint64
}

// eventBatcher collects engine notifications and hands them to the TUI at a
// fixed rate
type eventBatcher struct {
	events  chan engineEvent
	lines   atomic.Uint64
	dropped atomic.Uint64
}

func newEventBatcher() *eventBatcher {
	return &eventBatcher{events: make(chan engineEvent, 100)}
}

func (b *eventBatcher) push(e engineEvent) {
	e.at = time.Now()
	select {
	case b.events <- e:
	default:
		b.dropped.Add(1)
	}
}

func (b *eventBatcher) LineReceived([]byte) { b.lines.Add(1) }
func (b *eventBatcher) BufferOverflow()     { b.push(engineEvent{overflow: true}) }

func (b *eventBatcher) Matched(m chat.Match) {
	b.push(engineEvent{match: &chat.Match{Role: m.Role, Pattern: m.Pattern}, line: displayLine(m.Line)})
}

func (b *eventBatcher) StepFinished(string, int, time.Duration) {}

func (b *eventBatcher) ScriptFinished(script string, result chat.Result, d time.Duration) {
	b.push(engineEvent{script: script, result: result, elapsed: d})
}

// run sends batches every 50ms until ctx is done
func (b *eventBatcher) run(ctx context.Context, send func(tea.Msg)) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var lastLines, lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch := eventBatchMsg{lines: b.lines.Load(), dropped: b.dropped.Load()}
	drainLoop:
		for {
			select {
			case e := <-b.events:
				batch.events = append(batch.events, e)
			default:
				break drainLoop
			}
		}

		if len(batch.events) > 0 || batch.lines != lastLines || batch.dropped != lastDropped {
			lastLines, lastDropped = batch.lines, batch.dropped
			send(batch)
		}
	}
}

// formatDuration formats a duration to a human-friendly string
func formatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := seconds / u.size
		seconds %= u.size
		if n == 1 {
			parts = append(parts, "1 "+u.name)
		} else if n > 1 {
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// TUI model
type monitorModel struct {
	patterns      int
	connInfo      string
	connected     bool
	connectedAt   time.Time
	now           time.Time
	lines         uint64
	dropped       uint64
	matches       int
	overflows     int
	commands      int
	eventLog      []logEntry
	maxLogEntries int
	input         textinput.Model
	send          func(text string) error
	width         int
	height        int
	quitting      bool
}

func newMonitorModel(patterns int, send func(text string) error) monitorModel {
	ti := textinput.New()
	ti.Placeholder = `request, e.g. \xB5\x62\x06\x00\x00\x00\x06\x18`
	ti.Prompt = "> "
	ti.CharLimit = 512
	ti.Focus()

	return monitorModel{
		patterns:      patterns,
		now:           time.Now(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		input:         ti,
		send:          send,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), textinput.Blink)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case connStatusMsg:
		m.applyStatus(connStatus(msg))
		return m, nil

	case eventBatchMsg:
		m.lines = msg.lines
		m.dropped = msg.dropped
		for _, e := range msg.events {
			m.applyEvent(e)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the command line
func (m *monitorModel) submit() {
	text := m.input.Value()
	if text == "" {
		return
	}
	m.input.Reset()
	if !m.connected {
		m.addLogEntry("Not connected, request dropped", true)
		return
	}
	if err := m.send(text); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
		return
	}
	m.commands++
	m.addLogEntry("> "+text, false)
}

func (m *monitorModel) applyStatus(s connStatus) {
	switch {
	case s.connected:
		m.connected = true
		m.connInfo = s.info
		m.connectedAt = time.Now()
		m.addLogEntry("Connected to "+s.info, false)
	case s.retry > 0:
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Connect failed: %v (retrying in %v)", s.err, s.retry), true)
	default:
		m.connected = false
		m.addLogEntry(fmt.Sprintf("Disconnected from %s: %v", s.info, s.err), true)
	}
}

func (m *monitorModel) applyEvent(e engineEvent) {
	switch {
	case e.overflow:
		m.overflows++
		m.addLogEntryAt(e.at, "Line buffer overflow", true)
	case e.match != nil:
		m.matches++
		m.addLogEntryAt(e.at, fmt.Sprintf("%s %s", e.match.Role, e.line), e.match.Role == chat.RoleAbort)
	case e.result != chat.ResultSuccess:
		m.addLogEntryAt(e.at, fmt.Sprintf("%s: %s after %v", e.script, e.result, e.elapsed.Round(time.Millisecond)), true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *monitorModel) addLogEntryAt(at time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: at,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("UBXCTL - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Patterns: %d | Enter sends a request | Press Esc to quit", m.patterns)))
	s.WriteString("\n\n")

	// Connection status
	if m.connected {
		s.WriteString(statsValueStyle.Render("✓ Connected to " + m.connInfo))
		s.WriteString(headerStyle.Render(" for " + formatDuration(m.now.Sub(m.connectedAt))))
	} else {
		s.WriteString(warningStyle.Render("⏳ Waiting for connection..."))
	}
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Lines:"), statsValueStyle.Render(fmt.Sprintf("%d", m.lines)),
		statsLabelStyle.Render("Matches:"), statsValueStyle.Render(fmt.Sprintf("%d", m.matches)),
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.commands)),
	))
	if m.overflows > 0 || m.dropped > 0 {
		statsContent.WriteString(fmt.Sprintf("\n%s %s   %s %s",
			statsLabelStyle.Render("Overflows:"), errorStyle.Render(fmt.Sprintf("%d", m.overflows)),
			statsLabelStyle.Render("Dropped events:"), warningStyle.Render(fmt.Sprintf("%d", m.dropped)),
		))
	}
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := max(m.height-14, 5)

	logContent := strings.Builder{}
	startIdx := max(len(m.eventLog)-logHeight, 0)

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(logContent.String()))
	s.WriteString("\n")
	s.WriteString(m.input.View())

	return s.String()
}
