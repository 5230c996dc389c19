// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Thermoquad/framescan/pkg/logging"
	"github.com/Thermoquad/framescan/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// redirectLogs moves log output off the terminal while a TUI owns it: into
// --log-file when set, nowhere otherwise. The returned func restores the
// previous logger and closes the file.
func redirectLogs() (func(), error) {
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return nil, err
	}
	prev := logging.Logger()
	if logFile == "" {
		logging.SetLogger(logging.New(io.Discard, format))
		return func() { logging.SetLogger(prev) }, nil
	}
	f, err := tea.LogToFile(logFile, "framescan ")
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.SetLogger(logging.New(f, format))
	return func() {
		logging.SetLogger(prev)
		f.Close()
	}, nil
}

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// eventLog keeps the most recent entries
type eventLog struct {
	entries []logEntry
	max     int
}

func newEventLog(limit int) eventLog {
	return eventLog{max: limit}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// last returns up to n of the newest entries
func (l *eventLog) last(n int) []logEntry {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	return l.entries[len(l.entries)-n:]
}

// Messages
type tickMsg time.Time

type eventBatchMsg struct {
	events []session.Event
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatElapsed formats a duration as a human-friendly string
func formatElapsed(d time.Duration) string {
	units := []struct {
		name string
		size time.Duration
	}{
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
		{"second", time.Second},
	}

	var parts []string
	for _, u := range units {
		n := d / u.size
		d -= n * u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// Styles shared by the TUIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

// renderEventLog renders the newest height entries of log
func renderEventLog(log *eventLog, height int) string {
	var s strings.Builder
	entries := log.last(height)
	if len(entries) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		return s.String()
	}
	for _, entry := range entries {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				errorStyle.Render("x "+entry.message)))
		} else {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				warningStyle.Render("i "+entry.message)))
		}
	}
	return s.String()
}

// TUI model
type statsModel struct {
	connInfo       string
	showAll        bool
	stats          *session.Statistics
	snap           session.Counters
	log            eventLog
	synchronized   bool
	invalidBytes   int
	width          int
	height         int
	quitting       bool
	connectionLost bool
	lastEvent      *session.Event
}

func initialStatsModel(connInfo string, stats *session.Statistics, showAll bool) statsModel {
	return statsModel{
		connInfo: connInfo,
		showAll:  showAll,
		stats:    stats,
		snap:     stats.Snapshot(),
		log:      newEventLog(100),
		width:    80,
		height:   24,
	}
}

func (m statsModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.snap = m.stats.Snapshot()
			m.log.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.snap = m.stats.Snapshot()
		return m, tickCmd()

	case eventBatchMsg:
		for _, e := range msg.events {
			m.processEvent(e)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.log.add("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.synchronized = false
		m.log.add("Reconnected", false)
	}

	return m, nil
}

// processEvent logs a match. Garbage before the first match only counts as
// synchronization.
func (m *statsModel) processEvent(e session.Event) {
	if !m.synchronized {
		m.synchronized = true
		m.invalidBytes = e.Discarded
		if e.Discarded > 0 {
			m.log.add(fmt.Sprintf("Synchronized after skipping %d invalid bytes", e.Discarded), false)
		} else {
			m.log.add("Synchronized", false)
		}
	} else if e.Discarded > 0 {
		m.log.add(fmt.Sprintf("Skipped %d bytes before %s", e.Discarded, e.Alternative), true)
	}

	if e.Oversize > 0 {
		m.log.add(fmt.Sprintf("%s: %d chunk(s) too large for target", e.Alternative, e.Oversize), true)
	} else if m.showAll {
		m.log.add(fmt.Sprintf("%s (%d bytes)", e.Alternative, e.Consumed), false)
	}

	m.lastEvent = &e
}

func (m statsModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("FRAMESCAN - SCAN STATISTICS"))
	s.WriteString("\n")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	mode := "Errors only"
	if m.showAll {
		mode = "All matches"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' to reset, 'q' to quit", connStatus, mode)))
	s.WriteString("\n\n")

	// Sync status
	if !m.synchronized {
		s.WriteString(warningStyle.Render("Waiting for first match..."))
	} else {
		s.WriteString(statsValueStyle.Render("Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.renderStatistics()))
	s.WriteString("\n\n")

	// Latest match (only shown once something matched)
	if m.lastEvent != nil {
		s.WriteString(statsLabelStyle.Render("Latest Match:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderEventDetail(*m.lastEvent)))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(&m.log, logHeight)))

	return s.String()
}

func (m statsModel) renderStatistics() string {
	c := m.snap
	var discardPercent float64
	if c.BytesFed > 0 {
		discardPercent = float64(c.Discarded) * 100.0 / float64(c.BytesFed)
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", c.BytesFed)),
		statsLabelStyle.Render("Matches:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Matches)),
		statsLabelStyle.Render("Discarded:"), func() string {
			text := fmt.Sprintf("%d (%.1f%%)", c.Discarded, discardPercent)
			if c.Discarded > 0 {
				return errorStyle.Render(text)
			}
			return statsValueStyle.Render(text)
		}(),
	))

	if c.Oversize > 0 || c.BackPressure > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Oversize Chunks:"), errorStyle.Render(fmt.Sprintf("%d", c.Oversize)),
			statsLabelStyle.Render("Queue Full:"), warningStyle.Render(fmt.Sprintf("%d", c.BackPressure)),
		))
	}

	if len(c.PerAlternative) > 0 {
		names := slices.Sorted(maps.Keys(c.PerAlternative))
		counts := make([]string, len(names))
		for i, name := range names {
			counts[i] = fmt.Sprintf("%s %d", headerStyle.Render(name+":"), c.PerAlternative[name])
		}
		content.WriteString(strings.Join(counts, "   "))
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Match Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", c.MatchRate)),
		statsLabelStyle.Render("Discard Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f B/s", c.DiscardRate)),
		statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatElapsed(time.Since(c.StartTime))),
	))
	return content.String()
}

// renderEventDetail renders the fields and chunk sizes of one match
func renderEventDetail(e session.Event) string {
	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		statsLabelStyle.Render("Alternative:"), statsValueStyle.Render(e.Alternative),
		statsLabelStyle.Render("At:"), e.Time.Format("15:04:05.000"),
	))

	for _, name := range slices.Sorted(maps.Keys(e.Fields)) {
		content.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render(name+":"),
			statsValueStyle.Render(fmt.Sprintf("%v", e.Fields[name]))))
	}

	for _, target := range slices.Sorted(maps.Keys(e.Chunks)) {
		for _, record := range e.Chunks[target] {
			content.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render(target+":"),
				statsValueStyle.Render(fmt.Sprintf("%d bytes %q", len(record), abbreviate(record, 32)))))
		}
	}
	return strings.TrimRight(content.String(), "\n")
}

// abbreviate cuts b to n bytes, marking the cut
func abbreviate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
