// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/Thermoquad/framescan/pkg/streams"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusAltList = iota
	focusPayload
	focusCount
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// altItem is one profile alternative in the list
type altItem struct {
	name    string
	format  string
	matches uint64
	last    time.Time
}

// Implement list.Item interface
func (a altItem) Title() string { return a.name }
func (a altItem) Description() string {
	if a.last.IsZero() {
		return fmt.Sprintf("%d matches", a.matches)
	}
	return fmt.Sprintf("%d matches, last %s", a.matches, a.last.Format("15:04:05"))
}
func (a altItem) FilterValue() string { return a.name }

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	// Connection manager (for sending chunks and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Alternatives of the active profile
	alts    []altItem
	altList list.Model

	// Monitoring
	stats      *session.Statistics
	snap       session.Counters
	log        eventLog
	lastEvents map[string]session.Event

	// Sending
	payloadInput textinput.Model
	focusedField int
	sent         int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connMgr *connectionManager, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "payload"
	ti.CharLimit = streams.MaxRecordLength
	ti.Width = 40

	alts := make([]altItem, len(connMgr.profile.Alternatives))
	for i, alt := range connMgr.profile.Alternatives {
		alts[i] = altItem{name: alt.Name, format: describeFormat(alt.Format)}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	altList := list.New([]list.Item{}, delegate, 30, 10)
	altList.Title = "Alternatives"
	altList.SetShowStatusBar(false)
	altList.SetShowHelp(false)
	altList.SetFilteringEnabled(false)

	m := monitorModel{
		connMgr:      connMgr,
		connInfo:     connInfo,
		alts:         alts,
		altList:      altList,
		stats:        connMgr.stats,
		snap:         connMgr.stats.Snapshot(),
		log:          newEventLog(100),
		lastEvents:   make(map[string]session.Event),
		payloadInput: ti,
		focusedField: focusAltList,
		width:        80,
		height:       24,
	}
	m.updateAltList()
	return m
}

// describeFormat renders a format in the profile's notation
func describeFormat(elements []profile.Element) string {
	parts := make([]string, 0, len(elements))
	for _, e := range elements {
		switch e.Kind() {
		case profile.KindToken, profile.KindHex:
			lit, _ := e.Literal()
			parts = append(parts, fmt.Sprintf("%q", lit))
		case profile.KindScalar:
			parts = append(parts, fmt.Sprintf("%s:%s", e.Scalar.Field, e.Scalar.Type))
		case profile.KindChunk:
			parts = append(parts, fmt.Sprintf("chunk(%s, %s)", e.Chunk.Target, describeFormat(e.Chunk.Separator)))
		}
	}
	return strings.Join(parts, " ")
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tickCmd()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.altList, _ = m.altList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tickMsg:
		m.snap = m.stats.Snapshot()
		for i := range m.alts {
			m.alts[i].matches = m.snap.PerAlternative[m.alts[i].name]
		}
		m.updateAltList()
		return m, tickCmd()

	case eventBatchMsg:
		for _, e := range msg.events {
			m.processEvent(e)
		}
		m.updateAltList()

	case connectionLostMsg:
		m.connectionLost = true
		m.log.add("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.log.add("Reconnected", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusPayload {
		m.payloadInput, cmd = m.payloadInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusAltList {
		m.altList, cmd = m.altList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		// Typed into the payload when it has focus
		if m.focusedField == focusAltList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "enter":
		if m.focusedField == focusPayload {
			return m.sendPayload()
		}
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusPayload:
		m.payloadInput, cmd = m.payloadInput.Update(msg)
	case focusAltList:
		m.altList, cmd = m.altList.Update(msg)
	}
	return m, cmd
}

func (m *monitorModel) cycleFocus(delta int) *monitorModel {
	m.focusedField = (m.focusedField + delta + focusCount) % focusCount

	if m.focusedField == focusPayload {
		m.payloadInput.Focus()
	} else {
		m.payloadInput.Blur()
	}
	return m
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("FRAMESCAN MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=send", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (alternatives) | right panel (detail and send)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusAltList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	altPanel := listStyle.Render(m.altList.View())

	detailStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusPayload {
		detailStyle = focusedBoxStyle.Width(rightWidth)
	}
	detailPanel := detailStyle.Render(m.renderDetailPanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, altPanel, " ", detailPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(renderEventLog(&m.log, 8)))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderDetailPanel() string {
	var s strings.Builder

	selected := m.selectedAlt()
	if selected == nil {
		s.WriteString(headerStyle.Render("No alternative selected"))
	} else {
		s.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Format:"), selected.format))
		if e, ok := m.lastEvents[selected.name]; ok {
			s.WriteString(renderEventDetail(e))
		} else {
			s.WriteString(headerStyle.Render("No match yet"))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Send %q<len>%q: ", frameToken, frameSeparator)))
	if m.focusedField == focusPayload {
		s.WriteString(m.payloadInput.View())
	} else {
		val := m.payloadInput.Value()
		if val == "" {
			val = m.payloadInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	return s.String()
}

func (m monitorModel) renderStatisticsBar() string {
	c := m.snap
	var discardPercent float64
	if c.BytesFed > 0 {
		discardPercent = float64(c.Discarded) * 100.0 / float64(c.BytesFed)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", c.BytesFed)),
		statsLabelStyle.Render("Matches:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Matches)),
		statsLabelStyle.Render("Discarded:"), func() string {
			if c.Discarded > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", discardPercent))
			}
			return statsValueStyle.Render("0.0%")
		}(),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", c.MatchRate)),
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", m.sent)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processEvent(e session.Event) {
	if e.Discarded > 0 {
		m.log.add(fmt.Sprintf("Skipped %d bytes before %s", e.Discarded, e.Alternative), true)
	}
	if e.Oversize > 0 {
		m.log.add(fmt.Sprintf("%s: %d chunk(s) too large for target", e.Alternative, e.Oversize), true)
	}

	m.lastEvents[e.Alternative] = e
	for i := range m.alts {
		if m.alts[i].name == e.Alternative {
			m.alts[i].matches++
			m.alts[i].last = e.Time
			break
		}
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *monitorModel) sendPayload() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.log.add("Cannot send chunk: connection lost", true)
		return m, nil
	}

	payload := m.payloadInput.Value()
	if payload == "" {
		return m, nil
	}

	wire := streams.AppendFrame(nil, frameToken, frameSeparator, []byte(payload))
	conn := m.connMgr.getConn()
	if conn == nil {
		m.log.add("Cannot send chunk: connection lost", true)
		return m, nil
	}
	if _, err := conn.Write(wire); err != nil {
		m.log.add(fmt.Sprintf("Failed to send chunk: %v", err), true)
		return m, nil
	}

	m.sent++
	m.payloadInput.Reset()
	m.log.add(fmt.Sprintf("Sent %d byte chunk (%d bytes on the wire)", len(payload), len(wire)), false)
	return m, nil
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) selectedAlt() *altItem {
	idx := m.altList.Index()
	if idx < 0 || idx >= len(m.alts) {
		return nil
	}
	return &m.alts[idx]
}

func (m *monitorModel) updateAltList() {
	items := make([]list.Item, len(m.alts))
	for i, a := range m.alts {
		items[i] = a
	}
	m.altList.SetItems(items)
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.altList.SetSize(28, listHeight)
}
