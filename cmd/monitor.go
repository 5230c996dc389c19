// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/framescan/pkg/logging"
	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for watching matches and sending chunks",
	Long: `Monitor a link via an interactive terminal UI.

This command provides a TUI for watching the alternatives of the active
profile match in real time and for sending framed chunks back over the link.

Features:
  - Per-alternative match counts and last match time
  - Fields and chunk payloads of the selected alternative's last match
  - Sending text payloads framed as <token><len><sep><payload>
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the alternative list and the payload input. Arrow keys
navigate the list. Enter sends the payload.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addFrameFlags(monitorCmd)
}

var (
	// reconnectBackoff is the first delay before reopening a lost link. It
	// doubles after every failed attempt up to reconnectMaxBackoff.
	reconnectBackoff    = 1 * time.Second
	reconnectMaxBackoff = 30 * time.Second

	// batchInterval is how often matches are forwarded to the TUI
	batchInterval = 50 * time.Millisecond
)

// messageSender delivers messages to the running TUI
type messageSender interface {
	Send(msg tea.Msg)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        messageSender
	done     chan struct{}

	profile *profile.Profile
	stats   *session.Statistics
	open    func() (Connection, string, error)
}

func newConnectionManager(conn Connection, connInfo string, p *profile.Profile, stats *session.Statistics) *connectionManager {
	return &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
		profile:  p,
		stats:    stats,
		open:     OpenConnection,
	}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// shutdown stops the reader loop and closes the current connection
func (cm *connectionManager) shutdown() {
	close(cm.done)
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	if _, err := session.New(p); err != nil {
		return err
	}

	// Open initial connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	cm := newConnectionManager(conn, connInfo, p, session.NewStatistics())
	m := initialMonitorModel(cm, connInfo)

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = prog

	restoreLogs, err := redirectLogs()
	if err != nil {
		conn.Close()
		return err
	}
	defer restoreLogs()

	go cm.readerLoop()

	_, err = prog.Run()
	cm.shutdown()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop scans the connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.scanConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// scanConnection runs a fresh session over the current connection until it
// fails. Matches are forwarded to the TUI in batches.
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) scanConnection() bool {
	s, err := session.New(cm.profile, session.WithStatistics(cm.stats))
	if err != nil {
		logging.LogError(logging.ComponentSession, "cannot start session", "error", err)
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-cm.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	batchChan := make(chan session.Event, 100)
	scanDone := make(chan struct{})
	senderDone := make(chan struct{})

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		defer close(senderDone)
		ticker := time.NewTicker(batchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-scanDone:
				cm.flush(batchChan)
				return
			case <-ticker.C:
				cm.flush(batchChan)
			}
		}
	}()

	err = s.Run(ctx, cm.getConn(), func(e session.Event) {
		select {
		case batchChan <- e:
		default:
			logging.LogWarn(logging.ComponentSession, "TUI behind, event dropped",
				"alternative", e.Alternative)
		}
	})
	close(scanDone)
	<-senderDone

	select {
	case <-cm.done:
		return false
	default:
		if err != nil {
			logging.LogWarn(logging.ComponentLink, "connection lost", "error", err)
		} else {
			logging.LogInfo(logging.ComponentLink, "connection closed by peer")
		}
		return true
	}
}

// flush drains every queued event into one batch message
func (cm *connectionManager) flush(batchChan chan session.Event) {
	var batch eventBatchMsg
	for {
		select {
		case e := <-batchChan:
			batch.events = append(batch.events, e)
		default:
			if len(batch.events) > 0 {
				cm.p.Send(batch)
			}
			return
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := reconnectBackoff

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := cm.open()
		if err == nil {
			cm.setConn(conn, connInfo)
			logging.LogInfo(logging.ComponentLink, "reconnected", "connection", connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logging.LogDebug(logging.ComponentLink, "reconnect failed", "error", err, "retry_in", backoff)

		backoff *= 2
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}
