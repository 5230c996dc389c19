// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var scanStatsCmd = &cobra.Command{
	Use:   "scan_stats",
	Short: "Track discarded bytes, oversize chunks and match rates",
	Long: `Track scanner health with statistics.

This command scans the link and reports:
  - Garbage bytes discarded between frames
  - Chunks dropped because they were too large for their target
  - Source queue back-pressure
  - Statistics and trends (match rate, discard rate, per-alternative counts)

By default, only problems are displayed. Use --show-all to display every match.

Bytes skipped before the first match are reported once as synchronization.
Periodic statistics summaries are displayed at configurable intervals in text
mode. The terminal UI reconnects automatically when the link drops.`,
	RunE: runScanStats,
}

func init() {
	rootCmd.AddCommand(scanStatsCmd)
	scanStatsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all matches (not just problems)")
	scanStatsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	scanStatsCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runScanStats(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}
	p, err := loadProfile()
	if err != nil {
		return err
	}
	s, err := session.New(p)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	if useTUI {
		return runStatsTUI(p, conn, connInfo)
	}
	defer conn.Close()

	err = runStatsText(cmd.Context(), os.Stdout, s, conn, connInfo)
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runStatsTUI runs the statistics TUI with automatic reconnection
func runStatsTUI(p *profile.Profile, conn Connection, connInfo string) error {
	stats := session.NewStatistics()
	cm := newConnectionManager(conn, connInfo, p, stats)

	prog := tea.NewProgram(initialStatsModel(connInfo, stats, showAll))
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

// runStatsText prints problems as they happen and a statistics summary every
// statsInterval seconds
func runStatsText(ctx context.Context, out io.Writer, s *session.Session, r io.Reader, connInfo string) error {
	fmt.Fprintf(out, "Framescan - Scan Statistics\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All matches\n")
	} else {
		fmt.Fprintf(out, "Mode: Problems only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := make(chan session.Event)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, r, func(e session.Event) {
			events <- e
		})
	}()

	synchronized := false
	for {
		select {
		case e := <-events:
			printScanEvent(out, e, !synchronized)
			synchronized = true

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, s.Stats().String())
			fmt.Fprintln(out)

		case err := <-done:
			fmt.Fprintln(out)
			fmt.Fprint(out, s.Stats().String())
			return err
		}
	}
}

// printScanEvent prints the problems of one match, or the whole match with
// --show-all. Bytes skipped before the first match are reported as sync.
func printScanEvent(out io.Writer, e session.Event, first bool) {
	timestamp := e.Time.Format("15:04:05.000")

	switch {
	case first && e.Discarded > 0:
		fmt.Fprintf(out, "[SYNC] Synchronized after skipping %d invalid bytes\n\n", e.Discarded)
	case first:
		fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
	case e.Discarded > 0:
		fmt.Fprintf(out, "[%s] \033[1;33mSKIPPED:\033[0m %d bytes before %s\n\n", timestamp, e.Discarded, e.Alternative)
	}

	if e.Oversize > 0 {
		fmt.Fprintf(out, "[%s] \033[1;31mOVERSIZE:\033[0m %s (#%d)\n", timestamp, e.Alternative, e.Index)
		fmt.Fprintf(out, "  %d chunk(s) too large for target\n", e.Oversize)
		fmt.Fprintf(out, "  >>> CHUNK DROPPED <<<\n\n")
		return
	}
	if showAll {
		fmt.Fprint(out, session.FormatEvent(e))
	}
}
