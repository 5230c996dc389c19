// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/spf13/cobra"
)

var scanLogCmd = &cobra.Command{
	Use:   "scan_log",
	Short: "Display matched frames in human-readable format",
	Long: `Continuously scan the link and display every matched frame as it arrives.

Each match is shown with a timestamp, the alternative that matched, the
number of garbage bytes skipped before it, its scalar fields and a hex dump
of any chunk payloads.

Supports both serial and WebSocket connections.`,
	RunE: runScanLog,
}

func init() {
	rootCmd.AddCommand(scanLogCmd)
}

func runScanLog(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	s, err := session.New(p)
	if err != nil {
		return err
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Framescan - Scan Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Profile: %s (%d alternatives)\n", p.Name, len(p.Alternatives))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = s.Run(cmd.Context(), conn, func(e session.Event) {
		fmt.Print(session.FormatEvent(e))
	})

	fmt.Println()
	fmt.Print(s.Stats().String())

	// For WebSocket connections, a read error usually means the connection is
	// permanently closed - exit gracefully
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
