// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/spf13/cobra"
)

var (
	matchTestTimeout     int
	matchTestAlternative string
)

var matchTestCmd = &cobra.Command{
	Use:   "match_test",
	Short: "Test connection by waiting for a matching frame",
	Long: `Wait for a frame matching the scan profile until timeout.

This command connects to a serial port or WebSocket and scans incoming bytes
against the profile. Garbage bytes are skipped until one complete frame
matches. Use --alternative to wait for a specific alternative by name.

Exit codes:
  0 - Frame matched before timeout
  1 - Timeout reached without a match
  2 - Connection error`,
	RunE: runMatchTest,
}

func init() {
	rootCmd.AddCommand(matchTestCmd)
	matchTestCmd.Flags().IntVar(&matchTestTimeout, "timeout", 10, "Timeout in seconds to wait for a match")
	matchTestCmd.Flags().StringVar(&matchTestAlternative, "alternative", "", "Only accept this alternative")
}

func runMatchTest(cmd *cobra.Command, args []string) error {
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
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Framescan - Match Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", matchTestTimeout)
	fmt.Printf("Waiting for a frame matching profile %q...\n\n", p.Name)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(matchTestTimeout)*time.Second)
	defer cancel()

	matchChan := make(chan session.Event, 1)
	errChan := make(chan error, 1)

	go func() {
		errChan <- s.Run(ctx, conn, func(e session.Event) {
			if matchTestAlternative != "" && e.Alternative != matchTestAlternative {
				return
			}
			select {
			case matchChan <- e:
				cancel()
			default:
			}
		})
	}()

	select {
	case e := <-matchChan:
		snap := s.Stats().Snapshot()
		if snap.Discarded > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", snap.Discarded)
		}
		fmt.Printf("SUCCESS: Received matching frame\n")
		fmt.Print(session.FormatEvent(e))
		os.Exit(0)

	case err := <-errChan:
		select {
		case e := <-matchChan:
			fmt.Printf("SUCCESS: Received matching frame\n")
			fmt.Print(session.FormatEvent(e))
			os.Exit(0)
		default:
		}
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No matching frame received within %d seconds\n", matchTestTimeout)
			os.Exit(1)
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Interrupted before a frame matched\n")
			os.Exit(1)
		}
		if err == nil {
			err = errors.New("connection closed")
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	return nil
}
