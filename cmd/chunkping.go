// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/Thermoquad/framescan/pkg/streams"
	"github.com/spf13/cobra"
)

var (
	chunkPingTimeout int
	chunkPingCount   int
)

var chunkPingCmd = &cobra.Command{
	Use:   "chunk_ping",
	Short: "Send framed chunks and wait for them to be echoed back",
	Long: `Send framed ping chunks and wait for each to come back as a matched chunk.

Each ping is framed as <token><len><sep><payload> with a unique payload. The
ping succeeds when any alternative of the profile delivers a chunk record
equal to that payload. Point this at a loopback adapter or an echoing bridge.

This is useful for verifying:
  - The link is established in both directions
  - HTTP Basic authentication works (WebSocket)
  - The profile matches the frames the peer sends

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runChunkPing,
}

func init() {
	rootCmd.AddCommand(chunkPingCmd)
	chunkPingCmd.Flags().IntVar(&chunkPingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	chunkPingCmd.Flags().IntVar(&chunkPingCount, "count", 3, "Number of pings to send")
	addFrameFlags(chunkPingCmd)
}

// eventHasRecord reports whether any chunk record of e equals payload
func eventHasRecord(e session.Event, payload []byte) bool {
	for _, records := range e.Chunks {
		for _, record := range records {
			if bytes.Equal(record, payload) {
				return true
			}
		}
	}
	return false
}

func runChunkPing(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Framescan - Chunk Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", chunkPingTimeout)
	fmt.Printf("Count: %d pings\n\n", chunkPingCount)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := make(chan session.Event, 64)
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Run(ctx, conn, func(e session.Event) {
			select {
			case events <- e:
			default:
			}
		})
	}()

	successCount := 0
	failCount := 0
	linkLost := false

	for i := 1; i <= chunkPingCount && !linkLost; i++ {
		fmt.Printf("Ping %d/%d: ", i, chunkPingCount)

		payload := []byte(fmt.Sprintf("ping-%d-%d", i, time.Now().UnixNano()))
		wire := streams.AppendFrame(nil, frameToken, frameSeparator, payload)

		startTime := time.Now()
		if _, err := conn.Write(wire); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		timeout := time.After(time.Duration(chunkPingTimeout) * time.Second)
	wait:
		for {
			select {
			case e := <-events:
				if !eventHasRecord(e, payload) {
					// Ignore unrelated frames
					continue
				}
				rtt := time.Since(startTime)
				fmt.Printf("PONG via %s, %d bytes, rtt=%v\n", e.Alternative, len(payload), rtt.Round(time.Millisecond))
				successCount++
				break wait

			case err := <-errChan:
				fmt.Printf("READ FAILED: %v\n", err)
				failCount += chunkPingCount - i + 1
				linkLost = true
				break wait

			case <-timeout:
				fmt.Printf("TIMEOUT (no echo in %ds)\n", chunkPingTimeout)
				failCount++
				break wait
			}
		}

		// Small delay between pings
		if i < chunkPingCount && !linkLost {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d echoes received, %.0f%% loss\n",
		chunkPingCount, successCount, float64(failCount)/float64(chunkPingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
