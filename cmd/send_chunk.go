// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/framescan/pkg/streams"
	"github.com/spf13/cobra"
)

var (
	// Frame flags shared by commands that send chunks
	frameToken     string
	frameSeparator string

	sendChunkHex   bool
	sendChunkStdin bool
)

// addFrameFlags registers the framing flags on cmd
func addFrameFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&frameToken, "token", "DATA", "Literal sent before the chunk length")
	cmd.Flags().StringVar(&frameSeparator, "sep", ":", "Separator sent between length and payload")
}

var sendChunkCmd = &cobra.Command{
	Use:   "send_chunk [payload]",
	Short: "Frame a payload as a chunk and send it",
	Long: `Frame a payload as <token><len><sep><payload> and write it to the link.

The payload is taken from the argument, decoded from hex with --hex, or read
from stdin with --stdin. Payloads longer than 255 bytes are sent, but a
receiver storing records with a one-byte length will drop them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSendChunk,
}

func init() {
	rootCmd.AddCommand(sendChunkCmd)
	addFrameFlags(sendChunkCmd)
	sendChunkCmd.Flags().BoolVar(&sendChunkHex, "hex", false, "Payload argument is hex encoded")
	sendChunkCmd.Flags().BoolVar(&sendChunkStdin, "stdin", false, "Read the payload from stdin")
}

// chunkPayload resolves the payload from args and flags
func chunkPayload(args []string, stdin io.Reader) ([]byte, error) {
	if sendChunkStdin {
		if len(args) > 0 {
			return nil, fmt.Errorf("--stdin and a payload argument are mutually exclusive")
		}
		return io.ReadAll(stdin)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("payload argument required (or --stdin)")
	}
	if sendChunkHex {
		payload, err := hex.DecodeString(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return payload, nil
	}
	return []byte(args[0]), nil
}

func runSendChunk(cmd *cobra.Command, args []string) error {
	payload, err := chunkPayload(args, os.Stdin)
	if err != nil {
		return err
	}
	if len(payload) > streams.MaxRecordLength {
		fmt.Fprintf(os.Stderr, "Warning: %d byte payload exceeds the %d byte record limit\n",
			len(payload), streams.MaxRecordLength)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	wire := streams.AppendFrame(nil, frameToken, frameSeparator, payload)
	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	fmt.Printf("Sent %d bytes to %s\n", len(wire), connInfo)
	return nil
}
