// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framescan/pkg/capture"
	"github.com/Thermoquad/framescan/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	recordOutput   string
	recordDuration int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture raw link traffic to a file",
	Long: `Record every byte received from the link into a CBOR capture file.

The capture keeps the boundaries and timing of each transport read and embeds
the active scan profile, so it can be scanned later with replay, including
byte-by-byte to reproduce worst-case delivery.

Recording stops after --duration seconds (0 = until Ctrl+C) or when the
connection closes.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "capture.cbor", "Capture file to write")
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Recording duration in seconds (0 = until interrupted)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(recordOutput)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	w, err := capture.NewWriter(bw, p, connInfo)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordDuration)*time.Second)
		defer cancel()
	}

	fmt.Printf("Framescan - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", recordOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var readErr error
loop:
	for {
		select {
		case data := <-readChan:
			if _, err := w.Write(data); err != nil {
				return err
			}
		case readErr = <-errChan:
			break loop
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			fmt.Printf("\r%d frames, %d bytes", w.Frames(), w.Bytes())
		}
	}

	// Flush reads that arrived before the stop
	for {
		select {
		case data := <-readChan:
			if _, err := w.Write(data); err != nil {
				return err
			}
			continue
		default:
		}
		break
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write capture: %w", err)
	}
	fmt.Printf("\rRecorded %d frames, %d bytes to %s\n", w.Frames(), w.Bytes(), recordOutput)

	if readErr != nil && !errors.Is(readErr, ErrConnectionClosed) {
		logging.LogWarn(logging.ComponentCapture, "recording ended by read error", "error", readErr)
	}
	return nil
}
