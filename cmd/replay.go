// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/framescan/pkg/capture"
	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/spf13/cobra"
)

var (
	replayByteByByte bool
	replayQuiet      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Scan a recorded capture",
	Long: `Run a capture file through a scan profile and print the matches.

The profile given with --profile takes precedence; otherwise the profile
embedded in the capture is used, falling back to the built-in profile.

With --byte-by-byte every byte is fed and scanned on its own, which must
produce the same matches as replaying the original reads.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayByteByByte, "byte-by-byte", false, "Feed one byte at a time")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "Only print statistics")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}

	p, err := replayProfile(r.Header())
	if err != nil {
		return err
	}

	fmt.Printf("Framescan - Replay\n")
	fmt.Printf("Capture: %s (recorded %s", args[0], r.Header().Started.Format("2006-01-02 15:04:05"))
	if r.Header().Source != "" {
		fmt.Printf(" from %s", r.Header().Source)
	}
	fmt.Printf(")\n")
	fmt.Printf("Profile: %s\n\n", p.Name)

	s, err := session.New(p)
	if err != nil {
		return err
	}
	if err := replay(s, r, replayByteByByte, replayQuiet, os.Stdout); err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(s.Stats().String())
	if left := s.Buffered(); left > 0 {
		fmt.Printf("%d bytes left unmatched at end of capture\n", left)
	}
	return nil
}

// replayProfile picks --profile, then the embedded profile, then the default
func replayProfile(h capture.Header) (*profile.Profile, error) {
	if profilePath != "" {
		return profile.Load(profilePath)
	}
	if h.Profile != nil {
		if err := h.Profile.Validate(); err != nil {
			return nil, fmt.Errorf("embedded profile: %w", err)
		}
		return h.Profile, nil
	}
	return profile.Default(), nil
}

// replay feeds every frame of r into s, printing events to out unless quiet
func replay(s *session.Session, r *capture.Reader, byteByByte, quiet bool, out io.Writer) error {
	if byteByByte {
		return replayBytes(s, r.Stream(), quiet, out)
	}
	for {
		frame, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		feed(s, frame.Data, quiet, out)
	}
}

// replayBytes feeds the capture stream one byte at a time
func replayBytes(s *session.Session, stream io.Reader, quiet bool, out io.Writer) error {
	var b [1]byte
	for {
		if _, err := io.ReadFull(stream, b[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		feed(s, b[:], quiet, out)
	}
}

// feed pushes data through s, polling whenever the queue fills
func feed(s *session.Session, data []byte, quiet bool, out io.Writer) {
	for len(data) > 0 {
		n := s.Feed(data)
		data = data[n:]
		for _, e := range s.Poll() {
			if !quiet {
				fmt.Fprint(out, session.FormatEvent(e))
			}
		}
	}
}
