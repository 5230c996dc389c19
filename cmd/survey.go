// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/Thermoquad/framescan/pkg/streams"
	"github.com/spf13/cobra"
)

var (
	surveyTimeout int
	surveyRequest string
	surveyUntil   string
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Discover which alternatives appear on a link",
	Long: `Listen to a link and report which alternatives of the profile appear.

Each alternative is announced the first time it matches, with its fields.
The summary lists every alternative with its match count and the bytes that
matched nothing.

Options:
  --request PAYLOAD  Send PAYLOAD framed as <token><len><sep><payload> first,
                     for devices that only talk when asked.
  --until NAME       Stop as soon as alternative NAME matches (an
                     end-of-announcements marker).

Examples:
  # Listen for 5 seconds on a serial port
  framescan survey --port /dev/ttyUSB0

  # Ask a router for announcements and stop at its end marker
  framescan survey --url ws://router.local/link --request HELLO --until end --profile router.json

Exit codes:
  0 - Survey successful (at least one alternative matched)
  1 - Survey failed (nothing matched, or --until never matched)
  2 - Connection error`,
	RunE: runSurvey,
}

func init() {
	rootCmd.AddCommand(surveyCmd)
	surveyCmd.Flags().IntVar(&surveyTimeout, "timeout", 5, "Listening time in seconds")
	surveyCmd.Flags().StringVar(&surveyRequest, "request", "", "Payload to send as a framed chunk before listening")
	surveyCmd.Flags().StringVar(&surveyUntil, "until", "", "Stop when this alternative matches")
	addFrameFlags(surveyCmd)
}

// altSighting tracks one alternative during a survey
type altSighting struct {
	name      string
	count     int
	firstSeen time.Time
}

// survey collects sightings in profile order
type survey struct {
	sightings []altSighting
	index     map[string]int
	until     string
	ended     bool
}

func newSurvey(s *session.Session, until string) *survey {
	sv := &survey{index: make(map[string]int), until: until}
	for i, alt := range s.Profile().Alternatives {
		sv.sightings = append(sv.sightings, altSighting{name: alt.Name})
		sv.index[alt.Name] = i
	}
	return sv
}

// record counts e and reports whether it is the first match of its
// alternative. A match of the end marker is never counted.
func (sv *survey) record(e session.Event) bool {
	if sv.until != "" && e.Alternative == sv.until {
		sv.ended = true
		return false
	}
	i, ok := sv.index[e.Alternative]
	if !ok {
		return false
	}
	sighting := &sv.sightings[i]
	sighting.count++
	if sighting.count == 1 {
		sighting.firstSeen = e.Time
		return true
	}
	return false
}

// found returns the number of alternatives that matched at least once
func (sv *survey) found() int {
	n := 0
	for _, sighting := range sv.sightings {
		if sighting.count > 0 {
			n++
		}
	}
	return n
}

func (sv *survey) printSummary(out io.Writer, start time.Time, skipped uint64) {
	fmt.Fprintf(out, "\n--- Survey summary ---\n")
	for _, sighting := range sv.sightings {
		if sighting.name == sv.until {
			continue
		}
		if sighting.count == 0 {
			fmt.Fprintf(out, "  %-16s not seen\n", sighting.name)
			continue
		}
		fmt.Fprintf(out, "  %-16s %5d matches, first after %v\n",
			sighting.name, sighting.count, sighting.firstSeen.Sub(start).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Alternatives found: %d/%d\n", sv.found(), len(sv.index)-sv.untilCount())
	fmt.Fprintf(out, "Unmatched bytes: %d\n", skipped)
}

func (sv *survey) untilCount() int {
	if _, ok := sv.index[sv.until]; ok {
		return 1
	}
	return 0
}

func runSurvey(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	s, err := session.New(p)
	if err != nil {
		return err
	}
	sv := newSurvey(s, surveyUntil)
	if surveyUntil != "" && sv.untilCount() == 0 {
		return fmt.Errorf("--until: profile %q has no alternative %q", p.Name, surveyUntil)
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Framescan - Survey\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Profile: %s (%d alternatives)\n", p.Name, len(p.Alternatives))
	fmt.Printf("Timeout: %d seconds\n\n", surveyTimeout)

	if surveyRequest != "" {
		wire := streams.AppendFrame(nil, frameToken, frameSeparator, []byte(surveyRequest))
		fmt.Printf("Sending request %q...\n", wire)
		if _, err := conn.Write(wire); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(surveyTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	err = s.Run(ctx, conn, func(e session.Event) {
		if sv.ended {
			return
		}
		if sv.record(e) {
			fmt.Printf("\nAlternative found: %s\n", e.Alternative)
			fmt.Print(session.FormatEvent(e))
		}
		if sv.ended {
			fmt.Printf("\nEnd marker %q received\n", sv.until)
			cancel()
		}
	})

	switch {
	case sv.ended:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		if surveyUntil != "" {
			fmt.Printf("\nTIMEOUT: End marker %q not received in %ds\n", surveyUntil, surveyTimeout)
		} else {
			fmt.Printf("\nSurvey time elapsed\n")
		}
	case err != nil && ctx.Err() == nil:
		fmt.Printf("READ FAILED: %v\n", err)
		os.Exit(2)
	}

	sv.printSummary(os.Stdout, start, s.Stats().Snapshot().Discarded+uint64(s.Buffered()))

	if sv.found() == 0 || (surveyUntil != "" && !sv.ended) {
		os.Exit(1)
	}
	return nil
}
