// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/spf13/cobra"
)

var profileShowCmd = &cobra.Command{
	Use:   "profile_show",
	Short: "Validate and print the scan profile",
	Long: `Load the scan profile given with --profile (or the built-in one), validate
it and print it as JSON together with the shortest frame each alternative can
match.`,
	RunE: runProfileShow,
}

func init() {
	rootCmd.AddCommand(profileShowCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\nProfile %q is valid (buffer %d bytes)\n", p.Name, p.Buffer)
	for i, alt := range p.Alternatives {
		fmt.Fprintf(os.Stderr, "  %d. %-16s min %d bytes\n", i, alt.Name, profile.MinLength(alt.Format))
	}
	return nil
}
