// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Framescan - Incremental Frame Scanner
//
// A CLI tool for matching framed messages in live serial and WebSocket
// byte streams and displaying them in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/framescan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
