// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build tinygo

package streams

import "runtime/interrupt"

// criticalSection disables interrupts while queue cursors are mutated, so an
// interrupt handler writing into the queue never observes a half update.
type criticalSection struct {
	state interrupt.State
}

func (c *criticalSection) enter() {
	state := interrupt.Disable()
	c.state = state
}

func (c *criticalSection) exit() {
	interrupt.Restore(c.state)
}
