// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !tinygo

package streams

import "sync"

// criticalSection excludes the producer and consumer from each other while
// queue cursors are mutated. On the host that is a mutex.
type criticalSection struct {
	mu sync.Mutex
}

func (c *criticalSection) enter() {
	c.mu.Lock()
}

func (c *criticalSection) exit() {
	c.mu.Unlock()
}
