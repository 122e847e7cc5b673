// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"sync"
	"time"
)

// Clock provides block timestamps in seconds since the Unix epoch.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a clock that only moves when told to. It is the test and
// simulation counterpart of mining a block at a chosen timestamp.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given timestamp. Moving backwards is allowed
// so tests can replay scenarios.
func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by the given duration, truncated to whole
// seconds.
func (c *ManualClock) Advance(d time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += uint64(d / time.Second)
	return c.now
}
