// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mockable

import "time"

// Clock returns the wall-clock time unless a fixed time has been set.
//
// The zero value reads the wall clock.
type Clock struct {
	faked bool
	time  time.Time
}

// Set fixes the clock at [now] until Sync is called.
func (c *Clock) Set(now time.Time) {
	c.faked = true
	c.time = now
}

// Sync resumes reading the wall clock.
func (c *Clock) Sync() {
	c.faked = false
}

func (c *Clock) Time() time.Time {
	if c.faked {
		return c.time
	}
	return time.Now()
}
