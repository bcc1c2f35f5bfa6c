//----------------------------------------------------------------------
// This file is part of wifimgr.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifimgr is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifimgr is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package wifimgr

import "time"

// Clock returns the current time.
type Clock func() time.Time

// Timer is a countdown checked at poll time. A timer that was never
// armed counts as expired.
type Timer struct {
	now      Clock
	deadline time.Time
}

// NewTimer creates a timer reading time from clk (time.Now if nil).
func NewTimer(clk Clock) *Timer {
	if clk == nil {
		clk = time.Now
	}
	return &Timer{now: clk}
}

// Countdown arms the timer to expire after d.
func (t *Timer) Countdown(d time.Duration) {
	t.deadline = t.now().Add(d)
}

// Expired returns true once the deadline has passed.
func (t *Timer) Expired() bool {
	return !t.now().Before(t.deadline)
}

// Left returns the time remaining until expiry (zero if expired).
func (t *Timer) Left() time.Duration {
	if d := t.deadline.Sub(t.now()); d > 0 {
		return d
	}
	return 0
}
