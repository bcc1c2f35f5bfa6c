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

import "sync"

// linkState tracks the station link of a radio. Each join attempt gets
// a generation number; a result reported for an older generation (the
// attempt was superseded or dropped meanwhile) is discarded.
type linkState struct {
	mu     sync.Mutex
	gen    uint64
	status LinkStatus
	ip     IPInfo
}

// begin starts a new join attempt and returns its generation.
func (l *linkState) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.status = LinkConnecting
	l.ip = IPInfo{}
	return l.gen
}

// resolve sets the outcome of join attempt gen. Returns false if the
// attempt is stale.
func (l *linkState) resolve(gen uint64, status LinkStatus, ip IPInfo) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	l.status = status
	l.ip = ip
	return true
}

// reset ends any running attempt and sets the link status.
func (l *linkState) reset(status LinkStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.status = status
	l.ip = IPInfo{}
}

// get returns the link status and address.
func (l *linkState) get() (LinkStatus, IPInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status, l.ip
}
