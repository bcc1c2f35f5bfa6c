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

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// exchange bound after a number of polls (never if negative)
type fakeExchange struct {
	after   int
	polls   int
	aborted int
}

func (x *fakeExchange) Bound() bool {
	x.polls++
	return x.after >= 0 && x.polls > x.after
}

func (x *fakeExchange) Abort() { x.aborted++ }

func TestAwaitLease(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	x := &fakeExchange{after: 3}
	assert.True(t, awaitLease(x, 16, 0, log))
	assert.Equal(t, 4, x.polls)
	assert.Zero(t, x.aborted)

	// no server: the request is dropped
	x = &fakeExchange{after: -1}
	assert.False(t, awaitLease(x, 16, 0, log))
	assert.Equal(t, 17, x.polls)
	assert.Equal(t, 1, x.aborted)

	// bound on the last try
	x = &fakeExchange{after: 16}
	assert.True(t, awaitLease(x, 16, 0, log))
	assert.Zero(t, x.aborted)
}
