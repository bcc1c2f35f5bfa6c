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
	"log/slog"
	"time"
)

// dhcpExchange is a running DHCP request.
type dhcpExchange interface {
	Bound() bool
	Abort()
}

// awaitLease polls x until a lease is bound, pausing between tries.
// An exchange still unbound after the last try is aborted so that it
// releases its port on the stack.
func awaitLease(x dhcpExchange, tries int, pause time.Duration, log *slog.Logger) bool {
	for i := 0; !x.Bound(); i++ {
		if i >= tries {
			x.Abort()
			return false
		}
		log.Info("DHCP ongoing...", slog.Int("try", i+1))
		time.Sleep(pause)
	}
	return true
}
