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

import "net"

// Device is a hardware abstraction
type Device interface {
	// LED on or off (if applicable)
	LED(on bool)

	// Radio returns the initialized wireless driver.
	Radio() (Radio, error)

	// Listen returns a TCP listener on the given port once the
	// station is connected. The int result is a status code.
	Listen(port uint16) (net.Listener, int)
}
