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

// RSSI floor used to seed the running maximum; below any real reading.
const minRSSI = -127

// Select returns the registry entry of the strongest network seen in a
// scan, or nil if none of the networks is known. Duplicate SSIDs in the
// registry resolve to their first entry.
func Select(reg *Registry, nets []Network) (best *APCandidate) {
	bestRSSI := minRSSI
	for _, n := range nets {
		ap := reg.Find(n.SSID)
		if ap == nil {
			continue
		}
		if n.RSSI > bestRSSI {
			bestRSSI = n.RSSI
			best = ap
		}
	}
	return
}
