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

import "fmt"

// Mode of operation, set once at initialization.
type Mode int

// Connection modes
const (
	ModeStationFixed Mode = iota // single known SSID, retry forever
	ModeStationAuto              // best SSID from a registry, selected by scan
	ModeMeshRoot                 // station uplink plus mesh identity broadcast
	ModeMeshNonLeaf              // mesh node forwarding to leaves
	ModeMeshLeaf                 // mesh end node
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeStationFixed:
		return "fixed"
	case ModeStationAuto:
		return "auto"
	case ModeMeshRoot:
		return "mesh-root"
	case ModeMeshNonLeaf:
		return "mesh-non-leaf"
	case ModeMeshLeaf:
		return "mesh-leaf"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// IsMesh returns true for all mesh roles.
func (m Mode) IsMesh() bool {
	return m == ModeMeshRoot || m == ModeMeshNonLeaf || m == ModeMeshLeaf
}

// ParseMode returns the mode for a name as returned by String.
func ParseMode(s string) (Mode, error) {
	for m := ModeStationFixed; m <= ModeMeshLeaf; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

//----------------------------------------------------------------------

// OpMode is the radio operating mode.
type OpMode int

// Radio operating modes
const (
	OpNull      OpMode = iota // radio off
	OpStation                 // station (client) only
	OpAP                      // access point only
	OpStationAP               // combined station and access point
)

// String returns the operating mode name.
func (m OpMode) String() string {
	switch m {
	case OpNull:
		return "null"
	case OpStation:
		return "station"
	case OpAP:
		return "ap"
	case OpStationAP:
		return "station+ap"
	}
	return fmt.Sprintf("opmode(%d)", int(m))
}

//----------------------------------------------------------------------

// LinkStatus is the station connection status reported by the radio.
type LinkStatus int

// Link status values
const (
	LinkIdle          LinkStatus = iota // not connected, nothing in progress
	LinkConnecting                      // association or DHCP ongoing
	LinkWrongPassword                   // authentication rejected
	LinkNoAPFound                       // SSID not visible
	LinkConnectFail                     // any other association failure
	LinkGotIP                           // associated and addressed
)

// String returns the link status name.
func (s LinkStatus) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkConnecting:
		return "connecting"
	case LinkWrongPassword:
		return "wrong-password"
	case LinkNoAPFound:
		return "no-ap-found"
	case LinkConnectFail:
		return "connect-fail"
	case LinkGotIP:
		return "got-ip"
	}
	return fmt.Sprintf("link(%d)", int(s))
}

// Rejected returns true if the radio gave up on the connection attempt.
func (s LinkStatus) Rejected() bool {
	return s == LinkWrongPassword || s == LinkNoAPFound || s == LinkConnectFail
}

//----------------------------------------------------------------------

// ScanStatus is the outcome of an asynchronous scan.
type ScanStatus int

// Scan completion status
const (
	ScanOK ScanStatus = iota
	ScanFailed
	ScanPending
	ScanBusy
	ScanCancelled
)

// String returns the scan status name.
func (s ScanStatus) String() string {
	switch s {
	case ScanOK:
		return "ok"
	case ScanFailed:
		return "fail"
	case ScanPending:
		return "pending"
	case ScanBusy:
		return "busy"
	case ScanCancelled:
		return "cancel"
	}
	return fmt.Sprintf("scan(%d)", int(s))
}
