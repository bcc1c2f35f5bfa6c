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
	"net"
	"net/netip"
)

// Network is a single scan result.
type Network struct {
	SSID    string
	BSSID   net.HardwareAddr
	Channel int
	RSSI    int // dBm
	Auth    AuthMode
}

// AuthMode of an access point
type AuthMode int

// Authentication modes
const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPA
	AuthWPA2
	AuthWPAWPA2
)

// IPInfo is the station address configuration.
type IPInfo struct {
	IP      netip.Addr
	Netmask netip.Addr
	Gateway netip.Addr
}

// APConfig is the configuration of the broadcast access point.
type APConfig struct {
	SSID       string
	Password   string
	Auth       AuthMode
	Hidden     bool
	MaxClients int
}

// Peer is a station associated with our access point.
type Peer struct {
	MAC net.HardwareAddr
	IP  netip.Addr
}

// ScanHandler receives the result of an asynchronous scan. It may be
// called from any goroutine.
type ScanHandler func(status ScanStatus, nets []Network)

// Radio is the capability set of the wireless driver. All calls are
// fire-and-trigger: completion is observed through Status or the
// ScanHandler passed to Scan.
type Radio interface {
	// SetMode switches the operating mode.
	SetMode(mode OpMode) error
	// SetStationConfig applies station credentials.
	SetStationConfig(cfg StationConfig) error
	// Connect starts association with the configured network.
	Connect() error
	// Disconnect drops the station connection.
	Disconnect() error
	// SetAutoReconnect enables or disables driver-side reconnects.
	SetAutoReconnect(on bool) error
	// Scan starts a scan; done is called once the scan is finished.
	Scan(done ScanHandler) error
	// Status returns the current station link status.
	Status() LinkStatus
	// IPInfo returns the station address configuration.
	IPInfo() (IPInfo, error)
	// SetAPConfig configures the broadcast access point.
	SetAPConfig(cfg APConfig) error
	// PeerCount returns the number of stations on our access point.
	PeerCount() int
	// Peers lists the stations on our access point.
	Peers() []Peer
	// HardwareAddr returns the station MAC address.
	HardwareAddr() ([6]byte, error)
}
