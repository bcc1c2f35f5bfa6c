//go:build !rp2350

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
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// LinuxDevice (for testing purposes) with a simulated radio.
type LinuxDevice struct {
	sim *SimRadio
}

// LED on or off (not applicable)
func (dev *LinuxDevice) LED(on bool) {}

// Initialize device. Host and IP are not used.
func InitDevice(_, _ string) Device {
	return &LinuxDevice{
		sim: NewSimRadio([6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}),
	}
}

// Radio returns the simulated radio.
func (dev *LinuxDevice) Radio() (Radio, error) {
	return dev.sim, nil
}

// Sim returns the simulated radio for configuration.
func (dev *LinuxDevice) Sim() *SimRadio {
	return dev.sim
}

// Listen returns a TCP listener on the given port.
func (dev *LinuxDevice) Listen(port uint16) (lst net.Listener, state int) {
	ctx := context.Background()
	cfg := new(net.ListenConfig)
	lis, err := cfg.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, StatLISTEN1
	}
	return lis, StatOK
}

//======================================================================
// Simulated radio
//======================================================================

// Error messages
var (
	errScanBusy = errors.New("scan in progress")
)

// SimNetwork is an access point visible to the simulated radio.
type SimNetwork struct {
	Network
	Password string
}

// SimRadio is an in-memory Radio. Joins and scans complete after
// configurable delays (immediately if zero).
type SimRadio struct {
	mu        sync.Mutex
	mac       [6]byte
	mode      OpMode
	sta       StationConfig
	auto      bool
	link      linkState
	ap        APConfig
	networks  []SimNetwork
	peers     []Peer
	scanning  bool
	scanFail  bool
	ScanDelay time.Duration // time until scan results are reported
	JoinDelay time.Duration // time until a join attempt resolves
}

// NewSimRadio creates a simulated radio with given MAC address.
func NewSimRadio(mac [6]byte) *SimRadio {
	return &SimRadio{mac: mac}
}

// SetNetworks replaces the visible access points.
func (r *SimRadio) SetNetworks(list ...SimNetwork) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks = append([]SimNetwork(nil), list...)
}

// SetPeers replaces the stations attached to our access point.
func (r *SimRadio) SetPeers(list ...Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = append([]Peer(nil), list...)
}

// FailScans makes subsequent scans report failure.
func (r *SimRadio) FailScans(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanFail = fail
}

// Drop loses the station link.
func (r *SimRadio) Drop() {
	r.link.reset(LinkConnectFail)
}

// Mode returns the current operating mode.
func (r *SimRadio) Mode() OpMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// AP returns the current access point configuration.
func (r *SimRadio) AP() APConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ap
}

// SetMode switches the operating mode.
func (r *SimRadio) SetMode(mode OpMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return nil
}

// SetStationConfig applies station credentials.
func (r *SimRadio) SetStationConfig(cfg StationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sta = cfg
	return nil
}

// Connect starts a join attempt with the configured credentials.
func (r *SimRadio) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != OpStation && r.mode != OpStationAP {
		return fmt.Errorf("connect in %s mode", r.mode)
	}
	sta := r.sta
	gen := r.link.begin()
	if r.JoinDelay == 0 {
		status, ip := r.join(sta)
		r.link.resolve(gen, status, ip)
		return nil
	}
	time.AfterFunc(r.JoinDelay, func() {
		r.mu.Lock()
		status, ip := r.join(sta)
		r.mu.Unlock()
		// dropped if superseded by a newer attempt or a disconnect
		r.link.resolve(gen, status, ip)
	})
	return nil
}

// outcome of a join attempt (locked)
func (r *SimRadio) join(sta StationConfig) (LinkStatus, IPInfo) {
	for i, n := range r.networks {
		if n.SSID != sta.SSID {
			continue
		}
		if n.Password != sta.Password {
			return LinkWrongPassword, IPInfo{}
		}
		return LinkGotIP, IPInfo{
			IP:      netip.AddrFrom4([4]byte{192, 168, 4, byte(10 + i)}),
			Netmask: netip.AddrFrom4([4]byte{255, 255, 255, 0}),
			Gateway: netip.AddrFrom4([4]byte{192, 168, 4, 1}),
		}
	}
	return LinkNoAPFound, IPInfo{}
}

// Disconnect drops the station link.
func (r *SimRadio) Disconnect() error {
	r.link.reset(LinkIdle)
	return nil
}

// SetAutoReconnect is recorded only.
func (r *SimRadio) SetAutoReconnect(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auto = on
	return nil
}

// Scan reports the visible networks to done.
func (r *SimRadio) Scan(done ScanHandler) error {
	r.mu.Lock()
	if r.scanning {
		r.mu.Unlock()
		return errScanBusy
	}
	r.scanning = true
	delay := r.ScanDelay
	r.mu.Unlock()

	report := func() {
		r.mu.Lock()
		r.scanning = false
		fail := r.scanFail
		nets := make([]Network, len(r.networks))
		for i, n := range r.networks {
			nets[i] = n.Network
		}
		r.mu.Unlock()
		if fail {
			done(ScanFailed, nil)
			return
		}
		done(ScanOK, nets)
	}
	if delay == 0 {
		report()
	} else {
		time.AfterFunc(delay, report)
	}
	return nil
}

// Status returns the station link status.
func (r *SimRadio) Status() LinkStatus {
	status, _ := r.link.get()
	return status
}

// IPInfo returns the station address.
func (r *SimRadio) IPInfo() (IPInfo, error) {
	_, ip := r.link.get()
	return ip, nil
}

// SetAPConfig configures the broadcast access point.
func (r *SimRadio) SetAPConfig(cfg APConfig) error {
	if len(cfg.SSID) > MaxSSID {
		return ErrSSIDTooLong
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ap = cfg
	return nil
}

// PeerCount returns the number of attached stations.
func (r *SimRadio) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Peers lists the attached stations.
func (r *SimRadio) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Peer(nil), r.peers...)
}

// HardwareAddr returns the station MAC address.
func (r *SimRadio) HardwareAddr() ([6]byte, error) {
	return r.mac, nil
}
