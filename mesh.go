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
	"fmt"
	"log/slog"
)

// MeshState is the phase of the mesh state machine.
type MeshState int

// Mesh states
const (
	MeshIdle MeshState = iota
	MeshConnect
	MeshConnectInProgress
	MeshConnectDone
	MeshConnectFail
	MeshScanInProgress
	MeshScanDone
	MeshDisabled
)

var meshNames = [...]string{
	"idle", "connect", "connect-in-progress", "connect-done", "connect-fail",
	"scan-in-progress", "scan-done", "disabled",
}

// String returns the state name.
func (s MeshState) String() string {
	if s >= 0 && int(s) < len(meshNames) {
		return meshNames[s]
	}
	return fmt.Sprintf("mesh(%d)", int(s))
}

//----------------------------------------------------------------------

// mesh owns the mesh role lifecycle of a node.
type mesh struct {
	m       *Manager
	state   MeshState
	check   *Timer        // mesh check interval
	nets    []Network     // networks seen by the last scan
	uplink  *MeshIdentity // node we joined (or try to join)
	wait    bool          // delay the next scan until check expiry
	trigger bool          // last scan request was refused
}

// step advances the machine by one transition.
func (h *mesh) step() {
	next := h.transition(h.state)
	if next != h.state {
		h.m.log.Debug("mesh",
			slog.String("from", h.state.String()),
			slog.String("to", next.String()))
		h.state = next
	}
}

// transition performs the side effects of the current state and
// returns the next state.
func (h *mesh) transition(st MeshState) MeshState {
	m := h.m
	switch st {
	case MeshIdle:
		// join the mesh once the station gave up
		if m.sta.state == StationDisabled {
			m.log.Info("mesh start: station disabled")
			return MeshConnect
		}

	case MeshConnect:
		if h.wait && !h.check.Expired() {
			break
		}
		h.wait = false
		next := h.connect()
		h.check.Countdown(m.cfg.meshCheck)
		return next

	case MeshScanInProgress:
		// a refused scan request never completes
		if h.trigger && h.check.Expired() {
			return MeshConnect
		}

	case MeshScanDone:
		return h.scanDone()

	case MeshConnectInProgress:
		if h.check.Expired() {
			next := h.checkLink()
			h.check.Countdown(m.cfg.meshCheck)
			return next
		}
	}
	return st
}

// connect drops any station connection and scans for mesh nodes.
func (h *mesh) connect() MeshState {
	m := h.m
	h.warn("auto-reconnect", m.radio.SetAutoReconnect(false))
	h.warn("disconnect", m.radio.Disconnect())

	// start scan
	h.trigger = false
	if err := m.radio.Scan(m.ScanDone); err != nil {
		m.log.Info("mesh scan not started", slog.String("err", err.Error()))
		h.trigger = true
	}
	return MeshScanInProgress
}

// scanDone selects an uplink from the scan result and joins it.
// Without a candidate the scan is repeated after the check interval.
func (h *mesh) scanDone() MeshState {
	m := h.m
	up := h.selectUplink()
	h.nets = nil
	if up == nil {
		m.log.Debug("mesh scan: no uplink")
		h.wait = true
		return MeshConnect
	}
	ssid, err := up.SSID()
	if err != nil {
		h.warn("uplink", err)
		h.wait = true
		return MeshConnect
	}
	h.uplink = up
	m.log.Info("mesh join", slog.String("uplink", ssid))

	mode := OpStation
	if m.mode != ModeMeshLeaf {
		mode = OpStationAP
	}
	h.warn("set mode", m.radio.SetMode(mode))
	h.warn("set config", m.radio.SetStationConfig(StationConfig{
		SSID:     ssid,
		Password: m.ap.Password,
	}))
	h.warn("connect", m.radio.Connect())
	h.check.Countdown(m.cfg.meshCheck)
	return MeshConnectInProgress
}

// selectUplink returns the strongest connected node of our mesh.
func (h *mesh) selectUplink() *MeshIdentity {
	m := h.m
	var best *MeshIdentity
	bestRSSI := minRSSI
	for _, n := range h.nets {
		id, ok := ParseMeshSSID(n.SSID)
		if !ok || id.Prefix != m.ident.Prefix || id.Postfix == m.ident.Postfix {
			continue
		}
		if !id.Connected() {
			continue
		}
		if n.RSSI > bestRSSI {
			bestRSSI = n.RSSI
			best = &id
		}
	}
	return best
}

// checkLink observes peers and the uplink.
func (h *mesh) checkLink() MeshState {
	m := h.m
	count := m.radio.PeerCount()
	m.log.Debug("mesh check", slog.Int("peers", count))
	for _, p := range m.radio.Peers() {
		m.log.Debug("mesh peer", slog.String("mac", p.MAC.String()), slog.String("ip", p.IP.String()))
	}

	link := m.radio.Status()
	switch {
	case link == LinkGotIP:
		return h.connectDone()
	case link.Rejected(), link == LinkIdle:
		m.log.Info("mesh join failed", slog.String("link", link.String()))
		m.sta.err = fmt.Errorf("%w: %s", ErrConnectRejected, link)
		return MeshConnectFail
	}
	return MeshConnectInProgress
}

// connectDone finishes joining the mesh. Non-leaf nodes announce
// themselves so that other nodes can attach.
func (h *mesh) connectDone() MeshState {
	m := h.m
	ip, err := m.radio.IPInfo()
	if err != nil {
		h.warn("ip info", err)
	}
	m.sta.ip = ip
	m.sta.err = nil
	m.log.Info("mesh connected", slog.String("ip", ip.IP.String()))
	if m.mode == ModeMeshNonLeaf {
		m.broadcast(MeshStatusConnected)
	}
	m.notify(evConnect)
	return MeshConnectDone
}

// scanResult is called by the manager for a completed scan while the
// mesh waits for it.
func (h *mesh) scanResult(status ScanStatus, nets []Network) {
	if status == ScanOK {
		h.nets = nets
	} else {
		h.nets = nil
	}
	h.state = MeshScanDone
}

// warn logs a failed driver call.
func (h *mesh) warn(op string, err error) {
	if err != nil {
		h.m.log.Warn("mesh "+op, slog.String("err", err.Error()))
	}
}
