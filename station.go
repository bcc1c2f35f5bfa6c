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

// StationState is the phase of the station state machine.
type StationState int

// Station states
const (
	StationIdle StationState = iota
	StationConnect
	StationConnectInProgress
	StationConnectDone
	StationConnectFail
	StationDisconnect
	StationDisconnectInProgress
	StationDisconnectDone
	StationScan
	StationScanInProgress
	StationScanDone
	StationScanFail
	StationDisabled
	StationReady
)

var stationNames = [...]string{
	"idle", "connect", "connect-in-progress", "connect-done", "connect-fail",
	"disconnect", "disconnect-in-progress", "disconnect-done",
	"scan", "scan-in-progress", "scan-done", "scan-fail",
	"disabled", "ready",
}

// String returns the state name.
func (s StationState) String() string {
	if s >= 0 && int(s) < len(stationNames) {
		return stationNames[s]
	}
	return fmt.Sprintf("station(%d)", int(s))
}

//----------------------------------------------------------------------

// station owns the station connectivity lifecycle.
type station struct {
	m       *Manager
	state   StationState
	cfg     StationConfig // credentials in use
	winner  *APCandidate  // best candidate of the last successful scan
	ip      IPInfo        // address after connect
	err     error         // reason for the last failure
	check   *Timer        // link check interval
	timeout *Timer        // connect timeout (non-fixed modes)
}

// step advances the machine by one transition.
func (s *station) step() {
	next := s.transition(s.state)
	if next != s.state {
		s.m.log.Debug("station",
			slog.String("from", s.state.String()),
			slog.String("to", next.String()))
		s.state = next
	}
}

// transition performs the side effects of the current state and
// returns the next state.
func (s *station) transition(st StationState) StationState {
	m := s.m
	switch st {
	case StationConnect:
		next := s.connect()
		s.check.Countdown(m.cfg.check)
		s.timeout.Countdown(m.cfg.timeout)
		return next

	case StationConnectInProgress:
		if m.mode != ModeStationFixed && s.timeout.Expired() {
			m.log.Info("station connect timeout", slog.String("ssid", s.cfg.SSID))
			s.err = ErrConnectTimeout
			return StationDisabled
		}
		if s.check.Expired() {
			next := s.checkLink()
			s.check.Countdown(m.cfg.check)
			return next
		}

	case StationConnectFail:
		if m.mode != ModeStationFixed {
			m.log.Info("station connect failed", slog.String("ssid", s.cfg.SSID))
			return StationDisabled
		}
		// start again
		return StationConnect

	case StationConnectDone:
		next := s.connectDone()
		m.notify(evConnect)
		s.check.Countdown(m.cfg.check)
		return next

	case StationDisconnect:
		return s.disconnect()

	case StationDisconnectInProgress:
		if m.radio.Status() != LinkGotIP {
			return StationDisconnectDone
		}

	case StationDisconnectDone:
		m.notify(evDisconnect)
		return StationDisabled

	case StationScan:
		return s.scan()

	case StationScanDone:
		return s.scanDone()

	case StationScanFail:
		if s.check.Expired() {
			next := s.scan()
			s.check.Countdown(m.cfg.check)
			return next
		}

	case StationReady:
		if s.check.Expired() {
			next := st
			if link := s.checkLink(); link != StationConnectDone {
				next = s.linkLost(link)
			}
			s.check.Countdown(m.cfg.check)
			return next
		}
	}
	return st
}

// connect applies the credentials and starts association.
func (s *station) connect() StationState {
	m := s.m
	m.log.Info("station connect", slog.String("ssid", s.cfg.SSID), slog.String("mode", m.mode.String()))
	// the operating mode must be set before the station config
	s.warn("set mode", m.radio.SetMode(OpStation))
	s.warn("set config", m.radio.SetStationConfig(s.cfg))
	s.warn("connect", m.radio.Connect())
	s.warn("auto-reconnect", m.radio.SetAutoReconnect(true))
	return StationConnectInProgress
}

// checkLink maps the link status to done or fail.
func (s *station) checkLink() StationState {
	link := s.m.radio.Status()
	if link == LinkGotIP {
		return StationConnectDone
	}
	s.m.log.Debug("station not connected", slog.String("link", link.String()))
	s.err = fmt.Errorf("%w: %s", ErrConnectRejected, link)
	return StationConnectFail
}

// connectDone completes the connection setup.
func (s *station) connectDone() StationState {
	m := s.m
	ip, err := m.radio.IPInfo()
	if err != nil {
		s.warn("ip info", err)
	}
	s.ip = ip
	s.err = nil
	m.log.Info("station connected",
		slog.String("ssid", s.cfg.SSID),
		slog.String("ip", ip.IP.String()))

	if m.mode == ModeMeshRoot {
		s.warn("set mode", m.radio.SetMode(OpStationAP))
		m.broadcast(MeshStatusConnected)
	}
	return StationReady
}

// linkLost decides where to go after a lost connection.
func (s *station) linkLost(fail StationState) StationState {
	m := s.m
	m.log.Info("station link lost", slog.String("ssid", s.cfg.SSID))
	if m.mode == ModeMeshRoot {
		m.broadcast(MeshStatusNone)
	}
	if m.mode == ModeStationAuto {
		return StationScan
	}
	return fail
}

// disconnect drops the connection.
func (s *station) disconnect() StationState {
	m := s.m
	m.log.Info("station disconnect", slog.String("ssid", s.cfg.SSID))
	s.warn("auto-reconnect", m.radio.SetAutoReconnect(false))
	s.warn("disconnect", m.radio.Disconnect())
	if m.mode == ModeMeshRoot {
		m.broadcast(MeshStatusNone)
	}
	s.ip = IPInfo{}
	return StationDisconnectInProgress
}

// scan triggers an asynchronous scan. The result arrives through
// Manager.ScanDone.
func (s *station) scan() StationState {
	m := s.m
	// ensure we are in station mode
	s.warn("set mode", m.radio.SetMode(OpStation))
	if err := m.radio.Scan(m.ScanDone); err != nil {
		m.log.Info("station scan not started", slog.String("err", err.Error()))
		s.err = fmt.Errorf("%w: %w", ErrScanUnavailable, err)
		s.check.Countdown(m.cfg.check)
		return StationScanFail
	}
	return StationScanInProgress
}

// scanDone commits the scan winner.
func (s *station) scanDone() StationState {
	if s.winner == nil {
		return StationScan
	}
	s.cfg = s.winner.Config()
	s.m.log.Info("station selected", slog.String("ssid", s.cfg.SSID))
	return StationConnect
}

// scanResult is called by the manager for a completed scan while the
// station waits for it.
func (s *station) scanResult(status ScanStatus, nets []Network) {
	m := s.m
	if status != ScanOK {
		m.log.Info("station scan failed", slog.String("status", status.String()))
		s.err = fmt.Errorf("%w: %s", ErrScanUnavailable, status)
		s.check.Countdown(m.cfg.check)
		s.state = StationScanFail
		return
	}
	s.winner = Select(m.reg, nets)
	m.log.Debug("station scan done",
		slog.Int("networks", len(nets)),
		slog.Bool("match", s.winner != nil))
	s.state = StationScanDone
}

// warn logs a failed driver call.
func (s *station) warn(op string, err error) {
	if err != nil {
		s.m.log.Warn("station "+op, slog.String("err", err.Error()))
	}
}
