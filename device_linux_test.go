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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimRadioJoin(t *testing.T) {
	sim := NewSimRadio(testMAC)
	sim.SetNetworks(simNet("a", "", -70), simNet("home", "secret", -40))

	// connect requires station mode
	assert.Error(t, sim.Connect())

	require.NoError(t, sim.SetMode(OpStation))
	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "home", Password: "secret"}))
	require.NoError(t, sim.Connect())
	assert.Equal(t, LinkGotIP, sim.Status())
	info, err := sim.IPInfo()
	require.NoError(t, err)
	assert.Equal(t, "192.168.4.11", info.IP.String())
	assert.Equal(t, "192.168.4.1", info.Gateway.String())

	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "home", Password: "bad"}))
	require.NoError(t, sim.Connect())
	assert.Equal(t, LinkWrongPassword, sim.Status())

	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "gone"}))
	require.NoError(t, sim.Connect())
	assert.Equal(t, LinkNoAPFound, sim.Status())

	require.NoError(t, sim.Disconnect())
	assert.Equal(t, LinkIdle, sim.Status())
}

func TestSimRadioDelayedJoin(t *testing.T) {
	sim := NewSimRadio(testMAC)
	sim.SetNetworks(simNet("home", "", -40))
	sim.JoinDelay = 5 * time.Millisecond
	require.NoError(t, sim.SetMode(OpStation))
	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "home"}))
	require.NoError(t, sim.Connect())
	assert.Equal(t, LinkConnecting, sim.Status())
	assert.Eventually(t, func() bool {
		return sim.Status() == LinkGotIP
	}, time.Second, time.Millisecond)
}

func TestSimRadioDisconnectDuringJoin(t *testing.T) {
	sim := NewSimRadio(testMAC)
	sim.SetNetworks(simNet("home", "", -40))
	sim.JoinDelay = 10 * time.Millisecond
	require.NoError(t, sim.SetMode(OpStation))
	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "home"}))
	require.NoError(t, sim.Connect())
	require.NoError(t, sim.Disconnect())

	// the pending join must not bring the link back
	assert.Never(t, func() bool {
		return sim.Status() != LinkIdle
	}, 50*time.Millisecond, time.Millisecond)
	info, err := sim.IPInfo()
	require.NoError(t, err)
	assert.False(t, info.IP.IsValid())

	// a newer attempt wins over an older one
	require.NoError(t, sim.Connect())
	require.NoError(t, sim.SetStationConfig(StationConfig{SSID: "home", Password: "wrong"}))
	require.NoError(t, sim.Connect())
	assert.Eventually(t, func() bool {
		return sim.Status() == LinkWrongPassword
	}, time.Second, time.Millisecond)
	assert.Never(t, func() bool {
		return sim.Status() == LinkGotIP
	}, 30*time.Millisecond, time.Millisecond)
}

func TestSimRadioScan(t *testing.T) {
	sim := NewSimRadio(testMAC)
	sim.SetNetworks(simNet("a", "", -70), simNet("b", "", -40))

	var got []Network
	var status ScanStatus = ScanPending
	require.NoError(t, sim.Scan(func(s ScanStatus, nets []Network) {
		status, got = s, nets
	}))
	assert.Equal(t, ScanOK, status)
	assert.Len(t, got, 2)

	sim.FailScans(true)
	require.NoError(t, sim.Scan(func(s ScanStatus, nets []Network) {
		status, got = s, nets
	}))
	assert.Equal(t, ScanFailed, status)
	assert.Nil(t, got)

	// one scan at a time
	sim.ScanDelay = time.Hour
	require.NoError(t, sim.Scan(func(ScanStatus, []Network) {}))
	assert.ErrorIs(t, sim.Scan(func(ScanStatus, []Network) {}), errScanBusy)
}

func TestSimRadioAP(t *testing.T) {
	sim := NewSimRadio(testMAC)
	assert.ErrorIs(t, sim.SetAPConfig(APConfig{SSID: "0123456789abcdef0123456789abcdefX"}), ErrSSIDTooLong)
	require.NoError(t, sim.SetAPConfig(APConfig{SSID: "mesh_0_020000000001", MaxClients: 4}))
	assert.Equal(t, 4, sim.AP().MaxClients)
	assert.Zero(t, sim.PeerCount())
	mac, err := sim.HardwareAddr()
	require.NoError(t, err)
	assert.Equal(t, testMAC, mac)
}

func TestLinuxDevice(t *testing.T) {
	dev := InitDevice("", "")
	radio, err := dev.Radio()
	require.NoError(t, err)
	assert.Same(t, dev.(*LinuxDevice).Sim(), radio)

	lst, state := dev.Listen(0)
	require.Equal(t, StatOK, state)
	require.NotNil(t, lst)
	assert.NoError(t, lst.Close())
}
