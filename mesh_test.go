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
	stdnet "net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selfSSID = "mesh_1_020000000001"

func newMeshSim(nets ...SimNetwork) *SimRadio {
	sim := NewSimRadio(testMAC)
	sim.SetNetworks(nets...)
	return sim
}

func TestMeshRootBroadcast(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(simNet("home", "secret", -40))
	m, err := NewMesh(sim, ModeMeshRoot, "home", "secret", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)
	h := new(countHandler)
	m.SetHandler(h)

	assert.Equal(t, StationConnect, m.StationState())
	assert.Equal(t, MeshIdle, m.MeshState())
	assert.Equal(t, "mesh_0_020000000001", m.MeshSSID())
	assert.Equal(t, "mesh_0_020000000001", sim.AP().SSID)

	m.Poll()
	clk.Advance(ConnectCheckInterval)
	poll(m, 2)
	require.True(t, m.IsConnected())
	assert.Equal(t, 1, h.connects)
	assert.Equal(t, OpStationAP, sim.Mode())
	ap := sim.AP()
	assert.Equal(t, selfSSID, ap.SSID)
	assert.Equal(t, AuthOpen, ap.Auth)
	assert.Equal(t, MeshMaxClients, ap.MaxClients)
	assert.False(t, ap.Hidden)
	assert.Equal(t, selfSSID, m.MeshSSID())

	// the mesh machine waits while the station is up
	assert.Equal(t, MeshIdle, m.MeshState())

	// losing the uplink withdraws the connected flag
	sim.Drop()
	clk.Advance(ConnectCheckInterval)
	m.Poll()
	assert.Equal(t, "mesh_0_020000000001", sim.AP().SSID)
	assert.False(t, m.IsConnected())

	// root gives up the station and joins the mesh instead
	m.Poll()
	assert.Equal(t, StationDisabled, m.StationState())
	assert.Equal(t, MeshConnect, m.MeshState())
}

func TestMeshRootFallbackJoin(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(
		simNet("home", "", -40),
		simNet("mesh_1_AABBCCDDEEFF", "", -50),
	)
	m, err := NewMesh(sim, ModeMeshRoot, "home", "", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)
	h := new(countHandler)
	m.SetHandler(h)

	m.Poll()
	clk.Advance(ConnectCheckInterval)
	poll(m, 2)
	require.True(t, m.IsConnected())
	assert.Equal(t, 1, h.connects)

	sim.Drop()
	clk.Advance(ConnectCheckInterval)
	m.Poll()
	assert.Equal(t, StationConnectFail, m.StationState())
	m.Poll()
	assert.Equal(t, StationDisabled, m.StationState())
	assert.Equal(t, MeshConnect, m.MeshState())
	m.Poll()
	assert.Equal(t, MeshScanInProgress, m.MeshState())
	m.Poll()
	assert.Equal(t, MeshConnectInProgress, m.MeshState())
	assert.Equal(t, "mesh_1_AABBCCDDEEFF", m.Uplink())

	clk.Advance(MeshCheckInterval)
	m.Poll()
	require.Equal(t, MeshConnectDone, m.MeshState())
	assert.Equal(t, 2, h.connects)

	// the mesh uplink counts as connected
	assert.True(t, m.IsConnected())
	assert.Equal(t, StatOK, StatusOf(m))
	assert.Equal(t, selfSSID, sim.AP().SSID)
}

func TestMeshRootDisconnect(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(simNet("home", "secret", -40))
	m, err := NewMesh(sim, ModeMeshRoot, "home", "secret", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)
	h := new(countHandler)
	m.SetHandler(h)

	m.Poll()
	clk.Advance(ConnectCheckInterval)
	poll(m, 2)
	require.True(t, m.IsConnected())
	require.Equal(t, selfSSID, sim.AP().SSID)

	m.Disconnect()
	assert.Equal(t, MeshDisabled, m.MeshState())
	poll(m, 3)
	assert.Equal(t, StationDisabled, m.StationState())
	assert.Equal(t, 1, h.disconnects)
	assert.False(t, m.IsConnected())

	// the broadcast falls back to "not connected"
	assert.Equal(t, "mesh_0_020000000001", sim.AP().SSID)
	assert.Equal(t, "mesh_0_020000000001", m.MeshSSID())

	// a disabled mesh is not restarted
	clk.Advance(MeshCheckInterval)
	poll(m, 3)
	assert.Equal(t, MeshDisabled, m.MeshState())
	assert.Equal(t, StatDISABLED, StatusOf(m))
}

func TestMeshRootGroup(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(simNet("home", "", -40))
	m, err := NewMesh(sim, ModeMeshRoot, "home", "", "mesh", "groupkey",
		WithClock(clk.Now), WithMaxClients(2))
	require.NoError(t, err)
	assert.Equal(t, "groupkey", m.Group())

	m.Poll()
	clk.Advance(ConnectCheckInterval)
	poll(m, 2)
	require.True(t, m.IsConnected())
	ap := sim.AP()
	assert.Equal(t, AuthWPA2, ap.Auth)
	assert.Equal(t, "groupkey", ap.Password)
	assert.Equal(t, 2, ap.MaxClients)
}

func TestMeshNonLeafJoin(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(
		simNet("mesh_1_AABBCCDDEEFF", "", -50),
		simNet("mesh_0_112233445566", "", -30),
		simNet("other_1_AABBCCDDEEF0", "", -10),
		simNet("mesh_1_A1B2C3D4E5F6", "", -70),
		simNet(selfSSID, "", -5),
	)
	m, err := NewMesh(sim, ModeMeshNonLeaf, "", "", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)
	h := new(countHandler)
	m.SetHandler(h)

	assert.Equal(t, StationDisabled, m.StationState())
	m.Poll()
	assert.Equal(t, MeshConnect, m.MeshState())
	m.Poll()
	assert.Equal(t, MeshScanInProgress, m.MeshState())
	m.Poll()
	assert.Equal(t, MeshConnectInProgress, m.MeshState())
	assert.Equal(t, "mesh_1_AABBCCDDEEFF", m.Uplink())
	assert.Equal(t, OpStationAP, sim.Mode())
	assert.False(t, m.IsConnected())

	clk.Advance(MeshCheckInterval)
	m.Poll()
	assert.Equal(t, MeshConnectDone, m.MeshState())
	assert.True(t, m.IsConnected())
	assert.Equal(t, 1, h.connects)
	assert.Equal(t, selfSSID, sim.AP().SSID)
	assert.True(t, m.IPInfo().IP.IsValid())

	// connect-done is terminal
	for range 5 {
		clk.Advance(MeshCheckInterval)
		m.Poll()
	}
	assert.Equal(t, MeshConnectDone, m.MeshState())
	assert.Equal(t, 1, h.connects)

	// leaving the mesh withdraws the broadcast
	m.Disconnect()
	assert.Equal(t, MeshDisabled, m.MeshState())
	assert.Equal(t, "mesh_0_020000000001", sim.AP().SSID)
	assert.False(t, m.IsConnected())
}

func TestMeshLeafJoin(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(simNet("mesh_1_AABBCCDDEEFF", "", -50))
	m, err := NewMesh(sim, ModeMeshLeaf, "", "", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)

	poll(m, 3)
	assert.Equal(t, MeshConnectInProgress, m.MeshState())
	assert.Equal(t, OpStation, sim.Mode())
	clk.Advance(MeshCheckInterval)
	m.Poll()
	assert.True(t, m.IsConnected())

	// leaves never broadcast
	assert.Empty(t, sim.AP().SSID)
	assert.Equal(t, "mesh_0_020000000001", m.MeshSSID())
}

func TestMeshNoUplink(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(
		simNet("mesh_0_AABBCCDDEEFF", "", -50),
		simNet("home", "", -20),
	)
	m, err := NewMesh(sim, ModeMeshNonLeaf, "", "", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)

	poll(m, 3)
	assert.Equal(t, MeshConnect, m.MeshState())
	assert.Empty(t, m.Uplink())

	// retry waits for the check interval
	poll(m, 3)
	assert.Equal(t, MeshConnect, m.MeshState())

	// a node comes up
	sim.SetNetworks(simNet("mesh_1_AABBCCDDEEFF", "", -50))
	clk.Advance(MeshCheckInterval)
	m.Poll()
	assert.Equal(t, MeshScanInProgress, m.MeshState())
	m.Poll()
	assert.Equal(t, MeshConnectInProgress, m.MeshState())
}

func TestMeshJoinRejected(t *testing.T) {
	clk := newTestClock()
	sim := newMeshSim(simNet("mesh_1_AABBCCDDEEFF", "other", -50))
	m, err := NewMesh(sim, ModeMeshNonLeaf, "", "", "mesh", "mine", WithClock(clk.Now))
	require.NoError(t, err)

	poll(m, 3)
	require.Equal(t, MeshConnectInProgress, m.MeshState())
	clk.Advance(MeshCheckInterval)
	m.Poll()
	assert.Equal(t, MeshConnectFail, m.MeshState())
	assert.ErrorIs(t, m.Err(), ErrConnectRejected)

	// terminal until asked again
	clk.Advance(time.Minute)
	poll(m, 3)
	assert.Equal(t, MeshConnectFail, m.MeshState())
	m.Connect()
	assert.Equal(t, MeshConnect, m.MeshState())
	assert.NoError(t, m.Err())
}

func TestMeshScanRefused(t *testing.T) {
	clk := newTestClock()
	radio := &refusingRadio{SimRadio: newMeshSim(simNet("mesh_1_AABBCCDDEEFF", "", -50)), refuse: true}
	m, err := NewMesh(radio, ModeMeshNonLeaf, "", "", "mesh", "", WithClock(clk.Now))
	require.NoError(t, err)

	poll(m, 3)
	assert.Equal(t, MeshScanInProgress, m.MeshState())
	radio.refuse = false
	clk.Advance(MeshCheckInterval)
	m.Poll()
	assert.Equal(t, MeshConnect, m.MeshState())
	poll(m, 2)
	assert.Equal(t, MeshConnectInProgress, m.MeshState())
}

func TestMeshPeers(t *testing.T) {
	sim := newMeshSim()
	sim.SetPeers(Peer{
		MAC: stdnet.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		IP:  netip.MustParseAddr("192.168.4.2"),
	})
	m, err := NewMesh(sim, ModeMeshNonLeaf, "", "", "mesh", "")
	require.NoError(t, err)
	peers := m.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", peers[0].MAC.String())
}

func TestNewMeshErrors(t *testing.T) {
	sim := NewSimRadio(testMAC)
	_, err := NewMesh(sim, ModeStationAuto, "home", "", "mesh", "")
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = NewMesh(sim, Mode(42), "home", "", "mesh", "")
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = NewMesh(sim, ModeMeshRoot, "", "", "mesh", "")
	assert.ErrorIs(t, err, ErrConfigMissing)
	_, err = NewMesh(sim, ModeMeshNonLeaf, "", "", "a_very_long_prefix", "")
	assert.ErrorIs(t, err, ErrPrefixTooLong)
	_, err = NewMesh(sim, ModeMeshLeaf, "", "", "mesh",
		"0123456789012345678901234567890123456789012345678901234567890123")
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	// fixed mode is handed through
	m, err := NewMesh(sim, ModeStationFixed, "home", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, ModeStationFixed, m.Mode())
	assert.Equal(t, MeshDisabled, m.MeshState())
	assert.Empty(t, m.MeshSSID())

	// longest prefix still fits
	m, err = NewMesh(sim, ModeMeshLeaf, "", "", "abcdefghijklm", "")
	require.NoError(t, err)
	assert.Len(t, m.MeshSSID(), MaxSSID-4)
}
