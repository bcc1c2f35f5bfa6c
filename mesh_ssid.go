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
	"encoding/hex"
	"fmt"
	"strings"
)

// Mesh status flags as broadcast in the SSID
const (
	MeshStatusNone      byte = '0'
	MeshStatusConnected byte = '1'
)

// MeshIdentity is the SSID a mesh node broadcasts:
// "<prefix>_<status>_<postfix>".
type MeshIdentity struct {
	Prefix  string // mesh name
	Postfix string // node MAC as 12 upper-case hex digits
	Status  byte   // MeshStatusNone or MeshStatusConnected
}

// NewMeshIdentity creates the identity of a node with given MAC.
func NewMeshIdentity(prefix string, mac [6]byte) (*MeshIdentity, error) {
	if len(prefix) > MaxMeshPrefix {
		return nil, fmt.Errorf("%w: %q (%d > %d)", ErrPrefixTooLong, prefix, len(prefix), MaxMeshPrefix)
	}
	return &MeshIdentity{
		Prefix:  prefix,
		Postfix: strings.ToUpper(hex.EncodeToString(mac[:])),
		Status:  MeshStatusNone,
	}, nil
}

// SSID assembles the broadcast SSID.
func (id *MeshIdentity) SSID() (string, error) {
	ssid := id.Prefix + "_" + string(id.Status) + "_" + id.Postfix
	if len(ssid) > MaxSSID {
		return "", fmt.Errorf("%w: %q (%d > %d)", ErrSSIDTooLong, ssid, len(ssid), MaxSSID)
	}
	return ssid, nil
}

// Connected returns true if the node announces an uplink.
func (id *MeshIdentity) Connected() bool {
	return id.Status == MeshStatusConnected
}

// ParseMeshSSID splits a broadcast SSID into its parts. The prefix
// may itself contain underscores; status and postfix may not.
func ParseMeshSSID(ssid string) (id MeshIdentity, ok bool) {
	i := strings.LastIndexByte(ssid, '_')
	if i < 2 || ssid[i-2] != '_' {
		return
	}
	postfix := ssid[i+1:]
	if len(postfix) != 12 {
		return
	}
	if _, err := hex.DecodeString(postfix); err != nil {
		return
	}
	status := ssid[i-1]
	if status != MeshStatusNone && status != MeshStatusConnected {
		return
	}
	return MeshIdentity{
		Prefix:  ssid[:i-2],
		Postfix: postfix,
		Status:  status,
	}, true
}
