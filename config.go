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
	"errors"
	"fmt"
)

// Driver imposed limits (bytes)
const (
	MaxStationSSID = 31 // station SSID
	MaxPassword    = 63 // WPA passphrase
	MaxSSID        = 32 // broadcast SSID (802.11)
	MaxMeshPrefix  = 13 // mesh SSID prefix
)

// Error messages
var (
	ErrConfigMissing   = errors.New("no SSID configured")
	ErrConnectTimeout  = errors.New("connect timeout")
	ErrConnectRejected = errors.New("connect rejected")
	ErrScanUnavailable = errors.New("scan unavailable")
	ErrSSIDTooLong     = errors.New("SSID too long")
	ErrPasswordTooLong = errors.New("password too long")
	ErrPrefixTooLong   = errors.New("mesh prefix too long")
	ErrInvalidMode     = errors.New("invalid mode")
	ErrNotSupported    = errors.New("not supported by radio")
)

//----------------------------------------------------------------------

// StationConfig holds the credentials the station connects with.
type StationConfig struct {
	SSID     string
	Password string
}

// Validate checks the credentials against driver limits.
func (c StationConfig) Validate() error {
	if len(c.SSID) > MaxStationSSID {
		return fmt.Errorf("%w: %q (%d > %d)", ErrSSIDTooLong, c.SSID, len(c.SSID), MaxStationSSID)
	}
	if len(c.Password) > MaxPassword {
		return fmt.Errorf("%w: %d > %d", ErrPasswordTooLong, len(c.Password), MaxPassword)
	}
	return nil
}

// Empty returns true if no SSID is set.
func (c StationConfig) Empty() bool {
	return len(c.SSID) == 0
}

//----------------------------------------------------------------------

// APCandidate is a known access point. An empty password
// denotes an open network.
type APCandidate struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
}

// Config returns station credentials for the candidate.
func (ap *APCandidate) Config() StationConfig {
	return StationConfig{SSID: ap.SSID, Password: ap.Password}
}

// Registry is the ordered list of known access points.
// It is immutable once created.
type Registry struct {
	list []APCandidate
}

// NewRegistry creates a registry from a list of candidates. The list
// is copied; order is preserved and decides between duplicate SSIDs.
func NewRegistry(list ...APCandidate) (*Registry, error) {
	if len(list) == 0 {
		return nil, ErrConfigMissing
	}
	reg := new(Registry)
	reg.list = make([]APCandidate, len(list))
	for i, ap := range list {
		if len(ap.SSID) == 0 {
			return nil, fmt.Errorf("candidate %d: %w", i, ErrConfigMissing)
		}
		if err := ap.Config().Validate(); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		reg.list[i] = ap
	}
	return reg, nil
}

// Len returns the number of candidates.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.list)
}

// Find returns the first candidate with the given SSID or nil.
func (r *Registry) Find(ssid string) *APCandidate {
	if r == nil {
		return nil
	}
	for i := range r.list {
		if r.list[i].SSID == ssid {
			return &r.list[i]
		}
	}
	return nil
}

// List returns a copy of the candidates.
func (r *Registry) List() []APCandidate {
	if r == nil {
		return nil
	}
	out := make([]APCandidate, len(r.list))
	copy(out, r.list)
	return out
}
