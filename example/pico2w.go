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

package main

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"git.sr.ht/~moody/ninep"
	"github.com/bfix/wifimgr"
)

// WiFi settings and 9p port (set with -ldflags "-X main.SSID=...")
var (
	SSID   string
	Passwd string
	Host   string
	IP     string
	Port   string = "564"
	Mode   string = "fixed"
	Prefix string = "wifimgr"
	Group  string
)

// devices with a console logger
type logging interface {
	Logger() *slog.Logger
}

// manage the WiFi connection and serve its state via 9p
func main() {
	// access device
	dev := wifimgr.InitDevice(Host, IP)
	state := wifimgr.NewStatus(dev)
	defer state.Trap(30 * time.Second)

	var opts []wifimgr.Option
	if l, ok := dev.(logging); ok {
		opts = append(opts, wifimgr.WithLogger(l.Logger()))
	}
	radio, err := dev.Radio()
	if err != nil {
		state.Set(wifimgr.StatDEV, 0)
		return
	}
	port, err := strconv.ParseUint(Port, 10, 16)
	if err != nil {
		state.Set(wifimgr.StatPORT, 0)
		return
	}

	// create manager for the configured mode
	mgr, stat := setup(radio, opts...)
	if stat != wifimgr.StatOK {
		state.Set(stat, 0)
		return
	}

	// construct filesystem
	fs, err := wifimgr.NewStatusNamespace(mgr, "sys", "sys")
	if err != nil {
		state.Set(wifimgr.StatNS, 0)
		return
	}

	// start serving once connected
	listening := false
	mgr.SetHandler(wifimgr.HandlerFuncs{
		Connect: func(bool) {
			if listening {
				return
			}
			lst, stat := dev.Listen(uint16(port))
			if stat != wifimgr.StatOK {
				state.Set(stat, 3)
				return
			}
			listening = true
			go serve(lst, fs, state)
		},
	})

	// drive the state machines
	for {
		mgr.Poll()
		if s, _ := state.Get(); s != wifimgr.StatEXCP {
			state.Set(wifimgr.StatusOf(mgr), 0)
		}
		time.Sleep(100 * time.Millisecond)
	}

	// srv tcp!<host>!9fs wifi
	// mount /srv/wifi /n/wifi
	// cat /n/wifi/wifi/station
	// unmount /n/wifi
	// rm /srv/wifi
}

// create the manager for the linked-in settings. Auto mode needs
// scan results which the driver cannot deliver.
func setup(radio wifimgr.Radio, opts ...wifimgr.Option) (*wifimgr.Manager, int) {
	mode, err := wifimgr.ParseMode(Mode)
	if err != nil || mode == wifimgr.ModeStationAuto {
		return nil, wifimgr.StatCONFIG
	}
	mgr, err := wifimgr.NewMesh(radio, mode, SSID, Passwd, Prefix, Group, opts...)
	if err != nil {
		return nil, wifimgr.StatCONFIG
	}
	return mgr, wifimgr.StatOK
}

// serve filesystem via 9p
func serve(lst net.Listener, fs *wifimgr.Namespace, state *wifimgr.Status) {
	defer lst.Close()
	for {
		c, err := lst.Accept()
		if err != nil {
			state.Set(wifimgr.StatSRV, 3)
			return
		}
		srv := ninep.NewSrv(func() ninep.FS { return fs })
		go srv.ServeIO(c, c)
	}
}
