//go:build rp2350

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
	"io"
	"log/slog"
	"machine"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref *cyw43439.Device // reference to device
	log *slog.Logger
	cfg picoConfig

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	sta     StationConfig
	stack   *stacks.PortStack
	mac     [6]byte
	link    linkState
	joining atomic.Bool
	auto    atomic.Bool
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// Initialize device. Host is the DHCP hostname; a non-empty ip is
// requested from DHCP and used as static address if DHCP fails.
func InitDevice(host, ip string) Device {
	// access device
	dev := new(Pico2WDevice)
	dev.ref = cyw43439.NewPicoWDevice()
	dev.log = slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelDebug - 1}))
	dev.cfg = picoConfig{
		Hostname:    host,
		RequestedIP: ip,
		TCPPorts:    1,
	}
	return dev
}

// Logger returns the serial console logger of the device.
func (dev *Pico2WDevice) Logger() *slog.Logger {
	return dev.log
}

// Radio initializes the wifi chip (once) and returns it as Radio.
func (dev *Pico2WDevice) Radio() (Radio, error) {
	dev.initOnce.Do(func() {
		time.Sleep(2 * time.Second)
		wificfg := cyw43439.DefaultWifiConfig()
		wificfg.Logger = dev.log
		dev.log.Info("initializing pico W device...")
		devInitTime := time.Now()
		if dev.initErr = dev.ref.Init(wificfg); dev.initErr != nil {
			return
		}
		dev.log.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))
		dev.mac, dev.initErr = dev.ref.HardwareAddr6()
	})
	if dev.initErr != nil {
		return nil, dev.initErr
	}
	return dev, nil
}

// Listen returns a TCP listener on the given port. Requires a
// connected station.
func (dev *Pico2WDevice) Listen(port uint16) (lst net.Listener, state int) {
	dev.mu.Lock()
	stack := dev.stack
	dev.mu.Unlock()
	if stack == nil || dev.Status() != LinkGotIP {
		return nil, StatDEV
	}
	listener, err := stacks.NewTCPListener(stack, stacks.TCPListenerConfig{
		MaxConnections: 3,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, StatLISTEN1
	}
	if listener.StartListening(port) != nil {
		return nil, StatLISTEN2
	}
	return listener, StatOK
}

//----------------------------------------------------------------------
// Radio implementation
//----------------------------------------------------------------------

// SetMode switches the operating mode. The driver has no access
// point support.
func (dev *Pico2WDevice) SetMode(mode OpMode) error {
	switch mode {
	case OpNull, OpStation:
		return nil
	}
	return ErrNotSupported
}

// SetStationConfig applies station credentials.
func (dev *Pico2WDevice) SetStationConfig(cfg StationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.sta = cfg
	return nil
}

// Connect joins the network in the background; progress is reported
// by Status.
func (dev *Pico2WDevice) Connect() error {
	if !dev.joining.CompareAndSwap(false, true) {
		return nil // join in progress
	}
	dev.mu.Lock()
	sta := dev.sta
	dev.mu.Unlock()
	gen := dev.link.begin()
	go func() {
		defer dev.joining.Store(false)
		status, ip := dev.join(sta)
		// a disconnect meanwhile wins
		if !dev.link.resolve(gen, status, ip) && status == LinkGotIP {
			dev.mu.Lock()
			dev.stack.SetAddr(netip.Addr{})
			dev.mu.Unlock()
		}
	}()
	return nil
}

// Disconnect drops the stack address; the chip stays associated
// until the next join.
func (dev *Pico2WDevice) Disconnect() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.stack != nil {
		dev.stack.SetAddr(netip.Addr{})
	}
	dev.link.reset(LinkIdle)
	return nil
}

// SetAutoReconnect is recorded only.
func (dev *Pico2WDevice) SetAutoReconnect(on bool) error {
	dev.auto.Store(on)
	return nil
}

// Scan is not available on this driver.
func (dev *Pico2WDevice) Scan(done ScanHandler) error {
	return ErrNotSupported
}

// Status returns the station link status.
func (dev *Pico2WDevice) Status() LinkStatus {
	status, _ := dev.link.get()
	return status
}

// IPInfo returns the address obtained by DHCP.
func (dev *Pico2WDevice) IPInfo() (IPInfo, error) {
	_, ip := dev.link.get()
	return ip, nil
}

// SetAPConfig is not available on this driver.
func (dev *Pico2WDevice) SetAPConfig(cfg APConfig) error {
	return ErrNotSupported
}

// PeerCount returns zero (no access point).
func (dev *Pico2WDevice) PeerCount() int {
	return 0
}

// Peers returns nil (no access point).
func (dev *Pico2WDevice) Peers() []Peer {
	return nil
}

// HardwareAddr returns the station MAC address.
func (dev *Pico2WDevice) HardwareAddr() ([6]byte, error) {
	return dev.mac, nil
}

//======================================================================
// adapted from https://raw.githubusercontent.com/soypat/cyw43439,
// file '/examples/common/common.go'.
//======================================================================

const mtu = cyw43439.MTU

type picoConfig struct {
	// DHCP requested hostname.
	Hostname string
	// DHCP requested IP address. On failing to find DHCP server is used as static IP.
	RequestedIP string
	// Number of UDP ports to open for the stack. (we'll actually open one more than this for DHCP)
	UDPPorts uint16
	// Number of TCP ports to open for the stack.
	TCPPorts uint16
}

var errDHCP = errors.New("no DHCP reply")

// join a network and acquire an address.
func (dev *Pico2WDevice) join(sta StationConfig) (LinkStatus, IPInfo) {
	logger := dev.log
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127), // Make temporary logger that does no logging.
		}))
	}
	if len(sta.Password) == 0 {
		logger.Info("joining open network:", slog.String("ssid", sta.SSID))
	} else {
		logger.Info("joining WPA secure network", slog.String("ssid", sta.SSID), slog.Int("passlen", len(sta.Password)))
	}
	if err := dev.ref.JoinWPA2(sta.SSID, sta.Password); err != nil {
		logger.Error("wifi join failed", slog.String("err", err.Error()))
		return LinkConnectFail, IPInfo{}
	}
	logger.Info("wifi join success!", slog.String("mac", net.HardwareAddr(dev.mac[:]).String()))

	ip, err := dev.dhcp(logger)
	if err != nil {
		logger.Error("dhcp failed", slog.String("err", err.Error()))
		return LinkConnectFail, IPInfo{}
	}
	return LinkGotIP, ip
}

// dhcp requests an address; the stack is created on first use.
func (dev *Pico2WDevice) dhcp(logger *slog.Logger) (info IPInfo, err error) {
	var reqAddr netip.Addr
	if dev.cfg.RequestedIP != "" {
		if reqAddr, err = netip.ParseAddr(dev.cfg.RequestedIP); err != nil {
			return
		}
	}
	dev.mu.Lock()
	stack := dev.stack
	if stack == nil {
		stack = stacks.NewPortStack(stacks.PortStackConfig{
			MAC:             dev.mac,
			MaxOpenPortsUDP: int(dev.cfg.UDPPorts + 1), // extra UDP port for DHCP client
			MaxOpenPortsTCP: int(dev.cfg.TCPPorts),
			MTU:             mtu,
			Logger:          logger,
		})
		dev.ref.RecvEthHandle(stack.RecvEth)

		// Begin asynchronous packet handling.
		go nicLoop(dev.ref, stack)
		dev.stack = stack
	}
	dev.mu.Unlock()

	// Perform DHCP request.
	dhcpClient := stacks.NewDHCPClient(stack, dhcp.DefaultClientPort)
	err = dhcpClient.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      dev.cfg.Hostname,
	})
	if err != nil {
		return
	}
	if !awaitLease(picoLease{dhcpClient}, 16, time.Second/2, logger) {
		if !reqAddr.IsValid() {
			return info, errDHCP
		}
		logger.Info("DHCP did not complete, assigning static IP", slog.String("ip", dev.cfg.RequestedIP))
		stack.SetAddr(reqAddr)
		info.IP = reqAddr
		return info, nil
	}
	ip := dhcpClient.Offer()
	logger.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(dhcpClient.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("gateway", dhcpClient.Gateway().String()),
		slog.Duration("lease", dhcpClient.IPLeaseTime()),
	)
	stack.SetAddr(ip) // It's important to set the IP address after DHCP completes.
	info = IPInfo{
		IP:      ip,
		Netmask: netmask(int(dhcpClient.CIDRBits())),
		Gateway: dhcpClient.Gateway(),
	}
	return
}

// DHCP request on the device stack
type picoLease struct {
	*stacks.DHCPClient
}

func (l picoLease) Bound() bool {
	return l.State() == dhcp.StateBound
}

// netmask of an IPv4 prefix length
func netmask(bits int) netip.Addr {
	var m [4]byte
	for i := range m {
		switch {
		case bits >= 8:
			m[i] = 0xff
			bits -= 8
		case bits > 0:
			m[i] = byte(0xff << (8 - bits))
			bits = 0
		}
	}
	return netip.AddrFrom4(m)
}

func nicLoop(dev *cyw43439.Device, Stack *stacks.PortStack) {
	// Maximum number of packets to queue before sending them.
	const (
		queueSize                = 3
		maxRetriesBeforeDropping = 3
	)
	var queue [queueSize][mtu]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int
	markSent := func(i int) {
		queue[i] = [mtu]byte{} // Not really necessary.
		lenBuf[i] = 0
		retries[i] = 0
	}
	for {
		stallRx := true
		// Poll for incoming packets.
		for i := 0; i < 1; i++ {
			gotPacket, err := dev.PollOne()
			if err != nil {
				println("poll error:", err.Error())
			}
			if !gotPacket {
				break
			}
			stallRx = false
		}

		// Queue packets to be sent.
		for i := range queue {
			if retries[i] != 0 {
				continue // Packet currently queued for retransmission.
			}
			var err error
			buf := queue[i][:]
			lenBuf[i], err = Stack.HandleEth(buf[:])
			if err != nil {
				println("stack error n(should be 0)=", lenBuf[i], "err=", err.Error())
				lenBuf[i] = 0
				continue
			}
			if lenBuf[i] == 0 {
				break
			}
		}
		stallTx := lenBuf == [queueSize]int{}
		if stallTx {
			if stallRx {
				// Avoid busy waiting when both Rx and Tx stall.
				time.Sleep(51 * time.Millisecond)
			}
			continue
		}

		// Send queued packets.
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			err := dev.SendEth(queue[i][:n])
			if err != nil {
				// Queue packet for retransmission.
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					println("dropped outgoing packet:", err.Error())
				}
			} else {
				markSent(i)
			}
		}
	}
}
