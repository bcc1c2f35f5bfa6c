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
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Default intervals
const (
	ConnectCheckInterval = 15 * time.Second
	ConnectTimeout       = 30 * time.Second
	MeshCheckInterval    = 10 * time.Second
	MeshMaxClients       = 4
)

// Handler is notified about connects and disconnects. Calls are made
// from Poll after all state has been updated, so a handler may call
// back into the Manager.
type Handler interface {
	OnConnect(ok bool)
	OnDisconnect(ok bool)
}

// HandlerFuncs adapts plain functions to a Handler; nil functions
// are skipped.
type HandlerFuncs struct {
	Connect    func(ok bool)
	Disconnect func(ok bool)
}

// OnConnect calls the connect function.
func (h HandlerFuncs) OnConnect(ok bool) {
	if h.Connect != nil {
		h.Connect(ok)
	}
}

// OnDisconnect calls the disconnect function.
func (h HandlerFuncs) OnDisconnect(ok bool) {
	if h.Disconnect != nil {
		h.Disconnect(ok)
	}
}

// handler events
type event int

const (
	evConnect event = iota
	evDisconnect
)

//----------------------------------------------------------------------

// settings of a manager
type config struct {
	log        *slog.Logger
	clock      Clock
	check      time.Duration
	timeout    time.Duration
	meshCheck  time.Duration
	maxClients int
}

// Option configures a Manager.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithClock sets the time source of all timers.
func WithClock(clk Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithCheckInterval sets the link check interval.
func WithCheckInterval(d time.Duration) Option {
	return func(c *config) { c.check = d }
}

// WithConnectTimeout sets the connect timeout for non-fixed modes.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMeshInterval sets the mesh check interval.
func WithMeshInterval(d time.Duration) Option {
	return func(c *config) { c.meshCheck = d }
}

// WithMaxClients sets the client limit of the mesh access point.
func WithMaxClients(n int) Option {
	return func(c *config) { c.maxClients = n }
}

func newConfig(opts []Option) *config {
	cfg := &config{
		check:      ConnectCheckInterval,
		timeout:    ConnectTimeout,
		meshCheck:  MeshCheckInterval,
		maxClients: MeshMaxClients,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127), // no logging
		}))
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

//----------------------------------------------------------------------

// completed scan waiting for the next poll
type scanEvent struct {
	status ScanStatus
	nets   []Network
}

// Manager drives the station and mesh state machines of a radio.
// Poll must be called regularly; all other methods may be called
// from any goroutine.
type Manager struct {
	mu      sync.Mutex
	cfg     *config
	log     *slog.Logger
	mode    Mode
	radio   Radio
	reg     *Registry     // known access points (auto mode)
	mac     [6]byte       // station hardware address
	ident   *MeshIdentity // mesh broadcast identity (mesh modes)
	group   string        // mesh group
	ap      APConfig      // mesh access point
	sta     *station
	msh     *mesh
	handler Handler
	events  []event

	pendMu  sync.Mutex
	pending *scanEvent
}

// create a manager and reset the radio
func newManager(radio Radio, mode Mode, opts []Option) (*Manager, error) {
	cfg := newConfig(opts)
	m := &Manager{
		cfg:   cfg,
		log:   cfg.log,
		mode:  mode,
		radio: radio,
	}
	m.sta = &station{
		m:       m,
		state:   StationIdle,
		check:   NewTimer(cfg.clock),
		timeout: NewTimer(cfg.clock),
	}
	m.msh = &mesh{
		m:     m,
		state: MeshDisabled,
		check: NewTimer(cfg.clock),
	}
	m.warn("set mode", radio.SetMode(OpNull))
	m.warn("set config", radio.SetStationConfig(StationConfig{}))
	m.warn("auto-reconnect", radio.SetAutoReconnect(false))

	// get our MAC address for future use
	var err error
	if m.mac, err = radio.HardwareAddr(); err != nil {
		return nil, fmt.Errorf("hardware address: %w", err)
	}
	m.log.Info("wifi init", slog.String("mode", mode.String()), slog.String("mac", m.MAC()))
	return m, nil
}

// NewFixed creates a manager connecting to a single access point
// forever.
func NewFixed(radio Radio, ssid, passwd string, opts ...Option) (*Manager, error) {
	cfg := StationConfig{SSID: ssid, Password: passwd}
	if cfg.Empty() {
		return nil, ErrConfigMissing
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := newManager(radio, ModeStationFixed, opts)
	if err != nil {
		return nil, err
	}
	m.sta.cfg = cfg
	m.sta.state = StationConnect
	return m, nil
}

// NewAuto creates a manager selecting the strongest known access point
// by scanning.
func NewAuto(radio Radio, list []APCandidate, opts ...Option) (*Manager, error) {
	reg, err := NewRegistry(list...)
	if err != nil {
		return nil, err
	}
	m, err := newManager(radio, ModeStationAuto, opts)
	if err != nil {
		return nil, err
	}
	m.reg = reg
	m.sta.state = StationScan
	return m, nil
}

// NewMesh creates a manager for a mesh role. The root (and fixed mode)
// connects to ssid; other roles join the mesh named prefix. A non-empty
// group is the passphrase of the mesh access points.
func NewMesh(radio Radio, mode Mode, ssid, passwd, prefix, group string, opts ...Option) (*Manager, error) {
	switch mode {
	case ModeStationFixed:
		return NewFixed(radio, ssid, passwd, opts...)
	case ModeMeshRoot, ModeMeshNonLeaf, ModeMeshLeaf:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	sta := StationConfig{SSID: ssid, Password: passwd}
	if mode == ModeMeshRoot {
		if sta.Empty() {
			return nil, ErrConfigMissing
		}
		if err := sta.Validate(); err != nil {
			return nil, err
		}
	}
	ap, err := meshAP(group)
	if err != nil {
		return nil, err
	}
	m, err := newManager(radio, mode, opts)
	if err != nil {
		return nil, err
	}
	if m.ident, err = NewMeshIdentity(prefix, m.mac); err != nil {
		return nil, err
	}
	if _, err = m.ident.SSID(); err != nil {
		return nil, err
	}
	m.group = group
	m.ap = ap
	m.ap.MaxClients = m.cfg.maxClients
	m.msh.state = MeshIdle
	if mode != ModeMeshLeaf {
		m.broadcast(MeshStatusNone)
	}

	if mode == ModeMeshRoot {
		m.sta.cfg = sta
		m.sta.state = StationConnect
		if err = radio.SetStationConfig(sta); err != nil {
			m.log.Warn("set config", slog.String("err", err.Error()))
		}
	} else {
		// the station role is handed to the mesh machine
		m.sta.state = StationDisabled
	}
	return m, nil
}

// access point settings for a mesh group
func meshAP(group string) (APConfig, error) {
	ap := APConfig{Auth: AuthOpen}
	if len(group) > 0 {
		if err := (StationConfig{Password: group}).Validate(); err != nil {
			return ap, err
		}
		ap.Auth = AuthWPA2
		ap.Password = group
	}
	return ap, nil
}

//----------------------------------------------------------------------

// SetHandler sets the connect/disconnect handler (nil to remove).
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Connect requests a (re-)connect. Non-root mesh nodes restart
// joining the mesh.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sta.err = nil
	switch m.mode {
	case ModeMeshNonLeaf, ModeMeshLeaf:
		m.msh.state = MeshConnect
		m.msh.wait = false
		return
	case ModeMeshRoot:
		m.msh.state = MeshIdle
	case ModeStationAuto:
		if m.sta.cfg.Empty() {
			m.sta.state = StationScan
			return
		}
	}
	m.sta.state = StationConnect
}

// Disconnect requests a disconnect. The handler is notified once the
// radio confirmed it.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case ModeMeshNonLeaf, ModeMeshLeaf:
		m.msh.state = MeshDisabled
		if m.ident.Connected() {
			m.broadcast(MeshStatusNone)
		}
	case ModeMeshRoot:
		m.msh.state = MeshDisabled
	}
	m.sta.state = StationDisconnect
}

// IsConnected returns true while the node has a working uplink. A root
// that lost its station uplink is connected once it joined the mesh.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case ModeMeshNonLeaf, ModeMeshLeaf:
		return m.msh.state == MeshConnectDone
	case ModeMeshRoot:
		return m.sta.state == StationReady || m.msh.state == MeshConnectDone
	}
	return m.sta.state == StationReady
}

// Poll advances both state machines by one step each.
func (m *Manager) Poll() {
	m.mu.Lock()
	m.pendMu.Lock()
	ev := m.pending
	m.pending = nil
	m.pendMu.Unlock()
	if ev != nil {
		m.scanCompleted(ev)
	}
	m.sta.step()
	m.msh.step()

	events := m.events
	m.events = nil
	h := m.handler
	m.mu.Unlock()

	if h == nil {
		return
	}
	for _, ev := range events {
		switch ev {
		case evConnect:
			h.OnConnect(true)
		case evDisconnect:
			h.OnDisconnect(true)
		}
	}
}

// ScanDone is the completion notification of a radio scan. It may be
// called from any goroutine (including from within Radio.Scan); the
// result is processed by the next Poll. A newer result replaces an
// unprocessed older one.
func (m *Manager) ScanDone(status ScanStatus, nets []Network) {
	cp := make([]Network, len(nets))
	copy(cp, nets)
	m.pendMu.Lock()
	m.pending = &scanEvent{status: status, nets: cp}
	m.pendMu.Unlock()
}

// hand a completed scan to the machines waiting for it
func (m *Manager) scanCompleted(ev *scanEvent) {
	m.log.Debug("scan completed",
		slog.String("status", ev.status.String()),
		slog.Int("networks", len(ev.nets)))
	for _, n := range ev.nets {
		m.log.Debug("scan",
			slog.String("ssid", n.SSID),
			slog.Int("channel", n.Channel),
			slog.Int("rssi", n.RSSI))
	}
	if m.sta.state == StationScanInProgress {
		m.sta.scanResult(ev.status, ev.nets)
	}
	if m.msh.state == MeshScanInProgress {
		m.msh.scanResult(ev.status, ev.nets)
	}
}

// warn logs a failed driver call.
func (m *Manager) warn(op string, err error) {
	if err != nil {
		m.log.Warn("radio "+op, slog.String("err", err.Error()))
	}
}

// queue a handler call for the end of Poll
func (m *Manager) notify(ev event) {
	m.events = append(m.events, ev)
}

// broadcast rebuilds the mesh SSID with a new status and applies it
// to the access point.
func (m *Manager) broadcast(status byte) {
	if m.ident == nil {
		return
	}
	m.ident.Status = status
	ssid, err := m.ident.SSID()
	if err != nil {
		m.log.Warn("mesh ssid", slog.String("err", err.Error()))
		return
	}
	m.ap.SSID = ssid
	m.log.Info("mesh broadcast", slog.String("ssid", ssid))
	if err = m.radio.SetAPConfig(m.ap); err != nil {
		m.log.Warn("set ap config", slog.String("err", err.Error()))
	}
}

//----------------------------------------------------------------------

// Mode returns the connection mode.
func (m *Manager) Mode() Mode {
	return m.mode
}

// MAC returns the station hardware address as text.
func (m *Manager) MAC() string {
	return net.HardwareAddr(m.mac[:]).String()
}

// Group returns the mesh group.
func (m *Manager) Group() string {
	return m.group
}

// Registry returns the known access points (auto mode only).
func (m *Manager) Registry() *Registry {
	return m.reg
}

// StationState returns the station machine state.
func (m *Manager) StationState() StationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sta.state
}

// MeshState returns the mesh machine state.
func (m *Manager) MeshState() MeshState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msh.state
}

// StationConfig returns the credentials currently in use.
func (m *Manager) StationConfig() StationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sta.cfg
}

// MeshSSID returns the current broadcast SSID ("" outside mesh modes).
func (m *Manager) MeshSSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ident == nil {
		return ""
	}
	ssid, _ := m.ident.SSID()
	return ssid
}

// Uplink returns the SSID of the mesh node joined ("" if none).
func (m *Manager) Uplink() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msh.uplink == nil {
		return ""
	}
	ssid, _ := m.msh.uplink.SSID()
	return ssid
}

// IPInfo returns the address obtained on the last connect.
func (m *Manager) IPInfo() IPInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sta.ip
}

// Err returns the reason of the last failure (nil after a successful
// connect).
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sta.err
}

// Peers lists the stations attached to our access point.
func (m *Manager) Peers() []Peer {
	return m.radio.Peers()
}
