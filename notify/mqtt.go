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

// Package notify publishes connectivity changes of a wifimgr.Manager.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bfix/wifimgr"
)

// Publisher is the part of an MQTT client used for notifications.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Source provides the details reported with an event.
type Source interface {
	MAC() string
	Mode() wifimgr.Mode
	StationConfig() wifimgr.StationConfig
	IPInfo() wifimgr.IPInfo
	MeshSSID() string
}

// Event is the JSON payload of a notification.
type Event struct {
	Action    string    `json:"action"`
	OK        bool      `json:"ok"`
	MAC       string    `json:"mac"`
	Mode      string    `json:"mode"`
	SSID      string    `json:"ssid,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Mesh      string    `json:"mesh,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Possible event actions.
const (
	ActionConnect    = "connect"
	ActionDisconnect = "disconnect"
)

// MQTT is a wifimgr.Handler publishing events as retained messages
// to "<prefix>/<mac>/event".
type MQTT struct {
	pub     Publisher
	src     Source
	topic   string
	qos     byte
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// NewMQTT creates a notifier for the given source.
func NewMQTT(pub Publisher, src Source, prefix string, log *slog.Logger) *MQTT {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mac := strings.ReplaceAll(src.MAC(), ":", "")
	return &MQTT{
		pub:     pub,
		src:     src,
		topic:   fmt.Sprintf("%s/%s/event", strings.TrimSuffix(prefix, "/"), mac),
		qos:     1,
		timeout: 5 * time.Second,
		log:     log,
		now:     time.Now,
	}
}

// Topic returns the topic events are published to.
func (n *MQTT) Topic() string {
	return n.topic
}

// OnConnect publishes a connect event.
func (n *MQTT) OnConnect(ok bool) {
	n.publish(ActionConnect, ok)
}

// OnDisconnect publishes a disconnect event.
func (n *MQTT) OnDisconnect(ok bool) {
	n.publish(ActionDisconnect, ok)
}

// Build the event for an action.
func (n *MQTT) event(action string, ok bool) *Event {
	ev := &Event{
		Action:    action,
		OK:        ok,
		MAC:       n.src.MAC(),
		Mode:      n.src.Mode().String(),
		SSID:      n.src.StationConfig().SSID,
		Mesh:      n.src.MeshSSID(),
		Timestamp: n.now().UTC(),
	}
	if ip := n.src.IPInfo().IP; ip.IsValid() {
		ev.IP = ip.String()
	}
	return ev
}

// publish without blocking the caller; delivery errors are logged.
func (n *MQTT) publish(action string, ok bool) {
	payload, err := json.Marshal(n.event(action, ok))
	if err != nil {
		n.log.Error("notify encode", slog.String("err", err.Error()))
		return
	}
	token := n.pub.Publish(n.topic, n.qos, true, payload)
	go func() {
		if !token.WaitTimeout(n.timeout) {
			n.log.Warn("notify timeout", slog.String("topic", n.topic), slog.String("action", action))
			return
		}
		if err := token.Error(); err != nil {
			n.log.Warn("notify failed", slog.String("topic", n.topic), slog.String("err", err.Error()))
		}
	}()
}

//----------------------------------------------------------------------

// Dial connects to an MQTT broker ("tcp://host:port").
func Dial(broker, clientID, user, passwd string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if user != "" {
		opts.SetUsername(user)
		opts.SetPassword(passwd)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}
