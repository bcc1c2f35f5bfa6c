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

package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfix/wifimgr"
)

// completed token
type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                       { return true }
func (t *doneToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *doneToken) Error() error                     { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// publisher recording messages
type recorder struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (r *recorder) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{topic, qos, retained, payload.([]byte)})
	return &doneToken{err: r.err}
}

func newManager(t *testing.T) *wifimgr.Manager {
	sim := wifimgr.NewSimRadio([6]byte{0x02, 0, 0, 0, 0, 0x01})
	m, err := wifimgr.NewFixed(sim, "home", "secret")
	require.NoError(t, err)
	return m
}

func TestTopic(t *testing.T) {
	n := NewMQTT(new(recorder), newManager(t), "wifimgr/", nil)
	assert.Equal(t, "wifimgr/020000000001/event", n.Topic())
}

func TestPublish(t *testing.T) {
	pub := new(recorder)
	n := NewMQTT(pub, newManager(t), "wifimgr", nil)
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return stamp }

	n.OnConnect(true)
	n.OnDisconnect(true)
	require.Len(t, pub.msgs, 2)

	msg := pub.msgs[0]
	assert.Equal(t, n.Topic(), msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.payload, &ev))
	assert.Equal(t, ActionConnect, ev.Action)
	assert.True(t, ev.OK)
	assert.Equal(t, "02:00:00:00:00:01", ev.MAC)
	assert.Equal(t, "fixed", ev.Mode)
	assert.Equal(t, "home", ev.SSID)
	assert.Empty(t, ev.IP)
	assert.Empty(t, ev.Mesh)
	assert.True(t, stamp.Equal(ev.Timestamp))

	require.NoError(t, json.Unmarshal(pub.msgs[1].payload, &ev))
	assert.Equal(t, ActionDisconnect, ev.Action)
}

func TestPublishError(t *testing.T) {
	pub := &recorder{err: errors.New("broker gone")}
	n := NewMQTT(pub, newManager(t), "wifimgr", nil)
	// delivery errors are logged only
	n.OnConnect(true)
	assert.Len(t, pub.msgs, 1)
}

func TestHandlerWiring(t *testing.T) {
	var _ wifimgr.Handler = (*MQTT)(nil)
}
