/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTIngress subscribes to a topic and dispatches each message as an
// event.  Messages are the same JSON the WebSocket clients send:
// {"id": INSTANCE, "event": KEY, "payload": ...}.
type MQTTIngress struct {
	service *Service
	logger  *slog.Logger

	client  mqtt.Client
	topic   string
	quiesce uint
}

// NewMQTTIngress returns nil when broker is empty: a daemon without
// -m runs without MQTT.
func NewMQTTIngress(ctx context.Context, s *Service, broker, clientID, topic string, logger *slog.Logger) *MQTTIngress {
	if broker == "" {
		return nil
	}

	m := &MQTTIngress{
		service: s,
		logger:  logger,
		topic:   topic,
		quiesce: 100,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.AutoReconnect = true
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}
	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		m.inHandler(ctx, client, msg)
	}

	m.client = mqtt.NewClient(opts)
	return m
}

// Start connects and subscribes.
func (m *MQTTIngress) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := m.client.Subscribe(m.topic, 0, nil); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.logger.Info("mqtt subscribed", "topic", m.topic)
	return nil
}

func (m *MQTTIngress) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	var ev clientEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		m.logger.Warn("mqtt message unparsable", "topic", msg.Topic(), "error", err)
		return
	}
	if err := m.service.DispatchEvent(ctx, ev.ID, ev.Event, ev.Payload); err != nil {
		m.logger.Warn("mqtt event failed", "event", ev.Event, "error", err)
	}
}

// Stop disconnects.
func (m *MQTTIngress) Stop(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.client.Disconnect(m.quiesce)
	return nil
}
