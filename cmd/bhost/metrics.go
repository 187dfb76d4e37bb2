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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the daemon's Prometheus metrics, on a private registry
// so tests can run several services in one process.
type Metrics struct {
	registry *prometheus.Registry

	Activations *prometheus.CounterVec
	Dispatches  *prometheus.CounterVec
	Emitted     prometheus.Counter
	Instances   prometheus.Gauge
	Clients     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bearings",
				Subsystem: "troupe",
				Name:      "activations_total",
				Help:      "Behavior activations.",
			},
			[]string{"behavior"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bearings",
				Subsystem: "troupe",
				Name:      "dispatches_total",
				Help:      "Events dispatched, by behavior and stop reason.",
			},
			[]string{"behavior", "stopped"},
		),
		Emitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bearings",
				Subsystem: "troupe",
				Name:      "emitted_total",
				Help:      "Events emitted by effects.",
			},
		),
		Instances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bearings",
				Subsystem: "troupe",
				Name:      "instances",
				Help:      "Live behavior instances.",
			},
		),
		Clients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bearings",
				Subsystem: "ws",
				Name:      "clients",
				Help:      "Connected WebSocket clients.",
			},
		),
	}

	m.registry.MustRegister(
		m.Activations,
		m.Dispatches,
		m.Emitted,
		m.Instances,
		m.Clients,
	)

	return m
}

// Handler serves this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
