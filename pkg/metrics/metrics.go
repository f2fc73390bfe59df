/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "alertfeed"
)

var (
	once     sync.Once
	registry *prometheus.Registry

	// Feed client metrics. Defaults are noop so callers never see nil before Init.
	ChannelState                  GaugeVec   = noopGaugeVec{}
	ConnectAttemptsTotal          CounterVec = noopCounterVec{}
	ReconnectsScheduledTotal      CounterVec = noopCounterVec{}
	ReconnectBudgetExhaustedTotal Counter    = safeNoopCounter
	MessagesReceivedTotal         CounterVec = noopCounterVec{}
	MessagesSentTotal             Counter    = safeNoopCounter
	SendsDroppedTotal             CounterVec = noopCounterVec{}
	TransportErrorsTotal          CounterVec = noopCounterVec{}

	// Stream server metrics
	StreamSubscribers    GaugeVec   = noopGaugeVec{}
	AlertsPublishedTotal CounterVec = noopCounterVec{}
	HTTPRequestsTotal    CounterVec = noopCounterVec{}

	Up         Gauge = safeNoopGauge
	Goroutines GaugeFunc
)

// initMetrics initializes all metric variables.
// This must be called after SetEnabled() to ensure proper noop behavior when disabled.
func initMetrics() {
	ChannelState = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_state",
			Help:      "Current connection state of a feed channel (0=idle, 1=connecting, 2=open, 3=closing, 4=closed)",
		},
		[]string{"transport"},
	)

	ConnectAttemptsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of connection attempts made by feed channels",
		},
		[]string{"transport"},
	)

	ReconnectsScheduledTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of reconnect timers scheduled",
		},
		[]string{"transport"},
	)

	ReconnectBudgetExhaustedTotal = newCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_budget_exhausted_total",
			Help:      "Total number of socket channels that gave up reconnecting",
		},
	)

	MessagesReceivedTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound messages delivered to handlers",
		},
		[]string{"transport", "encoding"},
	)

	MessagesSentTotal = newCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of outbound socket messages written",
		},
	)

	SendsDroppedTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_dropped_total",
			Help:      "Total number of outbound messages dropped",
		},
		[]string{"reason"},
	)

	TransportErrorsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total number of transport errors by stage",
		},
		[]string{"transport", "stage"},
	)

	StreamSubscribers = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Number of clients currently subscribed to the alert stream",
		},
		[]string{"protocol"},
	)

	AlertsPublishedTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Total number of alerts published to the stream hub",
		},
		[]string{"source", "severity"},
	)

	HTTPRequestsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served by the stream server",
		},
		[]string{"method", "path", "status"},
	)

	Up = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the process is up",
		},
	)

	Goroutines = newGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		},
		func() float64 { return float64(runtime.NumGoroutine()) },
	)
}

func registerCounterVec(v CounterVec) {
	if !Enabled {
		return
	}
	if wrapper, ok := v.(*counterVecWrapper); ok {
		_ = registry.Register(wrapper.CounterVec)
	}
}

func registerGaugeVec(v GaugeVec) {
	if !Enabled {
		return
	}
	if wrapper, ok := v.(*gaugeVecWrapper); ok {
		_ = registry.Register(wrapper.GaugeVec)
	}
}

func registerGauge(v Gauge) {
	if !Enabled {
		return
	}
	if g, ok := v.(prometheus.Gauge); ok {
		_ = registry.Register(g)
	}
}

func registerCounter(v Counter) {
	if !Enabled {
		return
	}
	if c, ok := v.(prometheus.Counter); ok {
		_ = registry.Register(c)
	}
}

func registerGaugeFunc(v GaugeFunc) {
	if !Enabled || v == nil {
		return
	}
	_ = registry.Register(v)
}

func initRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registerGaugeVec(ChannelState)
	registerCounterVec(ConnectAttemptsTotal)
	registerCounterVec(ReconnectsScheduledTotal)
	registerCounter(ReconnectBudgetExhaustedTotal)
	registerCounterVec(MessagesReceivedTotal)
	registerCounter(MessagesSentTotal)
	registerCounterVec(SendsDroppedTotal)
	registerCounterVec(TransportErrorsTotal)

	registerGaugeVec(StreamSubscribers)
	registerCounterVec(AlertsPublishedTotal)
	registerCounterVec(HTTPRequestsTotal)

	registerGauge(Up)
	registerGaugeFunc(Goroutines)

	Up.Set(1)
}

// Init initializes the metrics registry with all collectors.
// This must be called after SetEnabled() has been called.
func Init() *prometheus.Registry {
	once.Do(func() {
		initMetrics()

		if !Enabled {
			registry = prometheus.NewRegistry()
			return
		}
		initRegistry()
	})

	return registry
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return Init()
	}
	return registry
}
