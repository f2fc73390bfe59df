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

package alertstream

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultSubscriberBuffer is the number of undelivered alerts a subscriber may
// hold before it is dropped.
const DefaultSubscriberBuffer = 64

// Subscriber receives published alerts until it is unsubscribed or dropped.
type Subscriber struct {
	ID       string
	Protocol string

	messages  chan []byte
	closeOnce sync.Once
}

// Messages returns the delivery channel. It is closed when the subscriber
// leaves the hub.
func (s *Subscriber) Messages() <-chan []byte {
	return s.messages
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.messages) })
}

// Hub fans alerts out to every connected stream client.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	logger      *zap.Logger
}

// NewHub creates a new alert hub
func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber for protocol ("sse" or "websocket")
func (h *Hub) Subscribe(protocol string) *Subscriber {
	sub := &Subscriber{
		ID:       uuid.New().String(),
		Protocol: protocol,
		messages: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	metrics.StreamSubscribers.WithLabelValues(protocol).Inc()
	h.logger.Info("Stream subscriber registered",
		zap.String("subscriber_id", sub.ID),
		zap.String("protocol", protocol),
	)
	return sub
}

// Unsubscribe removes a subscriber. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.close()
	metrics.StreamSubscribers.WithLabelValues(sub.Protocol).Dec()
	h.logger.Info("Stream subscriber removed", zap.String("subscriber_id", id))
}

// Publish encodes alert and delivers it to every subscriber. Subscribers whose
// buffer is full are dropped; their clients reconnect.
func (h *Hub) Publish(alert alerts.Alert, source string) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	var slow []string
	h.mu.RLock()
	for id, sub := range h.subscribers {
		select {
		case sub.messages <- payload:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.Warn("Dropping slow stream subscriber", zap.String("subscriber_id", id))
		h.Unsubscribe(id)
	}

	metrics.AlertsPublishedTotal.WithLabelValues(source, string(alert.Severity)).Inc()
	h.logger.Debug("Alert published",
		zap.String("alert_id", alert.ID),
		zap.String("source", source),
		zap.String("severity", string(alert.Severity)),
	)
	return nil
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// CloseSubscribers disconnects every subscriber
func (h *Hub) CloseSubscribers() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Unsubscribe(id)
	}
}
