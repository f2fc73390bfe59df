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

package realtime

import (
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

// EventChannel keeps a receive-only server-sent event feed alive. Every stream
// error is retried after a fixed delay, without limit.
//
// Only unnamed events and events named "message" are delivered.
type EventChannel struct {
	*channel
	dialer StreamDialer

	// stream is the owned stream slot, guarded by channel.mu
	stream EventStream
}

// NewEventChannel creates an EventChannel for endpoint. It does not connect
// until Open is called.
func NewEventChannel(endpoint string, handler MessageHandler, opts ...Option) *EventChannel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	dialer := o.streamDialer
	if dialer == nil {
		dialer = NewSSEDialer(nil)
	}

	e := &EventChannel{
		channel: newChannel(transportEvent, endpoint, handler, o, FixedInterval{Delay: o.retryInterval}),
		dialer:  dialer,
	}
	e.channel.connect = e.run
	return e
}

func (e *EventChannel) run(gen uint64) {
	stream, err := e.dialer.Subscribe(e.ctx, e.endpoint)

	e.mu.Lock()
	if !e.currentLocked(gen) {
		e.mu.Unlock()
		if err == nil {
			_ = stream.Close()
		}
		return
	}
	if err != nil {
		metrics.TransportErrorsTotal.WithLabelValues(transportEvent, "subscribe").Inc()
		e.logger.Warn("Event stream connection failed", zap.Error(err))
		e.lostLocked()
		e.mu.Unlock()
		return
	}
	e.stream = stream
	e.openedLocked()
	e.mu.Unlock()

	e.logger.Info("Event stream connection established")

	for {
		ev, err := stream.Next()
		if err != nil {
			e.handleError(gen, stream, err)
			return
		}
		if ev.Type != "" && ev.Type != "message" {
			e.logger.Debug("Skipping named event", zap.String("event", ev.Type))
			continue
		}
		e.deliver(gen, ev.Data)
	}
}

func (e *EventChannel) handleError(gen uint64, stream EventStream, err error) {
	e.mu.Lock()
	if !e.currentLocked(gen) {
		e.mu.Unlock()
		return
	}
	e.stream = nil
	metrics.TransportErrorsTotal.WithLabelValues(transportEvent, "read").Inc()
	e.logger.Warn("Event stream error", zap.Error(err))
	e.lostLocked()
	e.mu.Unlock()

	_ = stream.Close()
}

// Close closes the stream, cancels any pending reconnect and waits for the
// reader to exit. The channel cannot be reopened.
func (e *EventChannel) Close() error {
	e.release(func() func() {
		stream := e.stream
		e.stream = nil
		if stream == nil {
			return nil
		}
		return func() {
			if err := stream.Close(); err != nil {
				e.logger.Debug("Error closing event stream", zap.Error(err))
			}
		}
	})
	return nil
}
