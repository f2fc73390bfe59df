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
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the SocketChannel reconnect budget
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the first SocketChannel reconnect delay
	DefaultBaseDelay = time.Second
	// DefaultRetryInterval is the fixed EventChannel reconnect delay
	DefaultRetryInterval = 5 * time.Second
	// DefaultHandshakeTimeout bounds the websocket handshake
	DefaultHandshakeTimeout = 10 * time.Second
)

type options struct {
	enabled       bool
	logger        *zap.Logger
	clock         clockwork.Clock
	socketDialer  SocketDialer
	streamDialer  StreamDialer
	maxAttempts   int
	baseDelay     time.Duration
	retryInterval time.Duration
	onExhausted   func()
}

func defaultOptions() *options {
	return &options{
		enabled:       true,
		logger:        zap.NewNop(),
		clock:         clockwork.NewRealClock(),
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		retryInterval: DefaultRetryInterval,
	}
}

// Option configures a SocketChannel, EventChannel or Feed.
// Options that do not apply to a channel kind are ignored.
type Option func(*options)

// WithEnabled sets the enabled gate. A disabled channel never connects.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock used for reconnect timers
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSocketDialer replaces the websocket dialer
func WithSocketDialer(d SocketDialer) Option {
	return func(o *options) {
		o.socketDialer = d
	}
}

// WithStreamDialer replaces the event stream dialer
func WithStreamDialer(d StreamDialer) Option {
	return func(o *options) {
		o.streamDialer = d
	}
}

// WithReconnectPolicy sets the SocketChannel backoff: maxAttempts reconnects
// starting at baseDelay and doubling each time.
func WithReconnectPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.baseDelay = baseDelay
	}
}

// WithRetryInterval sets the fixed EventChannel reconnect delay
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}

// WithOnExhausted registers a callback invoked once when a SocketChannel
// gives up reconnecting. Without it, exhaustion shows only in the logs and
// the channel state.
func WithOnExhausted(f func()) Option {
	return func(o *options) {
		o.onExhausted = f
	}
}
