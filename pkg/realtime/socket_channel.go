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
	"encoding/json"
	"fmt"

	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

// SocketChannel keeps a bidirectional websocket feed alive. Abnormal closures
// are retried with exponential backoff up to a fixed number of attempts; a
// normal closure (code 1000) from either side ends the channel.
type SocketChannel struct {
	*channel
	dialer SocketDialer
	policy *ReconnectPolicy

	// conn is the owned connection slot, guarded by channel.mu
	conn SocketConn
}

// NewSocketChannel creates a SocketChannel for endpoint. It does not connect
// until Open is called.
func NewSocketChannel(endpoint string, handler MessageHandler, opts ...Option) *SocketChannel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	dialer := o.socketDialer
	if dialer == nil {
		dialer = NewWebSocketDialer(DefaultHandshakeTimeout, false)
	}
	policy := NewReconnectPolicy(o.maxAttempts, o.baseDelay)

	s := &SocketChannel{
		channel: newChannel(transportSocket, endpoint, handler, o, policy),
		dialer:  dialer,
		policy:  policy,
	}
	s.channel.connect = s.run
	return s
}

// Attempt returns the number of reconnects scheduled since the last successful open
func (s *SocketChannel) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Attempt()
}

func (s *SocketChannel) run(gen uint64) {
	conn, err := s.dialer.Dial(s.ctx, s.endpoint)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		if err == nil {
			_ = conn.Close(CloseNormalClosure, "superseded")
		}
		return
	}
	if err != nil {
		metrics.TransportErrorsTotal.WithLabelValues(transportSocket, "dial").Inc()
		s.logger.Warn("WebSocket connection failed", zap.Error(err))
		// A failed handshake is treated as an abnormal closure.
		onExhausted := s.lostLocked()
		s.mu.Unlock()
		if onExhausted != nil {
			onExhausted()
		}
		return
	}
	s.conn = conn
	s.openedLocked()
	s.mu.Unlock()

	s.logger.Info("WebSocket connection established")
	s.readLoop(gen, conn)
}

func (s *SocketChannel) readLoop(gen uint64, conn SocketConn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen, conn, err)
			return
		}
		s.deliver(gen, data)
	}
}

func (s *SocketChannel) handleClose(gen uint64, conn SocketConn, err error) {
	code := CloseCode(err)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.conn = nil

	var onExhausted func()
	if code == CloseNormalClosure {
		s.logger.Info("WebSocket closed normally by server")
		s.haltLocked()
	} else {
		metrics.TransportErrorsTotal.WithLabelValues(transportSocket, "read").Inc()
		s.logger.Warn("WebSocket connection lost",
			zap.Int("close_code", code),
			zap.Error(err),
		)
		onExhausted = s.lostLocked()
	}
	s.mu.Unlock()

	_ = conn.Close(replyCode(err), "")
	if onExhausted != nil {
		onExhausted()
	}
}

// Send encodes payload as JSON and writes it when the channel is Open.
// Otherwise the message is dropped with a warning. Sends are never queued.
// The only error returned is an encoding failure.
func (s *SocketChannel) Send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state != StateOpen || conn == nil {
		metrics.SendsDroppedTotal.WithLabelValues("not_open").Inc()
		s.logger.Warn("WebSocket is not connected, dropping message",
			zap.String("state", state.String()),
		)
		return nil
	}

	if err := conn.WriteMessage(data); err != nil {
		// The read side observes the failure and drives reconnection.
		metrics.TransportErrorsTotal.WithLabelValues(transportSocket, "write").Inc()
		s.logger.Warn("Failed to send message", zap.Error(err))
		return nil
	}
	metrics.MessagesSentTotal.Inc()
	return nil
}

// Close closes the connection with a normal-closure frame, cancels any
// pending reconnect and waits for the reader to exit. The channel cannot be
// reopened.
func (s *SocketChannel) Close() error {
	s.release(func() func() {
		conn := s.conn
		s.conn = nil
		if conn == nil {
			return nil
		}
		return func() {
			if err := conn.Close(CloseNormalClosure, "client closing"); err != nil {
				s.logger.Debug("Error closing WebSocket connection", zap.Error(err))
			}
		}
	})
	return nil
}
