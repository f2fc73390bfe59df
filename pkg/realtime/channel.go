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
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

// ErrChannelClosed is returned by Open after Close has been called
var ErrChannelClosed = errors.New("channel closed")

const (
	transportSocket = "socket"
	transportEvent  = "event"
)

// channel holds the lifecycle shared by SocketChannel and EventChannel: the
// state machine, the single reconnect timer and teardown. The owning channel
// supplies connect, which runs on its own goroutine for one generation.
//
// gen identifies the current connection attempt or pending timer. Any
// callback carrying an older gen is stale and must not touch state.
type channel struct {
	transport   string
	endpoint    string
	handler     MessageHandler
	logger      *zap.Logger
	clock       clockwork.Clock
	backoff     Backoff
	onExhausted func()
	connect     func(gen uint64)

	mu       sync.Mutex
	state    State
	enabled  bool
	timer    clockwork.Timer
	gen      uint64
	released bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newChannel(transport, endpoint string, handler MessageHandler, o *options, backoff Backoff) *channel {
	if handler == nil {
		handler = func(Message) {}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &channel{
		transport:   transport,
		endpoint:    endpoint,
		handler:     handler,
		logger:      o.logger.With(zap.String("transport", transport), zap.String("endpoint", endpoint)),
		clock:       o.clock,
		backoff:     backoff,
		onExhausted: o.onExhausted,
		state:       StateIdle,
		enabled:     o.enabled,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Open starts connecting. It is a no-op when the endpoint is empty, the channel
// is disabled, a connection is already open or in progress, a reconnect is
// pending, or the channel has reached Closed. It never blocks.
func (c *channel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrChannelClosed
	}
	if c.endpoint == "" {
		c.logger.Debug("No endpoint configured, skipping connection")
		return nil
	}
	if !c.enabled {
		c.logger.Debug("Channel disabled, skipping connection")
		return nil
	}
	if c.state != StateIdle || c.timer != nil {
		return nil
	}

	c.beginLocked()
	return nil
}

// setEnabled changes the enabled gate. The gate is read by the next Open; it
// does not start or stop a connection by itself.
func (c *channel) setEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// State returns the current connection state (thread-safe)
func (c *channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) applyLocked(e event) {
	next, ok := transition(c.state, e)
	if !ok {
		c.logger.Debug("Ignoring event in current state",
			zap.String("state", c.state.String()),
			zap.String("event", e.String()),
		)
		return
	}

	prev := c.state
	c.state = next
	metrics.ChannelState.WithLabelValues(c.transport).Set(float64(next))

	if prev != next {
		c.logger.Info("Connection state changed",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
		)
	}
}

// beginLocked starts one connection attempt on a new generation.
func (c *channel) beginLocked() {
	c.applyLocked(eventConnect)
	c.gen++
	gen := c.gen

	metrics.ConnectAttemptsTotal.WithLabelValues(c.transport).Inc()
	c.logger.Info("Connecting")

	c.wg.Go(func() {
		c.connect(gen)
	})
}

func (c *channel) currentLocked(gen uint64) bool {
	return !c.released && gen == c.gen
}

func (c *channel) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(gen)
}

// openedLocked records a successful establishment.
func (c *channel) openedLocked() {
	c.backoff.Reset()
	c.applyLocked(eventOpened)
}

// lostLocked handles a failed or dropped connection that may be retried. It
// schedules the next reconnect, or moves to Closed when the backoff refuses.
// The returned callback, if any, must be invoked after unlocking.
func (c *channel) lostLocked() func() {
	delay, ok := c.backoff.Next()
	if !ok {
		c.applyLocked(eventHalt)
		metrics.ReconnectBudgetExhaustedTotal.Inc()
		c.logger.Warn("Reconnect budget exhausted, giving up")
		return c.onExhausted
	}

	c.applyLocked(eventRetry)
	c.scheduleLocked(delay)
	return nil
}

// haltLocked ends the channel without reconnecting.
func (c *channel) haltLocked() {
	c.applyLocked(eventHalt)
}

// scheduleLocked arms the single reconnect timer. Any previous timer is
// stopped first.
func (c *channel) scheduleLocked(delay time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	gen := c.gen

	metrics.ReconnectsScheduledTotal.WithLabelValues(c.transport).Inc()
	c.logger.Info("Scheduling reconnect", zap.Duration("delay", delay))

	c.timer = c.clock.AfterFunc(delay, func() {
		c.fire(gen)
	})
}

func (c *channel) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(gen) || c.state != StateIdle {
		return
	}
	c.timer = nil
	c.beginLocked()
}

// deliver decodes raw and hands it to the handler unless gen is stale.
func (c *channel) deliver(gen uint64, raw []byte) {
	if !c.isCurrent(gen) {
		return
	}
	msg := DecodeMessage(raw)
	metrics.MessagesReceivedTotal.WithLabelValues(c.transport, msg.encoding()).Inc()
	c.handler(msg)
}

// release tears the channel down. detach runs under the lock and returns the
// handle to close, if any. After release returns no goroutine of the channel
// is running and no timer can fire.
func (c *channel) release(detach func() func()) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	closeHandle := detach()
	c.applyLocked(eventRelease)
	c.mu.Unlock()

	c.cancel()
	if closeHandle != nil {
		closeHandle()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.applyLocked(eventReleased)
	c.mu.Unlock()
}
