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
	"math"
	"time"
)

// Backoff decides how long a channel waits before reconnecting.
type Backoff interface {
	// Next returns the delay before the next reconnect attempt and advances the
	// policy. It returns false when no further attempt may be scheduled.
	Next() (time.Duration, bool)
	// Reset is called after every successful open.
	Reset()
}

// ReconnectPolicy is an exponential backoff bounded by a maximum number of
// consecutive attempts. The delay for attempt n is BaseDelay * 2^n, saturating
// at the largest representable duration instead of overflowing.
type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	attempt     int
}

// NewReconnectPolicy creates a new exponential reconnect policy
func NewReconnectPolicy(maxAttempts int, baseDelay time.Duration) *ReconnectPolicy {
	return &ReconnectPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
	}
}

// Next returns BaseDelay * 2^attempt and increments attempt by one.
func (p *ReconnectPolicy) Next() (time.Duration, bool) {
	if !p.CanRetry() {
		return 0, false
	}
	delay := p.delay()
	p.attempt++
	return delay, true
}

func (p *ReconnectPolicy) delay() time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if p.attempt >= 62 || p.BaseDelay > time.Duration(math.MaxInt64>>uint(p.attempt)) {
		return time.Duration(math.MaxInt64)
	}
	return p.BaseDelay << uint(p.attempt)
}

// CanRetry reports whether another reconnect may be scheduled
func (p *ReconnectPolicy) CanRetry() bool {
	return p.attempt < p.MaxAttempts
}

// Reset sets the attempt counter back to zero
func (p *ReconnectPolicy) Reset() {
	p.attempt = 0
}

// Attempt returns the number of reconnects scheduled since the last successful open
func (p *ReconnectPolicy) Attempt() int {
	return p.attempt
}

// FixedInterval reconnects after the same delay forever.
type FixedInterval struct {
	Delay time.Duration
}

// Next always returns Delay.
func (f FixedInterval) Next() (time.Duration, bool) {
	return f.Delay, true
}

// Reset is a no-op.
func (f FixedInterval) Reset() {}
