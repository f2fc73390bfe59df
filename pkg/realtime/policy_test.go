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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicy_Sequence(t *testing.T) {
	p := NewReconnectPolicy(5, time.Second)

	var delays []time.Duration
	for {
		d, ok := p.Next()
		if !ok {
			break
		}
		delays = append(delays, d)
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}, delays)
	assert.Equal(t, 5, p.Attempt())
	assert.False(t, p.CanRetry())
}

func TestReconnectPolicy_Reset(t *testing.T) {
	p := NewReconnectPolicy(5, time.Second)
	p.Next()
	p.Next()
	p.Next()

	p.Reset()
	assert.Equal(t, 0, p.Attempt())

	d, ok := p.Next()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestReconnectPolicy_LargeBudgetSaturates(t *testing.T) {
	p := NewReconnectPolicy(70, time.Second)

	prev := time.Duration(0)
	for i := 0; i < 70; i++ {
		d, ok := p.Next()
		require.True(t, ok, "attempt %d", i)
		require.Positive(t, d, "attempt %d", i)
		require.GreaterOrEqual(t, d, prev, "attempt %d", i)
		prev = d
	}
	assert.Equal(t, time.Duration(math.MaxInt64), prev)

	_, ok := p.Next()
	assert.False(t, ok)
}

func TestReconnectPolicy_ZeroAttempts(t *testing.T) {
	p := NewReconnectPolicy(0, time.Second)
	_, ok := p.Next()
	assert.False(t, ok)
}

func TestFixedInterval(t *testing.T) {
	f := FixedInterval{Delay: 5 * time.Second}
	for i := 0; i < 100; i++ {
		d, ok := f.Next()
		assert.True(t, ok)
		assert.Equal(t, 5*time.Second, d)
	}
}
