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

package alerts

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/wso2/api-platform/alertfeed/pkg/realtime"
)

// Text returns the banner text for an inbound message: plain text as is, the
// "message" field of an object when it has a value, or the JSON of anything else.
func Text(msg realtime.Message) string {
	if s, ok := msg.Data.(string); ok {
		return s
	}
	if v, ok := msg.Field("message"); ok && present(v) {
		switch m := v.(type) {
		case string:
			return m
		case map[string]any, []any:
			if data, err := json.Marshal(m); err == nil {
				return string(data)
			}
		}
		return fmt.Sprint(v)
	}
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return msg.Text()
	}
	return string(data)
}

// present reports whether a decoded message field has a value worth showing:
// not null, false, zero or empty.
func present(v any) bool {
	switch m := v.(type) {
	case nil:
		return false
	case string:
		return m != ""
	case bool:
		return m
	case float64:
		return m != 0 && !math.IsNaN(m)
	default:
		return true
	}
}

// FromMessage decodes a structured message into an Alert. It reports false
// for raw text and for objects without a message.
func FromMessage(msg realtime.Message) (Alert, bool) {
	if _, ok := msg.Data.(map[string]any); !ok {
		return Alert{}, false
	}
	var a Alert
	if err := json.Unmarshal(msg.Raw, &a); err != nil || a.Message == "" {
		return Alert{}, false
	}
	return a, true
}

// Enabled reports whether a live feed should run: an endpoint is set and
// mock data is off.
func Enabled(endpoint string, mockData bool) bool {
	return endpoint != "" && !mockData
}

// Board holds the alert currently shown to the user. A new alert replaces the
// previous one and clears any dismissal.
type Board struct {
	mu        sync.RWMutex
	text      string
	dismissed bool
	onChange  func(text string)
}

// NewBoard creates an empty board. onChange, if set, is called with the new
// text whenever an alert arrives.
func NewBoard(onChange func(text string)) *Board {
	return &Board{onChange: onChange}
}

// Show replaces the current alert
func (b *Board) Show(msg realtime.Message) {
	text := Text(msg)

	b.mu.Lock()
	b.text = text
	b.dismissed = false
	b.mu.Unlock()

	if b.onChange != nil {
		b.onChange(text)
	}
}

// Handler adapts the board to a feed message handler
func (b *Board) Handler() realtime.MessageHandler {
	return b.Show
}

// Dismiss hides the current alert until the next one arrives
func (b *Board) Dismiss() {
	b.mu.Lock()
	b.dismissed = true
	b.mu.Unlock()
}

// Current returns the alert text and whether it is visible
func (b *Board) Current() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text, b.text != "" && !b.dismissed
}
