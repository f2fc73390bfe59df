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
)

// Message is one inbound frame as delivered to a MessageHandler.
type Message struct {
	// Data holds the decoded JSON value when Structured is true, otherwise
	// the raw frame as a string.
	Data       any
	Raw        []byte
	Structured bool
}

// MessageHandler receives every inbound message in transport order.
// Handlers run on the channel's reader goroutine; they must not block and
// must not call Close on the channel that invoked them.
type MessageHandler func(Message)

// DecodeMessage decodes raw as JSON, falling back to the raw text.
func DecodeMessage(raw []byte) Message {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Message{Data: string(raw), Raw: raw}
	}
	return Message{Data: v, Raw: raw, Structured: true}
}

// Text returns the raw frame as a string
func (m Message) Text() string {
	return string(m.Raw)
}

// Field returns a top-level field of a decoded JSON object.
func (m Message) Field(name string) (any, bool) {
	obj, ok := m.Data.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[name]
	return v, ok
}

func (m Message) encoding() string {
	if m.Structured {
		return "json"
	}
	return "raw"
}
