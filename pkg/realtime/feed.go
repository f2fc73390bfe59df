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
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned by NewFeed for endpoints that are neither
// websocket nor HTTP URLs.
var ErrUnsupportedScheme = errors.New("unsupported endpoint scheme")

// Feed is one logical alert feed backed by exactly one channel.
type Feed interface {
	Open() error
	Close() error
	State() State
}

// Sender is implemented by feeds that can write to the server.
type Sender interface {
	Send(payload any) error
}

// Kind names the transport a feed uses
type Kind string

const (
	KindNone   Kind = "none"
	KindSocket Kind = "socket"
	KindEvent  Kind = "event"
)

// KindOf returns the transport kind selected by endpoint's scheme. An empty
// endpoint selects KindNone.
func KindOf(endpoint string) (Kind, error) {
	if endpoint == "" {
		return KindNone, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return KindSocket, nil
	case "http", "https":
		return KindEvent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// NewFeed selects a SocketChannel or EventChannel from the endpoint scheme.
// With an empty endpoint it returns a feed that never connects.
func NewFeed(endpoint string, handler MessageHandler, opts ...Option) (Feed, error) {
	kind, err := KindOf(endpoint)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSocket:
		return NewSocketChannel(endpoint, handler, opts...), nil
	case KindEvent:
		return NewEventChannel(endpoint, handler, opts...), nil
	default:
		return noopFeed{}, nil
	}
}

type noopFeed struct{}

func (noopFeed) Open() error  { return nil }
func (noopFeed) Close() error { return nil }
func (noopFeed) State() State { return StateIdle }
