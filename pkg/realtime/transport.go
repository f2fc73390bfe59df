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
)

// SocketConn is one established bidirectional connection.
//
// Only one goroutine calls ReadMessage at a time. WriteMessage and Close may be
// called concurrently with ReadMessage.
type SocketConn interface {
	// ReadMessage blocks until the next data frame arrives.
	//
	// When the connection ends, the returned error carries the close code; see
	// CloseCode.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame.
	WriteMessage(data []byte) error

	// Close sends a close frame and releases the connection.
	//
	// Parameters:
	//   - code: close code (CloseNormalClosure for a deliberate close)
	//   - reason: human-readable close reason
	Close(code int, reason string) error
}

// SocketDialer establishes SocketConns.
type SocketDialer interface {
	// Dial connects to endpoint. Cancelling ctx aborts an in-flight handshake.
	Dial(ctx context.Context, endpoint string) (SocketConn, error)
}

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Type string
	Data []byte
}

// EventStream is one established server-push subscription.
type EventStream interface {
	// Next blocks until the next event is dispatched. Any error, including
	// io.EOF, ends the stream.
	Next() (Event, error)

	// Close releases the stream. It unblocks a pending Next.
	Close() error
}

// StreamDialer opens EventStreams.
type StreamDialer interface {
	// Subscribe connects to endpoint. Cancelling ctx aborts the request and
	// any stream it produced.
	Subscribe(ctx context.Context, endpoint string) (EventStream, error)
}
