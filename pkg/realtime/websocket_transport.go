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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// CloseNormalClosure marks a deliberate close; the channel does not reconnect.
	CloseNormalClosure = websocket.CloseNormalClosure
	// CloseAbnormalClosure is reported when the connection dropped without a close frame.
	CloseAbnormalClosure = websocket.CloseAbnormalClosure
)

// CloseCode extracts the close code from a ReadMessage error. Errors that do
// not carry a close frame count as abnormal closure.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return CloseAbnormalClosure
}

// replyCode picks the code for the close frame sent back after a read error.
// A code the peer actually sent is echoed; 1005, 1006 and 1015 are reserved
// for local reporting and never go on the wire, so those and plain transport
// errors answer with going-away.
func replyCode(err error) int {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return websocket.CloseGoingAway
	}
	switch closeErr.Code {
	case websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure, websocket.CloseTLSHandshake:
		return websocket.CloseGoingAway
	default:
		return closeErr.Code
	}
}

// WebSocketDialer implements SocketDialer using gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout   time.Duration
	InsecureSkipVerify bool
	Header             http.Header
}

// NewWebSocketDialer creates a new gorilla/websocket backed dialer
func NewWebSocketDialer(handshakeTimeout time.Duration, insecureSkipVerify bool) *WebSocketDialer {
	return &WebSocketDialer{
		HandshakeTimeout:   handshakeTimeout,
		InsecureSkipVerify: insecureSkipVerify,
	}
}

// Dial performs the websocket handshake against endpoint.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (SocketConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: d.InsecureSkipVerify,
		},
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &webSocketConn{conn: conn}, nil
}

// webSocketConn wraps a gorilla connection. gorilla allows one concurrent
// writer, so writes and the close frame share writeMu.
type webSocketConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (w *webSocketConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *webSocketConn) WriteMessage(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *webSocketConn) Close(code int, reason string) error {
	w.closeOnce.Do(func() {
		w.writeMu.Lock()
		// The peer may already be gone; the close frame is best-effort.
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		w.writeMu.Unlock()
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
