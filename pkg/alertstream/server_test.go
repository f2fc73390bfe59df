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

package alertstream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	hub   *Hub
	clock *clockwork.FakeClock
	srv   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hub := NewHub(zap.NewNop(), 0)
	clock := clockwork.NewFakeClock()
	s := NewServer(&config.ServerConfig{Port: 0}, hub, zap.NewNop(), clock)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.CloseSubscribers()
		srv.Close()
	})
	return &testServer{hub: hub, clock: clock, srv: srv}
}

func (ts *testServer) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return ts.hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func openStream(t *testing.T, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp, bufio.NewReader(resp.Body)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	lines := make(chan string, 1)
	go func() {
		line, _ := r.ReadString('\n')
		lines <- line
	}()
	select {
	case line := <-lines:
		return strings.TrimRight(line, "\n")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading stream")
		return ""
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(CorrelationIDHeader))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_EchoesCorrelationID(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(CorrelationIDHeader, "corr-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "corr-123", resp.Header.Get(CorrelationIDHeader))
}

func TestServer_EventStream(t *testing.T) {
	ts := newTestServer(t)

	resp, r := openStream(t, ts.srv.URL+StreamPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	assert.Equal(t, ": connected", readLine(t, r))
	assert.Equal(t, "", readLine(t, r))
	ts.waitForSubscribers(t, 1)

	alert := alerts.New("Critical lab value alert: Creatinine elevated", alerts.SeverityHigh, "patient_2")
	require.NoError(t, ts.hub.Publish(alert, "test"))

	line := readLine(t, r)
	require.True(t, strings.HasPrefix(line, "data: "), line)
	var got alerts.Alert
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &got))
	assert.Equal(t, alert.ID, got.ID)
	assert.Equal(t, "", readLine(t, r))
}

func TestServer_EventStreamKeepAlive(t *testing.T) {
	ts := newTestServer(t)

	_, r := openStream(t, ts.srv.URL+StreamPath)
	assert.Equal(t, ": connected", readLine(t, r))
	assert.Equal(t, "", readLine(t, r))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.clock.BlockUntilContext(ctx, 1))

	ts.clock.Advance(keepAliveInterval)
	assert.Equal(t, ": keep-alive", readLine(t, r))
}

func TestServer_EventStreamEndsWhenHubCloses(t *testing.T) {
	ts := newTestServer(t)

	_, r := openStream(t, ts.srv.URL+StreamPath)
	readLine(t, r)
	readLine(t, r)
	ts.waitForSubscribers(t, 1)

	ts.hub.CloseSubscribers()

	done := make(chan error, 1)
	go func() {
		_, err := r.ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err, "stream reaches EOF")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
}

func TestServer_WebSocket(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + SocketPath
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	ts.waitForSubscribers(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ack"}`)))

	alert := alerts.New("New clinical guideline update available", alerts.SeverityMedium, "patient_5")
	require.NoError(t, ts.hub.Publish(alert, "test"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got alerts.Alert
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, alert.Message, got.Message)

	ts.hub.CloseSubscribers()
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestServer_PublishAlert(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"valid", `{"message":"Safety alert: Dosage adjustment recommended","severity":"high"}`, http.StatusAccepted, ""},
		{"missing message", `{"severity":"high"}`, http.StatusBadRequest, "message"},
		{"bad severity", `{"message":"m","severity":"urgent"}`, http.StatusBadRequest, "severity"},
		{"not json", `{`, http.StatusBadRequest, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			sub := ts.hub.Subscribe("sse")

			resp, err := http.Post(ts.srv.URL+PublishPath, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantField == "" {
				var got alerts.Alert
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, alerts.TypeSafetyAlert, got.Type)
				assert.Len(t, sub.Messages(), 1)
				return
			}

			var body struct {
				Error   string                   `json:"error"`
				Details []alerts.ValidationError `json:"details"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "invalid alert", body.Error)
			require.NotEmpty(t, body.Details)
			assert.Equal(t, tt.wantField, body.Details[0].Field)
			assert.Empty(t, sub.Messages())
		})
	}
}
