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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"github.com/wso2/api-platform/alertfeed/pkg/realtime"
	"go.uber.org/zap"
)

func startServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zap.NewNop(), 0)
	s := NewServer(&config.ServerConfig{}, hub, zap.NewNop(), nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.CloseSubscribers()
		srv.Close()
	})
	return hub, srv
}

func waitForBanner(t *testing.T, board *alerts.Board, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		text, visible := board.Current()
		return visible && text == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSocketFeed_ReconnectsAfterServerDrop(t *testing.T) {
	hub, srv := startServer(t)
	board := alerts.NewBoard(nil)

	feed, err := realtime.NewFeed("ws"+strings.TrimPrefix(srv.URL, "http")+SocketPath, board.Handler(),
		realtime.WithLogger(zap.NewNop()),
		realtime.WithReconnectPolicy(5, 10*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, feed.Open())
	t.Cleanup(func() { feed.Close() })

	require.Eventually(t, func() bool { return feed.State() == realtime.StateOpen && hub.Count() == 1 },
		3*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(alerts.New("Patient reported adverse reaction", alerts.SeverityHigh, "patient_6"), "test"))
	waitForBanner(t, board, "Patient reported adverse reaction")

	// The server goes away with 1001; the channel reconnects on its own.
	hub.CloseSubscribers()
	require.Eventually(t, func() bool { return feed.State() == realtime.StateOpen && hub.Count() == 1 },
		3*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(alerts.New("New clinical guideline update available", alerts.SeverityMedium, "patient_5"), "test"))
	waitForBanner(t, board, "New clinical guideline update available")

	require.NoError(t, feed.Close())
	assert.Equal(t, realtime.StateClosed, feed.State())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestEventFeed_ReceivesAndRetries(t *testing.T) {
	hub, srv := startServer(t)
	board := alerts.NewBoard(nil)

	feed, err := realtime.NewFeed(srv.URL+StreamPath, board.Handler(),
		realtime.WithLogger(zap.NewNop()),
		realtime.WithRetryInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, feed.Open())
	t.Cleanup(func() { feed.Close() })

	require.Eventually(t, func() bool { return feed.State() == realtime.StateOpen && hub.Count() == 1 },
		3*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(alerts.New("Critical lab value alert: Creatinine elevated", alerts.SeverityHigh, "patient_2"), "test"))
	waitForBanner(t, board, "Critical lab value alert: Creatinine elevated")

	hub.CloseSubscribers()
	require.Eventually(t, func() bool { return feed.State() == realtime.StateOpen && hub.Count() == 1 },
		3*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(alerts.New("Prescription renewal required for John Doe", alerts.SeverityMedium, "patient_3"), "test"))
	waitForBanner(t, board, "Prescription renewal required for John Doe")

	require.NoError(t, feed.Close())
	assert.Equal(t, realtime.StateClosed, feed.State())
}
