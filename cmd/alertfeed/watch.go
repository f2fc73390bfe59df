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

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"github.com/wso2/api-platform/alertfeed/pkg/realtime"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to the alert feed and print alerts as they arrive",
	Long: "Connect to the configured alert feed endpoint. ws:// and wss:// endpoints use a websocket " +
		"with exponential reconnect backoff; http:// and https:// endpoints use an event stream with a fixed retry interval.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return watch(ctx, rt, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// feedOptions maps configuration onto channel options
func feedOptions(cfg *config.Config, log *zap.Logger) []realtime.Option {
	socket := cfg.Feed.Socket
	return []realtime.Option{
		realtime.WithEnabled(cfg.FeedEnabled()),
		realtime.WithLogger(log),
		realtime.WithReconnectPolicy(socket.MaxAttempts, socket.BaseDelay),
		realtime.WithRetryInterval(cfg.Feed.Stream.RetryDelay),
		realtime.WithSocketDialer(realtime.NewWebSocketDialer(socket.HandshakeTimeout, socket.InsecureSkipVerify)),
		realtime.WithStreamDialer(realtime.NewSSEDialer(cfg.Feed.Stream.Headers)),
		realtime.WithOnExhausted(func() {
			log.Error("Alert feed gave up reconnecting", zap.Int("max_attempts", socket.MaxAttempts))
		}),
	}
}

// feedStatus reports the feed for the metrics /health endpoint. A feed that
// reached Closed on its own has stopped reconnecting and is unhealthy.
func feedStatus(feed realtime.Feed, kind realtime.Kind, enabled bool) metrics.StatusFunc {
	return func() metrics.Status {
		state := feed.State()
		return metrics.Status{
			Component: "feed",
			State:     state.String(),
			Healthy:   state != realtime.StateClosed,
			Details: map[string]any{
				"transport": string(kind),
				"enabled":   enabled,
			},
		}
	}
}

// bannerLine formats a received alert for the terminal, tagging it with its
// severity when the message is a structured alert.
func bannerLine(msg realtime.Message, text string) string {
	if a, ok := alerts.FromMessage(msg); ok && a.Severity != "" {
		return fmt.Sprintf("[ALERT %s] %s", a.Severity, text)
	}
	return "[ALERT] " + text
}

func watch(ctx context.Context, rt *app, out io.Writer) error {
	cfg, log := rt.cfg, rt.log
	if !cfg.FeedEnabled() {
		log.Info("Alert feed disabled",
			zap.Bool("endpoint_configured", cfg.Feed.Endpoint != ""),
			zap.Bool("enabled", cfg.Feed.Enabled),
			zap.Bool("mock_data", cfg.Feed.MockData),
		)
	}

	board := alerts.NewBoard(nil)
	handler := func(msg realtime.Message) {
		board.Show(msg)
		text, _ := board.Current()
		fmt.Fprintln(out, bannerLine(msg, text))
	}

	feed, err := realtime.NewFeed(cfg.Feed.Endpoint, handler, feedOptions(cfg, log)...)
	if err != nil {
		return err
	}

	kind, _ := realtime.KindOf(cfg.Feed.Endpoint)
	if err := rt.startMetrics(feedStatus(feed, kind, cfg.FeedEnabled())); err != nil {
		return err
	}

	log.Info("Starting alert feed",
		zap.String("endpoint", cfg.Feed.Endpoint),
		zap.String("transport", string(kind)),
	)
	if err := feed.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down alert feed")
	if err := feed.Close(); err != nil {
		log.Warn("Failed to close alert feed", zap.Error(err))
	}
	return nil
}
