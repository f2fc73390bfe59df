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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wso2/api-platform/alertfeed/pkg/alertstream"
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve alerts over event stream and websocket",
	Long:  "Run the alert stream server. Alerts posted to /api/alerts, and demo alerts when enabled, are fanned out to every connected client.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup()
		if err != nil {
			return err
		}
		defer rt.shutdown()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, rt)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, rt *app) error {
	cfg := rt.cfg.Server

	hub := alertstream.NewHub(rt.log, alertstream.DefaultSubscriberBuffer)
	server := alertstream.NewServer(&cfg, hub, rt.log, nil)
	if err := rt.startMetrics(func() metrics.Status {
		return metrics.Status{
			Component: "alertstream",
			State:     "serving",
			Healthy:   true,
			Details:   map[string]any{"subscribers": hub.Count()},
		}
	}); err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	if cfg.DemoEnabled {
		gen := alertstream.NewGenerator(hub, cfg.DemoInterval, rt.log, nil)
		go gen.Run(ctx)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		rt.log.Warn("Alert stream server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
