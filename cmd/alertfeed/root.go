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
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"github.com/wso2/api-platform/alertfeed/pkg/logger"
	"github.com/wso2/api-platform/alertfeed/pkg/metrics"
	"go.uber.org/zap"
)

const (
	CliName         = "alertfeed"
	shutdownTimeout = 10 * time.Second
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   CliName,
	Short: "alertfeed streams real-time safety alerts",
	Long:  "alertfeed watches a websocket or event-stream alert feed, or serves one for clients to consume",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (toml or yaml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Oops. An error occurred while executing %s: %v\n", CliName, err)
		os.Exit(1)
	}
}

// app bundles what every long-running command needs
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Server
}

func setup() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics.SetEnabled(cfg.Metrics.Enabled)
	metrics.Init()
	return &app{cfg: cfg, log: log}, nil
}

// startMetrics serves /metrics and /health when metrics are enabled.
// status backs /health.
func (rt *app) startMetrics(status metrics.StatusFunc) error {
	if !rt.cfg.Metrics.Enabled {
		return nil
	}
	rt.metrics = metrics.NewServer(&rt.cfg.Metrics, rt.log, status)
	if err := rt.metrics.Start(); err != nil {
		rt.metrics = nil
		return err
	}
	return nil
}

func (rt *app) shutdown() {
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.metrics.Stop(ctx); err != nil {
			rt.log.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	_ = rt.log.Sync()
}
