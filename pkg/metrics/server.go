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

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"go.uber.org/zap"
)

// Status is the health report of the component the process is running:
// the watched feed for `watch`, the stream hub for `serve`.
type Status struct {
	Component string         `json:"component"`
	State     string         `json:"state"`
	Healthy   bool           `json:"healthy"`
	Details   map[string]any `json:"details,omitempty"`
}

// StatusFunc reports the current Status. It is called on every /health request.
type StatusFunc func() Status

// Server serves /metrics and a /health endpoint backed by a StatusFunc.
type Server struct {
	cfg        *config.MetricsConfig
	status     StatusFunc
	httpServer *http.Server
	listener   net.Listener
	log        *zap.Logger
}

// NewServer creates the metrics server. A nil status reports the process as
// healthy with no component details.
func NewServer(cfg *config.MetricsConfig, log *zap.Logger, status StatusFunc) *Server {
	if status == nil {
		status = func() Status {
			return Status{Component: "alertfeed", State: "running", Healthy: true}
		}
	}

	s := &Server{
		cfg:    cfg,
		status: status,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Init(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", s.health)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// health writes the component status. Unhealthy components answer 503.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.status()

	code := http.StatusOK
	if !st.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Debug("Failed to write health response", zap.Error(err))
	}
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to bind: %w", err)
	}
	s.listener = ln
	s.log.Info("Metrics server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Stopping metrics server")
	return s.httpServer.Shutdown(ctx)
}
