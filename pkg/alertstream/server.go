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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"github.com/wso2/api-platform/alertfeed/pkg/config"
	"go.uber.org/zap"
)

const (
	// StreamPath serves alerts as text/event-stream
	StreamPath = "/api/alerts/stream"
	// SocketPath serves alerts over websocket
	SocketPath = "/api/alerts/ws"
	// PublishPath accepts alerts to fan out
	PublishPath = "/api/alerts"

	keepAliveInterval = 25 * time.Second
	writeWait         = 10 * time.Second
	maxPublishBytes   = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the alert hub over SSE and websocket.
type Server struct {
	cfg        *config.ServerConfig
	hub        *Hub
	logger     *zap.Logger
	clock      clockwork.Clock
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates the alert stream server and registers its routes
func NewServer(cfg *config.ServerConfig, hub *Hub, logger *zap.Logger, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(CorrelationIDMiddleware(logger))
	engine.Use(LoggingMiddleware(logger))

	s := &Server{
		cfg:    cfg,
		hub:    hub,
		logger: logger,
		clock:  clock,
		engine: engine,
	}

	engine.GET("/health", s.health)
	engine.GET(StreamPath, s.streamAlerts)
	engine.GET(SocketPath, s.socketAlerts)
	engine.POST(PublishPath, s.publishAlert)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	s.logger.Info("Starting alert stream server", zap.Int("port", s.cfg.Port))

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("alert stream server failed to bind: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Alert stream server failed", zap.Error(err))
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

// Stop disconnects stream clients and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping alert stream server")
	s.hub.CloseSubscribers()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) streamAlerts(c *gin.Context) {
	log := GetLogger(c, s.logger)

	sub := s.hub.Subscribe("sse")
	defer s.hub.Unsubscribe(sub.ID)

	keepAlive := s.clock.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// Commit headers so the client sees the stream open before the first alert.
	fmt.Fprint(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	clientGone := c.Stream(func(w io.Writer) bool {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				return false
			}
			_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
			return err == nil
		case <-keepAlive.Chan():
			_, err := fmt.Fprint(w, ": keep-alive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})

	log.Debug("Event stream ended", zap.String("subscriber_id", sub.ID), zap.Bool("client_gone", clientGone))
}

func (s *Server) socketAlerts(c *gin.Context) {
	log := GetLogger(c, s.logger)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe("websocket")
	defer s.hub.Unsubscribe(sub.ID)

	// Reader: surfaces client messages and detects the peer closing.
	peerClosed := make(chan struct{})
	go func() {
		defer close(peerClosed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn("Websocket client closed unexpectedly", zap.Error(err))
				}
				return
			}
			log.Debug("Received client message",
				zap.String("subscriber_id", sub.ID),
				zap.ByteString("payload", data),
			)
		}
	}()

	for {
		select {
		case payload, ok := <-sub.Messages():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server going away"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn("Failed to write alert", zap.Error(err))
				return
			}
		case <-peerClosed:
			return
		}
	}
}

func (s *Server) publishAlert(c *gin.Context) {
	log := GetLogger(c, s.logger)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPublishBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	alert, verrs := alerts.Parse(body)
	if len(verrs) > 0 {
		log.Warn("Rejected invalid alert", zap.Int("errors", len(verrs)))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid alert",
			"details": verrs,
		})
		return
	}

	if err := s.hub.Publish(alert, "api"); err != nil {
		log.Error("Failed to publish alert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish alert"})
		return
	}

	c.JSON(http.StatusAccepted, alert)
}
