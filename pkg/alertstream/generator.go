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
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wso2/api-platform/alertfeed/pkg/alerts"
	"go.uber.org/zap"
)

// DefaultDemoInterval is the pause between generated demo alerts
const DefaultDemoInterval = 15 * time.Second

var demoMessages = []string{
	"New drug interaction detected for Patient #12345",
	"Critical lab value alert: Creatinine elevated",
	"Prescription renewal required for John Doe",
	"Safety alert: Dosage adjustment recommended",
	"New clinical guideline update available",
	"Patient reported adverse reaction",
}

// Generator publishes canned demo alerts on a fixed interval.
type Generator struct {
	hub      *Hub
	clock    clockwork.Clock
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	index int
}

// NewGenerator creates a demo alert generator
func NewGenerator(hub *Hub, interval time.Duration, logger *zap.Logger, clock clockwork.Clock) *Generator {
	if interval <= 0 {
		interval = DefaultDemoInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		hub:      hub,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Next builds the next demo alert, cycling through the canned messages
func (g *Generator) Next() alerts.Alert {
	g.mu.Lock()
	i := g.index % len(demoMessages)
	g.index++
	g.mu.Unlock()

	severity := alerts.SeverityMedium
	if i%2 == 1 {
		severity = alerts.SeverityHigh
	}

	alert := alerts.New(demoMessages[i], severity, fmt.Sprintf("patient_%d", i+1))
	alert.Timestamp = g.clock.Now().UTC()
	return alert
}

// Run publishes one alert immediately and then one per interval until ctx is done
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("Demo alert generator started", zap.Duration("interval", g.interval))
	defer g.logger.Info("Demo alert generator stopped")

	ticker := g.clock.NewTicker(g.interval)
	defer ticker.Stop()

	g.publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.publish()
		}
	}
}

func (g *Generator) publish() {
	if err := g.hub.Publish(g.Next(), "demo"); err != nil {
		g.logger.Warn("Failed to publish demo alert", zap.Error(err))
	}
}
