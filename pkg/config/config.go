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

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by LoadConfig
const EnvPrefix = "ALERTFEED_"

// Config holds all configuration for the alert feed client and stream server
type Config struct {
	Feed    FeedConfig    `koanf:"feed"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// FeedConfig holds the alert feed client configuration
type FeedConfig struct {
	// Endpoint selects the transport by scheme: ws/wss for socket, http/https for event stream.
	// Empty disables the feed.
	Endpoint string       `koanf:"endpoint"`
	Enabled  bool         `koanf:"enabled"`
	MockData bool         `koanf:"mock_data"`
	Socket   SocketConfig `koanf:"socket"`
	Stream   StreamConfig `koanf:"stream"`
}

// SocketConfig holds the websocket channel settings
type SocketConfig struct {
	MaxAttempts        int           `koanf:"max_attempts"`
	BaseDelay          time.Duration `koanf:"base_delay"`
	HandshakeTimeout   time.Duration `koanf:"handshake_timeout"`
	InsecureSkipVerify bool          `koanf:"insecure_skip_verify"`
}

// StreamConfig holds the event stream channel settings
type StreamConfig struct {
	RetryDelay time.Duration     `koanf:"retry_delay"`
	Headers    map[string]string `koanf:"headers"`
}

// ServerConfig holds the alert stream server configuration
type ServerConfig struct {
	Port         int           `koanf:"port"`
	DemoEnabled  bool          `koanf:"demo_enabled"`
	DemoInterval time.Duration `koanf:"demo_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// LoadConfig loads configuration from an optional file and environment variables.
// A missing file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			parser, err := parserFor(configPath)
			if err != nil {
				return nil, err
			}
			if err := k.Load(file.Provider(configPath), parser); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
}

// envKey maps ALERTFEED_ variables to config keys
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	switch s {
	case "alerts_stream_url":
		return "feed.endpoint"
	case "enable_mock_data":
		return "feed.mock_data"
	case "log_level":
		return "logging.level"
	default:
		// "__" keeps a literal underscore, "_" nests
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		s = strings.ReplaceAll(s, "_", ".")
		s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
		return s
	}
}

func defaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			Enabled: true,
			Socket: SocketConfig{
				MaxAttempts:      5,
				BaseDelay:        time.Second,
				HandshakeTimeout: 10 * time.Second,
			},
			Stream: StreamConfig{
				RetryDelay: 5 * time.Second,
			},
		},
		Server: ServerConfig{
			Port:         8000,
			DemoEnabled:  true,
			DemoInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
	}
}

// FeedEnabled reports whether the feed should connect at all:
// an endpoint is configured, the feed is switched on and mock data is off.
func (c *Config) FeedEnabled() bool {
	return c.Feed.Endpoint != "" && c.Feed.Enabled && !c.Feed.MockData
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateFeedConfig(); err != nil {
		return err
	}
	if err := c.validateServerConfig(); err != nil {
		return err
	}
	if err := c.validateLoggingConfig(); err != nil {
		return err
	}
	return c.validateMetricsConfig()
}

func (c *Config) validateFeedConfig() error {
	if c.Feed.Endpoint != "" {
		u, err := url.Parse(c.Feed.Endpoint)
		if err != nil {
			return fmt.Errorf("feed.endpoint is not a valid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "ws", "wss", "http", "https":
		default:
			return fmt.Errorf("feed.endpoint scheme must be one of: ws, wss, http, https, got: %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("feed.endpoint must include a host, got: %s", c.Feed.Endpoint)
		}
	}

	if c.Feed.Socket.MaxAttempts < 0 {
		return fmt.Errorf("feed.socket.max_attempts must be >= 0, got: %d", c.Feed.Socket.MaxAttempts)
	}
	if c.Feed.Socket.BaseDelay <= 0 {
		return fmt.Errorf("feed.socket.base_delay must be positive, got: %s", c.Feed.Socket.BaseDelay)
	}
	if c.Feed.Socket.HandshakeTimeout <= 0 {
		return fmt.Errorf("feed.socket.handshake_timeout must be positive, got: %s", c.Feed.Socket.HandshakeTimeout)
	}
	if c.Feed.Stream.RetryDelay <= 0 {
		return fmt.Errorf("feed.stream.retry_delay must be positive, got: %s", c.Feed.Stream.RetryDelay)
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.DemoEnabled && c.Server.DemoInterval <= 0 {
		return fmt.Errorf("server.demo_interval must be positive, got: %s", c.Server.DemoInterval)
	}
	return nil
}

func (c *Config) validateLoggingConfig() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be either 'json' or 'text', got: %s", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateMetricsConfig() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got: %d", c.Metrics.Port)
	}
	if c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port (%d) must differ from server.port", c.Metrics.Port)
	}
	return nil
}
