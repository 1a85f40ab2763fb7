// Package config provides bridge configuration.
//
// This module contains the settings the bridge needs to reach its
// counterpart and pace its work:
//   - Socket URL and reconnect/keepalive timing
//   - Throttle window and the event kinds it coalesces
//   - Tick and heartbeat cadence
//   - Ambient surfaces (logging, metrics, health, tracing)
//
// Values come from defaults, then an optional config file, then BLENDMATE_*
// environment variables, then bound command line flags. Normalize clamps
// every timing into its allowed range.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/throttle"
	"github.com/blendmate/bridge/coreengine/transport"
	"github.com/blendmate/bridge/coreengine/typeutil"
)

// EnvPrefix is the prefix of environment overrides, e.g. BLENDMATE_SOCKET_URL.
const EnvPrefix = "BLENDMATE"

// DefaultSocketURL is where the counterpart listens by default.
const DefaultSocketURL = "ws://127.0.0.1:32123"

// DefaultThrottledKinds are the host notifications coalesced before sending.
var DefaultThrottledKinds = []string{"depsgraph_update", "frame_changed"}

// BridgeConfig holds bridge configuration.
type BridgeConfig struct {
	// Connection
	SocketURL          string `json:"socket_url" mapstructure:"socket_url"`
	ReconnectBackoffMS int    `json:"reconnect_backoff_ms" mapstructure:"reconnect_backoff_ms"` // clamped 2000..5000
	HandshakeTimeoutMS int    `json:"handshake_timeout_ms" mapstructure:"handshake_timeout_ms"`
	PingIntervalMS     int    `json:"ping_interval_ms" mapstructure:"ping_interval_ms"`

	// Pacing
	ThrottleIntervalMS  int      `json:"throttle_interval_ms" mapstructure:"throttle_interval_ms"` // clamped 10..1000
	ThrottledKinds      []string `json:"throttled_kinds" mapstructure:"throttled_kinds"`
	TickIntervalMS      int      `json:"tick_interval_ms" mapstructure:"tick_interval_ms"`
	HeartbeatIntervalMS int      `json:"heartbeat_interval_ms" mapstructure:"heartbeat_interval_ms"` // 0 disables

	// Identity reported in connected events
	HostName     string `json:"host_name" mapstructure:"host_name"`
	HostVersion  string `json:"host_version" mapstructure:"host_version"`
	AddonVersion string `json:"addon_version" mapstructure:"addon_version"`

	// Ambient
	LogLevel     string `json:"log_level" mapstructure:"log_level"`
	LogFormat    string `json:"log_format" mapstructure:"log_format"`
	MetricsAddr  string `json:"metrics_addr" mapstructure:"metrics_addr"`   // empty disables
	HealthAddr   string `json:"health_addr" mapstructure:"health_addr"`     // empty disables
	OTLPEndpoint string `json:"otlp_endpoint" mapstructure:"otlp_endpoint"` // empty disables tracing export
}

// DefaultBridgeConfig returns a BridgeConfig with default values.
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		SocketURL:          DefaultSocketURL,
		ReconnectBackoffMS: 5000,
		HandshakeTimeoutMS: 5000,
		PingIntervalMS:     10000,

		ThrottleIntervalMS:  100,
		ThrottledKinds:      append([]string(nil), DefaultThrottledKinds...),
		TickIntervalMS:      100,
		HeartbeatIntervalMS: 10000,

		HostName:     "Blender",
		HostVersion:  "4.2.0",
		AddonVersion: "0.1.0",

		LogLevel:    "info",
		LogFormat:   "text",
		MetricsAddr: "127.0.0.1:9464",
		HealthAddr:  "127.0.0.1:50061",
	}
}

// BridgeConfigFromMap creates BridgeConfig from a map.
// Unknown keys are ignored; the result is normalized.
func BridgeConfigFromMap(config map[string]any) *BridgeConfig {
	c := DefaultBridgeConfig()

	if v, ok := config["socket_url"].(string); ok {
		c.SocketURL = v
	}
	intField(config, "reconnect_backoff_ms", &c.ReconnectBackoffMS)
	intField(config, "handshake_timeout_ms", &c.HandshakeTimeoutMS)
	intField(config, "ping_interval_ms", &c.PingIntervalMS)
	intField(config, "throttle_interval_ms", &c.ThrottleIntervalMS)
	intField(config, "tick_interval_ms", &c.TickIntervalMS)
	intField(config, "heartbeat_interval_ms", &c.HeartbeatIntervalMS)

	if kinds, ok := typeutil.StringList(config["throttled_kinds"]); ok {
		c.ThrottledKinds = kinds
	}

	for key, dst := range map[string]*string{
		"host_name":     &c.HostName,
		"host_version":  &c.HostVersion,
		"addon_version": &c.AddonVersion,
		"log_level":     &c.LogLevel,
		"log_format":    &c.LogFormat,
		"metrics_addr":  &c.MetricsAddr,
		"health_addr":   &c.HealthAddr,
		"otlp_endpoint": &c.OTLPEndpoint,
	} {
		if v, ok := config[key].(string); ok {
			*dst = v
		}
	}

	c.Normalize()
	return c
}

// ToMap converts config to a map.
func (c *BridgeConfig) ToMap() map[string]any {
	return map[string]any{
		"socket_url":            c.SocketURL,
		"reconnect_backoff_ms":  c.ReconnectBackoffMS,
		"handshake_timeout_ms":  c.HandshakeTimeoutMS,
		"ping_interval_ms":      c.PingIntervalMS,
		"throttle_interval_ms":  c.ThrottleIntervalMS,
		"throttled_kinds":       append([]string(nil), c.ThrottledKinds...),
		"tick_interval_ms":      c.TickIntervalMS,
		"heartbeat_interval_ms": c.HeartbeatIntervalMS,
		"host_name":             c.HostName,
		"host_version":          c.HostVersion,
		"addon_version":         c.AddonVersion,
		"log_level":             c.LogLevel,
		"log_format":            c.LogFormat,
		"metrics_addr":          c.MetricsAddr,
		"health_addr":           c.HealthAddr,
		"otlp_endpoint":         c.OTLPEndpoint,
	}
}

// Normalize fills empty values with defaults and clamps timings.
func (c *BridgeConfig) Normalize() {
	d := DefaultBridgeConfig()

	c.SocketURL = strings.TrimSpace(c.SocketURL)
	if c.SocketURL == "" {
		c.SocketURL = d.SocketURL
	}
	c.ReconnectBackoffMS = int(transport.ClampBackoff(ms(c.ReconnectBackoffMS)) / time.Millisecond)
	c.ThrottleIntervalMS = int(throttle.ClampInterval(ms(c.ThrottleIntervalMS)) / time.Millisecond)
	if c.HandshakeTimeoutMS <= 0 {
		c.HandshakeTimeoutMS = d.HandshakeTimeoutMS
	}
	if c.PingIntervalMS <= 0 {
		c.PingIntervalMS = d.PingIntervalMS
	}
	if c.TickIntervalMS <= 0 {
		c.TickIntervalMS = d.TickIntervalMS
	}
	if c.HeartbeatIntervalMS < 0 {
		c.HeartbeatIntervalMS = 0
	}
	if c.ThrottledKinds == nil {
		c.ThrottledKinds = d.ThrottledKinds
	}
	if c.HostName == "" {
		c.HostName = d.HostName
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "json" {
		c.LogFormat = "text"
	}
}

// Validate checks the values Normalize cannot repair.
func (c *BridgeConfig) Validate() error {
	if !strings.HasPrefix(c.SocketURL, "ws://") && !strings.HasPrefix(c.SocketURL, "wss://") {
		return &ConfigError{Field: "socket_url", Message: fmt.Sprintf("expected a ws:// or wss:// URL, got %q", c.SocketURL)}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	return nil
}

// =============================================================================
// COMPONENT CONFIGS
// =============================================================================

// TransportConfig derives the transport manager settings.
func (c *BridgeConfig) TransportConfig() *transport.Config {
	tc := transport.DefaultConfig()
	tc.URL = c.SocketURL
	tc.ReconnectBackoff = ms(c.ReconnectBackoffMS)
	tc.HandshakeTimeout = ms(c.HandshakeTimeoutMS)
	tc.PingInterval = ms(c.PingIntervalMS)
	return tc
}

// ThrottleConfig derives the throttle engine settings.
func (c *BridgeConfig) ThrottleConfig() *throttle.Config {
	tc := throttle.DefaultConfig()
	tc.Interval = ms(c.ThrottleIntervalMS)
	return tc
}

// Identity returns the host identity reported on connect.
func (c *BridgeConfig) Identity() envelope.HostIdentity {
	return envelope.HostIdentity{
		HostName:     c.HostName,
		HostVersion:  c.HostVersion,
		AddonVersion: c.AddonVersion,
	}
}

// TickInterval is the queue processing cadence.
func (c *BridgeConfig) TickInterval() time.Duration { return ms(c.TickIntervalMS) }

// HeartbeatInterval is the heartbeat cadence, zero when disabled.
func (c *BridgeConfig) HeartbeatInterval() time.Duration { return ms(c.HeartbeatIntervalMS) }

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration through viper. path may be empty; flags may be
// nil. Precedence is flags, then environment, then file, then defaults.
// Flag names use dashes for underscores, e.g. --socket-url.
func Load(path string, flags *pflag.FlagSet) (*BridgeConfig, error) {
	v := viper.New()
	for key, value := range DefaultBridgeConfig().ToMap() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// =============================================================================
// HELPERS
// =============================================================================

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func intField(config map[string]any, key string, dst *int) {
	if v, ok := typeutil.Int(config[key]); ok {
		*dst = v
	}
}
