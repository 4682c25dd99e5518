package runtime

import (
	"time"

	"github.com/spf13/viper"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

// RetryConfig holds configuration for retry behavior, shared by the client
// middleware and webhook delivery.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type CircuitBreakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

/*
Config is the full set of recognized runtime options.  It is a plain value:
packages receive it (or a slice of it) at construction and never reach for a
global.
*/
type Config struct {
	DefaultTimeout           time.Duration
	ProtocolVersion          string
	DefaultTransport         a2a.TransportProtocol
	StreamingEnabled         bool
	PushNotificationsEnabled bool
	DefaultInputModes        []string
	DefaultOutputModes       []string
	MaxHistoryLength         int
	CacheSize                int
	CacheTTL                 time.Duration
	HeartbeatInterval        time.Duration
	ReconnectDelay           time.Duration
	MaxReconnectAttempts     int
	RateLimit                RateLimitConfig
	CircuitBreaker           CircuitBreakerConfig
	Retry                    RetryConfig
	Debug                    bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:           30 * time.Second,
		ProtocolVersion:          "0.3.0",
		DefaultTransport:         a2a.TransportJSONRPC,
		StreamingEnabled:         true,
		PushNotificationsEnabled: true,
		DefaultInputModes:        []string{"text/plain"},
		DefaultOutputModes:       []string{"text/plain"},
		MaxHistoryLength:         100,
		CacheSize:                1000,
		CacheTTL:                 300 * time.Second,
		HeartbeatInterval:        30 * time.Second,
		ReconnectDelay:           3000 * time.Millisecond,
		MaxReconnectAttempts:     10,
		RateLimit:                RateLimitConfig{RPS: 10, Burst: 20},
		CircuitBreaker:           CircuitBreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// RegisterDefaults seeds every recognized key so a partial config file still
// yields a complete Config.
func RegisterDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("default_timeout", int(defaults.DefaultTimeout.Seconds()))
	v.SetDefault("protocol_version", defaults.ProtocolVersion)
	v.SetDefault("default_transport", string(defaults.DefaultTransport))
	v.SetDefault("streaming_enabled", defaults.StreamingEnabled)
	v.SetDefault("push_notifications_enabled", defaults.PushNotificationsEnabled)
	v.SetDefault("default_input_modes", defaults.DefaultInputModes)
	v.SetDefault("default_output_modes", defaults.DefaultOutputModes)
	v.SetDefault("max_history_length", defaults.MaxHistoryLength)
	v.SetDefault("cache_size", defaults.CacheSize)
	v.SetDefault("cache_ttl", int(defaults.CacheTTL.Seconds()))
	v.SetDefault("heartbeat_interval", int(defaults.HeartbeatInterval.Seconds()))
	v.SetDefault("reconnect_delay", int(defaults.ReconnectDelay.Milliseconds()))
	v.SetDefault("max_reconnect_attempts", defaults.MaxReconnectAttempts)
	v.SetDefault("rate_limit.rps", defaults.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", defaults.RateLimit.Burst)
	v.SetDefault("circuit_breaker.failure_threshold", defaults.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.timeout", int(defaults.CircuitBreaker.Timeout.Seconds()))
	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", int(defaults.Retry.InitialDelay.Seconds()))
	v.SetDefault("retry.max_delay", int(defaults.Retry.MaxDelay.Seconds()))
	v.SetDefault("retry.multiplier", defaults.Retry.Multiplier)
	v.SetDefault("debug", false)
}

// ConfigFromViper materializes a Config from a viper instance so nothing
// downstream needs to know where the values came from.
func ConfigFromViper(v *viper.Viper) Config {
	RegisterDefaults(v)

	return Config{
		DefaultTimeout:           time.Duration(v.GetInt("default_timeout")) * time.Second,
		ProtocolVersion:          v.GetString("protocol_version"),
		DefaultTransport:         a2a.TransportProtocol(v.GetString("default_transport")),
		StreamingEnabled:         v.GetBool("streaming_enabled"),
		PushNotificationsEnabled: v.GetBool("push_notifications_enabled"),
		DefaultInputModes:        v.GetStringSlice("default_input_modes"),
		DefaultOutputModes:       v.GetStringSlice("default_output_modes"),
		MaxHistoryLength:         v.GetInt("max_history_length"),
		CacheSize:                v.GetInt("cache_size"),
		CacheTTL:                 time.Duration(v.GetInt("cache_ttl")) * time.Second,
		HeartbeatInterval:        time.Duration(v.GetInt("heartbeat_interval")) * time.Second,
		ReconnectDelay:           time.Duration(v.GetInt("reconnect_delay")) * time.Millisecond,
		MaxReconnectAttempts:     v.GetInt("max_reconnect_attempts"),
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: v.GetInt("circuit_breaker.failure_threshold"),
			Timeout:          time.Duration(v.GetInt("circuit_breaker.timeout")) * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  v.GetInt("retry.max_attempts"),
			InitialDelay: time.Duration(v.GetInt("retry.initial_delay")) * time.Second,
			MaxDelay:     time.Duration(v.GetInt("retry.max_delay")) * time.Second,
			Multiplier:   v.GetFloat64("retry.multiplier"),
		},
		Debug: v.GetBool("debug"),
	}
}
