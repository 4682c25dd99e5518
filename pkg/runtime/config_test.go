package runtime

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "0.3.0", cfg.ProtocolVersion)
	assert.True(t, cfg.StreamingEnabled)
	assert.True(t, cfg.PushNotificationsEnabled)
	assert.Equal(t, []string{"text/plain"}, cfg.DefaultInputModes)
	assert.Equal(t, 100, cfg.MaxHistoryLength)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Debug)
}

func TestConfigFromViperDefaults(t *testing.T) {
	v := viper.New()

	cfg := ConfigFromViper(v)

	// An empty viper yields exactly the documented defaults.
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("default_timeout", 5)
	v.Set("streaming_enabled", false)
	v.Set("max_history_length", 7)
	v.Set("rate_limit.rps", 2.5)
	v.Set("retry.max_attempts", 9)

	cfg := ConfigFromViper(v)

	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.False(t, cfg.StreamingEnabled)
	assert.Equal(t, 7, cfg.MaxHistoryLength)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 9, cfg.Retry.MaxAttempts)

	// Untouched keys keep their defaults.
	assert.True(t, cfg.PushNotificationsEnabled)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
}

func TestNewRuntime(t *testing.T) {
	rt := New()

	assert.NotNil(t, rt.Logger)
	assert.NotNil(t, rt.Clock)
	assert.NotNil(t, rt.RandomID)
	assert.NotNil(t, rt.Tasks)
	assert.NotNil(t, rt.PushConfigs)
	assert.NotNil(t, rt.Queue)
	assert.Equal(t, DefaultConfig(), rt.Config)

	// Two generated ids never collide.
	assert.NotEqual(t, rt.RandomID(), rt.RandomID())
}

func TestRuntimeOptions(t *testing.T) {
	clock := &ManualClock{Current: time.Unix(42, 0)}

	rt := New(
		WithClock(clock),
		WithRandomID(func() string { return "fixed" }),
	)

	assert.Equal(t, time.Unix(42, 0), rt.Clock.Now())
	assert.Equal(t, "fixed", rt.RandomID())

	clock.Advance(time.Minute)
	assert.Equal(t, time.Unix(102, 0), rt.Clock.Now())
}
