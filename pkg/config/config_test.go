package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "SCHOOLSESSION", cfg.Session.CookieName)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 2, cfg.Audit.Workers)
	assert.Equal(t, 1024, cfg.Audit.BufferSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Audit.RetryDelay)
	assert.Equal(t, 7*24*time.Hour, cfg.Activity.RecentWindow)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("AUDIT_SYNC", true)
	v.Set("AUDIT_RETRY_DELAY", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("SESSION_TTL", "30m")

	cfg := fromViper(v)
	assert.True(t, cfg.Audit.Sync)
	assert.Equal(t, 500*time.Millisecond, cfg.Audit.RetryDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}
